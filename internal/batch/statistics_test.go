package batch

import (
	"testing"

	"github.com/callsight/callsight/pkg/provider/analysis"
)

func reportWith(emotion, satisfaction string) *analysis.Report {
	rep := &analysis.Report{}
	if emotion != "" {
		rep.EmotionOverall = &emotion
	}
	if satisfaction != "" {
		rep.Satisfaction = &satisfaction
	}
	return rep
}

func TestComputeStatisticsSkipsFailures(t *testing.T) {
	t.Parallel()

	results := []FileResult{
		{Filename: "a.wav", Analysis: reportWith("positive", "satisfied")},
		{Filename: "b.wav", Error: "stt down", ErrorKind: ErrorKindTranscription},
		{Filename: "c.wav", Analysis: reportWith("positive", "neutral")},
	}

	stats := computeStatistics(results)
	if stats.TotalFiles != 2 {
		t.Fatalf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if got := stats.SentimentDistribution["positive"]; got.Count != 2 || got.Percentage != 100.0 {
		t.Errorf("positive = %+v, want count 2, percentage 100", got)
	}
	if got := stats.SatisfactionDistribution["satisfied"]; got.Percentage != 50.0 {
		t.Errorf("satisfied percentage = %v, want 50", got.Percentage)
	}
}

func TestComputeStatisticsOmittedFieldsCountTowardDenominator(t *testing.T) {
	t.Parallel()

	results := []FileResult{
		{Filename: "a.wav", Analysis: reportWith("negative", "")},
		{Filename: "b.wav", Analysis: reportWith("", "")},
		{Filename: "c.wav", Analysis: reportWith("negative", "")},
	}

	stats := computeStatistics(results)
	if stats.TotalFiles != 3 {
		t.Fatalf("TotalFiles = %d, want 3", stats.TotalFiles)
	}
	if got := stats.SentimentDistribution["negative"]; got.Count != 2 || got.Percentage != 66.7 {
		t.Errorf("negative = %+v, want count 2, percentage 66.7", got)
	}
	if stats.SatisfactionDistribution != nil {
		t.Errorf("SatisfactionDistribution = %v, want nil when nothing reported", stats.SatisfactionDistribution)
	}
}

func TestComputeStatisticsNoSuccesses(t *testing.T) {
	t.Parallel()

	results := []FileResult{
		{Filename: "a.wav", Error: "boom", ErrorKind: ErrorKindAnalysis},
	}
	stats := computeStatistics(results)
	if stats.TotalFiles != 0 {
		t.Errorf("TotalFiles = %d, want 0", stats.TotalFiles)
	}
	if stats.SentimentDistribution != nil || stats.SatisfactionDistribution != nil {
		t.Error("distributions should be nil with no successful files")
	}
}
