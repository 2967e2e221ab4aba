package batch

import "math"

// Distribution is one bucket of a categorical breakdown.
type Distribution struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Statistics summarises the successful results of one batch.
type Statistics struct {
	// TotalFiles is the number of files that produced an analysis.
	TotalFiles int `json:"total_files"`

	// SentimentDistribution breaks successful files down by overall emotion.
	// Files whose report omits the emotion do not appear in any bucket but
	// still count toward the percentage denominator.
	SentimentDistribution map[string]Distribution `json:"sentiment_distribution,omitempty"`

	// SatisfactionDistribution breaks successful files down by satisfaction.
	SatisfactionDistribution map[string]Distribution `json:"satisfaction_distribution,omitempty"`
}

// computeStatistics builds the distributions over successful results.
// Percentages are relative to the successful file count, rounded to one
// decimal place.
func computeStatistics(results []FileResult) *Statistics {
	sentiments := map[string]int{}
	satisfactions := map[string]int{}
	total := 0

	for i := range results {
		r := &results[i]
		if r.Failed() || r.Analysis == nil {
			continue
		}
		total++
		if r.Analysis.EmotionOverall != nil {
			sentiments[*r.Analysis.EmotionOverall]++
		}
		if r.Analysis.Satisfaction != nil {
			satisfactions[*r.Analysis.Satisfaction]++
		}
	}

	stats := &Statistics{TotalFiles: total}
	if total == 0 {
		return stats
	}
	stats.SentimentDistribution = toDistribution(sentiments, total)
	stats.SatisfactionDistribution = toDistribution(satisfactions, total)
	return stats
}

func toDistribution(counts map[string]int, total int) map[string]Distribution {
	if len(counts) == 0 {
		return nil
	}
	dist := make(map[string]Distribution, len(counts))
	for k, v := range counts {
		dist[k] = Distribution{
			Count:      v,
			Percentage: math.Round(float64(v)/float64(total)*1000) / 10,
		}
	}
	return dist
}
