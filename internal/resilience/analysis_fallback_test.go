package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/callsight/callsight/pkg/provider/analysis"
	analysismock "github.com/callsight/callsight/pkg/provider/analysis/mock"
)

func TestAnalysisFallback_Analyze_PrimarySuccess(t *testing.T) {
	summary := "resolved billing issue"
	primary := &analysismock.Provider{
		Report: &analysis.Report{Summary: &summary},
	}
	secondary := &analysismock.Provider{}

	fb := NewAnalysisFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("anthropic", secondary)

	rep, err := fb.Analyze(context.Background(), analysis.Request{Transcript: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Summary == nil || *rep.Summary != summary {
		t.Fatalf("Summary = %v, want %q", rep.Summary, summary)
	}
	if secondary.AnalyzeCallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.AnalyzeCallCount())
	}
}

func TestAnalysisFallback_Analyze_Failover(t *testing.T) {
	primary := &analysismock.Provider{Err: errors.New("primary down")}
	summary := "from fallback"
	secondary := &analysismock.Provider{
		Report: &analysis.Report{Summary: &summary},
	}

	fb := NewAnalysisFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("anthropic", secondary)

	rep, err := fb.Analyze(context.Background(), analysis.Request{Transcript: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Summary == nil || *rep.Summary != summary {
		t.Fatalf("Summary = %v, want %q", rep.Summary, summary)
	}
	if secondary.AnalyzeCallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.AnalyzeCallCount())
	}
}

func TestAnalysisFallback_Analyze_AllFail(t *testing.T) {
	primary := &analysismock.Provider{Err: errors.New("primary down")}
	secondary := &analysismock.Provider{Err: errors.New("secondary down")}

	fb := NewAnalysisFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("anthropic", secondary)

	_, err := fb.Analyze(context.Background(), analysis.Request{Transcript: "t"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
