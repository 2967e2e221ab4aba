package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/callsight/callsight/pkg/provider/stt"
	sttmock "github.com/callsight/callsight/pkg/provider/stt/mock"
)

func TestSTTFallback_Transcribe_PrimarySuccess(t *testing.T) {
	primary := &sttmock.Provider{
		Result: &stt.Result{Text: "hello", DurationMS: 1200},
	}
	secondary := &sttmock.Provider{}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("audio")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "hello" {
		t.Fatalf("Text = %q, want %q", res.Text, "hello")
	}
	if primary.TranscribeCallCount() != 1 {
		t.Fatalf("primary called %d times, want 1", primary.TranscribeCallCount())
	}
	if secondary.TranscribeCallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.TranscribeCallCount())
	}
}

func TestSTTFallback_Transcribe_Failover(t *testing.T) {
	primary := &sttmock.Provider{
		Err: errors.New("primary down"),
	}
	secondary := &sttmock.Provider{
		Result: &stt.Result{Text: "from secondary"},
	}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	res, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("audio")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "from secondary" {
		t.Fatalf("Text = %q, want %q", res.Text, "from secondary")
	}
	if secondary.TranscribeCallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.TranscribeCallCount())
	}
}

func TestSTTFallback_Transcribe_AllFail(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Err: errors.New("secondary down")}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("secondary", secondary)

	_, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("audio")})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestSTTFallback_Transcribe_SkipsOpenBreaker(t *testing.T) {
	primary := &sttmock.Provider{Err: errors.New("primary down")}
	secondary := &sttmock.Provider{Result: &stt.Result{Text: "ok"}}

	fb := NewSTTFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	fb.AddFallback("secondary", secondary)

	// First call trips the primary's breaker; second call must skip it.
	for range 2 {
		if _, err := fb.Transcribe(context.Background(), stt.Request{Audio: []byte("audio")}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if primary.TranscribeCallCount() != 1 {
		t.Fatalf("primary called %d times, want 1 (breaker should be open)", primary.TranscribeCallCount())
	}
	if secondary.TranscribeCallCount() != 2 {
		t.Fatalf("secondary called %d times, want 2", secondary.TranscribeCallCount())
	}
}
