// Package analysis defines the Provider interface for call-analysis backends.
//
// An analysis provider wraps an LLM API (e.g., OpenAI, Anthropic via any-llm,
// or a local Ollama instance) and exposes a uniform interface: a rendered
// diarized transcript goes in, a structured Report following a fixed JSON
// schema comes out. Providers own the prompt-to-schema contract; callers never
// see raw model text.
//
// Implementations must be safe for concurrent use; the batch orchestrator
// analyzes multiple calls in parallel through a single Provider instance.
package analysis

import (
	"context"
	"fmt"
)

// Request carries one rendered transcript and its call metadata to the model.
type Request struct {
	// Transcript is the rendered diarized transcript, one line per speaker
	// turn with timestamp ranges and display labels. Must be non-empty.
	Transcript string

	// Filename is the original upload name, included in the prompt so the
	// model can use naming hints (dates, campaign ids).
	Filename string

	// Duration is the call duration formatted as HH:MM:SS.mmm.
	Duration string
}

// Provider is the abstraction over any call-analysis backend.
//
// Analyze must respect ctx for cancellation and deadlines. A model response
// that cannot be coerced into the Report schema is a provider failure,
// reported via *ServiceError.
type Provider interface {
	// Analyze submits the transcript and returns the structured report.
	// The returned Report is never nil when error is nil.
	Analyze(ctx context.Context, req Request) (*Report, error)
}

// ServiceError reports a failure of the upstream analysis service: a non-2xx
// response, a timeout, an empty completion, or model output that cannot be
// parsed into the report schema.
type ServiceError struct {
	// Provider is the vendor name (e.g., "openai", "anthropic").
	Provider string

	// StatusCode is the upstream HTTP status, or 0 when the failure happened
	// before a response arrived or is not HTTP-shaped (bad model output).
	StatusCode int

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: analysis failed (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: analysis failed: %s", e.Provider, e.Message)
}
