// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., ElevenLabs Scribe,
// Deepgram, or a local whisper.cpp model) and exposes a uniform batch
// interface: a complete audio recording goes in, a word-level transcript with
// speaker diarization comes out. Callsight's pipeline is file-at-a-time, so
// there is no streaming session abstraction — each call is one recording.
//
// Implementations must be safe for concurrent use; the batch orchestrator
// transcribes multiple files in parallel through a single Provider instance.
package stt

import (
	"context"
	"fmt"
)

// Request describes one recording to transcribe.
type Request struct {
	// Audio is the complete raw file content as uploaded (container format,
	// not decoded PCM). Must be non-empty.
	Audio []byte

	// Filename is the original upload name, forwarded to providers that use
	// the extension as a format hint (e.g., "call-2024-03-01.mp3").
	Filename string

	// ContentType is the declared MIME type of Audio. Providers fall back to
	// "application/octet-stream" when empty.
	ContentType string

	// Language is the BCP-47 language tag for recognition (e.g., "en", "de").
	// An empty string lets the provider auto-detect the language, if supported.
	Language string

	// Diarize requests per-word speaker identification. Providers without
	// diarization support ignore this and tag every word with a single
	// speaker id.
	Diarize bool

	// NumSpeakers hints at the number of distinct speakers in the recording.
	// Zero lets the provider infer it.
	NumSpeakers int
}

// Provider is the abstraction over any batch STT backend.
//
// Implementations must be safe for concurrent use and must respect ctx for
// cancellation and deadlines. Retry policy belongs to the caller, not the
// provider: a failed Transcribe is reported once, via *ServiceError where the
// failure originates upstream.
type Provider interface {
	// Transcribe submits the recording described by req and returns the
	// word-level transcript. The returned Result is never nil when error is nil.
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// ServiceError reports a failure of the upstream transcription service:
// a non-2xx response, a timeout, or a payload that cannot be parsed into
// the expected token schema.
type ServiceError struct {
	// Provider is the vendor name (e.g., "elevenlabs", "deepgram").
	Provider string

	// StatusCode is the upstream HTTP status, or 0 when the failure happened
	// before a response arrived (dial error, timeout).
	StatusCode int

	// Message describes the failure.
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transcription failed (HTTP %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: transcription failed: %s", e.Provider, e.Message)
}
