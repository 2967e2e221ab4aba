// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to verify that the caller submits the expected Request and to
// feed controlled transcripts back. A TranscribeFunc hook covers cases where
// the result depends on the request (e.g., per-file fixtures).
//
// Example:
//
//	p := &mock.Provider{Result: &stt.Result{Words: words}}
//	res, err := p.Transcribe(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/callsight/callsight/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the Request passed to Transcribe. Audio is the caller's slice,
	// not a copy.
	Req stt.Request
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Transcribe when TranscribeFunc is nil. If both are
	// nil, Transcribe returns an empty Result.
	Result *stt.Result

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// TranscribeFunc, if non-nil, overrides Result and Err entirely.
	TranscribeFunc func(ctx context.Context, req stt.Request) (*stt.Result, error)

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result or error.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	fn := p.TranscribeFunc
	result := p.Result
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		return result, nil
	}
	return &stt.Result{}, nil
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) TranscribeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
