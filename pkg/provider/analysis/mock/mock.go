// Package mock provides a test double for the analysis.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/callsight/callsight/pkg/provider/analysis"
)

// AnalyzeCall records a single invocation of Provider.Analyze.
type AnalyzeCall struct {
	// Ctx is the context passed to Analyze.
	Ctx context.Context
	// Req is the Request passed to Analyze.
	Req analysis.Request
}

// Provider is a mock implementation of analysis.Provider.
type Provider struct {
	mu sync.Mutex

	// Report is returned by Analyze when AnalyzeFunc is nil. If both are nil,
	// Analyze returns an empty Report.
	Report *analysis.Report

	// Err, if non-nil, is returned as the error from Analyze.
	Err error

	// AnalyzeFunc, if non-nil, overrides Report and Err entirely.
	AnalyzeFunc func(ctx context.Context, req analysis.Request) (*analysis.Report, error)

	// AnalyzeCalls records every call to Analyze.
	AnalyzeCalls []AnalyzeCall
}

// Analyze records the call and returns the configured report or error.
func (p *Provider) Analyze(ctx context.Context, req analysis.Request) (*analysis.Report, error) {
	p.mu.Lock()
	p.AnalyzeCalls = append(p.AnalyzeCalls, AnalyzeCall{Ctx: ctx, Req: req})
	fn := p.AnalyzeFunc
	report := p.Report
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if report != nil {
		return report, nil
	}
	return &analysis.Report{}, nil
}

// AnalyzeCallCount returns the number of Analyze calls. Thread-safe.
func (p *Provider) AnalyzeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.AnalyzeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.AnalyzeCalls = nil
}

// Ensure Provider implements analysis.Provider at compile time.
var _ analysis.Provider = (*Provider)(nil)
