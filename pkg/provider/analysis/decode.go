package analysis

import (
	"log/slog"

	"github.com/callsight/callsight/internal/jsonfix"
)

// DecodeReport parses raw model output into a Report, tolerating surrounding
// prose via bounded brace-trim recovery. attempts caps the recovery passes;
// non-positive values fall back to jsonfix.DefaultAttempts. Recovery is
// logged so lenient parses stay visible in operation.
//
// Vendor adapters share this so every backend enforces the same schema
// contract and the same leniency.
func DecodeReport(providerName, text string, attempts int) (*Report, error) {
	var report Report
	recovered, err := jsonfix.Unmarshal(text, attempts, &report)
	if err != nil {
		return nil, &ServiceError{Provider: providerName, Message: err.Error()}
	}
	if recovered {
		slog.Warn("analysis response required JSON recovery", "provider", providerName)
	}
	return &report, nil
}
