// Package embeddings defines the Provider interface for the vector backends
// that power similarity search over archived call reports.
//
// The archiver embeds each report's summary once, right before the row is
// written, so a single-text Embed is the whole contract. Dimensions feeds the
// pgvector column width at store setup time.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider turns a call summary into a dense vector for the report archive.
//
// Every vector produced by one Provider instance has length Dimensions().
// Vectors from different instances only compare meaningfully when both use
// the same model.
type Provider interface {
	// Embed computes the vector for a single summary. The text is passed to
	// the backend verbatim; any model-specific prefix (e.g. "query: " for
	// nomic-embed-text) is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the fixed vector length this provider produces.
	// The store uses it to size the embedding column when the configuration
	// does not pin one explicitly.
	Dimensions() int
}
