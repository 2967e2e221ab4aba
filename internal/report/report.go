// Package report archives completed call-analysis results and serves
// retrieval and similarity search over them.
//
// Archiving is optional: the pipeline runs fine without a Store. When one is
// configured, every successful file result is persisted and can be fetched by
// id or searched by summary similarity (given an embeddings provider).
package report

import (
	"context"
	"errors"
	"time"

	"github.com/callsight/callsight/pkg/provider/analysis"
)

// ErrNotFound is returned by Store.Get when no record has the requested id.
var ErrNotFound = errors.New("report: not found")

// Record is one archived call-analysis result.
type Record struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// Filename is the uploaded file's name.
	Filename string `json:"filename"`

	// ProcessedAt is when the file finished processing.
	ProcessedAt time.Time `json:"processed_at"`

	// AudioLength is the recording duration as HH:MM:SS.mmm.
	AudioLength string `json:"audio_length"`

	// FileSize is the upload size in bytes.
	FileSize int64 `json:"file_size"`

	// Transcription is the rendered turn-structured transcript.
	Transcription string `json:"transcription"`

	// Analysis is the structured report produced for the call.
	Analysis *analysis.Report `json:"analysis"`

	// Summary is the report summary extracted for embedding, possibly empty.
	Summary string `json:"summary,omitempty"`

	// Embedding is the summary's embedding vector, or nil when no embeddings
	// provider was configured at archive time.
	Embedding []float32 `json:"-"`
}

// SimilarResult pairs a record with its cosine distance to a query embedding.
type SimilarResult struct {
	Record   Record  `json:"record"`
	Distance float64 `json:"distance"`
}

// Store is the persistence abstraction for archived results.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists the record, replacing any existing record with the same id.
	Save(ctx context.Context, rec Record) error

	// Get fetches one record by id. Returns ErrNotFound when it does not exist.
	Get(ctx context.Context, id string) (*Record, error)

	// SearchSimilar returns the topK records whose summary embeddings are
	// closest (cosine distance) to the query embedding, most similar first.
	// Records without an embedding never match.
	SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]SimilarResult, error)

	// Ping checks connectivity to the backing storage.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}
