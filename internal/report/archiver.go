package report

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/callsight/callsight/internal/batch"
	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/pkg/provider/embeddings"
)

// ArchiverOption is a functional option for configuring the Archiver.
type ArchiverOption func(*Archiver)

// WithEmbedder enables summary embedding at archive time, making archived
// records reachable via similarity search.
func WithEmbedder(e embeddings.Provider) ArchiverOption {
	return func(a *Archiver) {
		a.embedder = e
	}
}

// WithClock overrides the time source used for ProcessedAt.
func WithClock(now func() time.Time) ArchiverOption {
	return func(a *Archiver) {
		if now != nil {
			a.now = now
		}
	}
}

// Archiver persists successful batch results into a Store, embedding their
// summaries when an embeddings provider is configured.
type Archiver struct {
	store    Store
	embedder embeddings.Provider
	now      func() time.Time
}

// NewArchiver creates an Archiver over the given store.
func NewArchiver(store Store, opts ...ArchiverOption) *Archiver {
	a := &Archiver{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Archive persists one successful file result and returns the new record id.
// Failed results are not archivable.
func (a *Archiver) Archive(ctx context.Context, res batch.FileResult) (string, error) {
	if res.Failed() {
		return "", fmt.Errorf("report: cannot archive failed result for %q", res.Filename)
	}

	rec := Record{
		ID:            newID(),
		Filename:      res.Filename,
		ProcessedAt:   a.now(),
		AudioLength:   res.AudioLength,
		FileSize:      res.FileSize,
		Transcription: res.Transcription,
		Analysis:      res.Analysis,
	}
	if res.Analysis != nil && res.Analysis.Summary != nil {
		rec.Summary = *res.Analysis.Summary
	}

	if a.embedder != nil && rec.Summary != "" {
		vec, err := a.embedder.Embed(ctx, rec.Summary)
		if err != nil {
			// Archive without the embedding rather than losing the record.
			observe.Logger(ctx).Warn("summary embedding failed",
				"filename", res.Filename, "error", err)
		} else {
			rec.Embedding = vec
		}
	}

	if err := a.store.Save(ctx, rec); err != nil {
		return "", fmt.Errorf("report: archive %q: %w", res.Filename, err)
	}
	return rec.ID, nil
}

// SearchSimilar embeds the query text and runs a similarity search over
// archived summaries. Requires an embeddings provider.
func (a *Archiver) SearchSimilar(ctx context.Context, query string, topK int) ([]SimilarResult, error) {
	if a.embedder == nil {
		return nil, fmt.Errorf("report: similarity search requires an embeddings provider")
	}
	if topK <= 0 {
		topK = 5
	}
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("report: embed query: %w", err)
	}
	return a.store.SearchSimilar(ctx, vec, topK)
}

// newID returns a random 128-bit hex identifier.
func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("report: rand.Read: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
