// Package postgres provides a PostgreSQL-backed implementation of the report
// archive. The pgvector extension must be available in the target database;
// [Migrate] installs it automatically via CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/callsight/callsight/internal/report"
	"github.com/callsight/callsight/pkg/provider/analysis"
)

// Compile-time interface check.
var _ report.Store = (*Store)(nil)

// ddlReports returns the archive DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlReports(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS reports (
    id            TEXT         PRIMARY KEY,
    filename      TEXT         NOT NULL,
    processed_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    audio_length  TEXT         NOT NULL DEFAULT '',
    file_size     BIGINT       NOT NULL DEFAULT 0,
    transcription TEXT         NOT NULL DEFAULT '',
    analysis      JSONB        NOT NULL DEFAULT '{}',
    summary       TEXT         NOT NULL DEFAULT '',
    embedding     vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_reports_filename
    ON reports (filename);

CREATE INDEX IF NOT EXISTS idx_reports_processed_at
    ON reports (processed_at);

CREATE INDEX IF NOT EXISTS idx_reports_embedding
    ON reports USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the reports table and its indexes exist. It is
// idempotent and safe to call on every application start.
//
// embeddingDimensions must match the output dimension of the configured
// embeddings model (e.g., 1536 for OpenAI text-embedding-3-small). Changing
// this value after the first migration requires a manual schema change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlReports(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

// Store is the PostgreSQL-backed report archive. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate].
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so the embedding column
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Save implements [report.Store]. It upserts the record; an existing record
// with the same id is completely replaced.
func (s *Store) Save(ctx context.Context, rec report.Record) error {
	const q = `
		INSERT INTO reports
		    (id, filename, processed_at, audio_length, file_size, transcription, analysis, summary, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    filename      = EXCLUDED.filename,
		    processed_at  = EXCLUDED.processed_at,
		    audio_length  = EXCLUDED.audio_length,
		    file_size     = EXCLUDED.file_size,
		    transcription = EXCLUDED.transcription,
		    analysis      = EXCLUDED.analysis,
		    summary       = EXCLUDED.summary,
		    embedding     = EXCLUDED.embedding`

	analysisJSON, err := json.Marshal(rec.Analysis)
	if err != nil {
		return fmt.Errorf("report store: marshal analysis: %w", err)
	}

	var vec any
	if len(rec.Embedding) > 0 {
		vec = pgvector.NewVector(rec.Embedding)
	}

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.Filename,
		rec.ProcessedAt,
		rec.AudioLength,
		rec.FileSize,
		rec.Transcription,
		analysisJSON,
		rec.Summary,
		vec,
	)
	if err != nil {
		return fmt.Errorf("report store: save: %w", err)
	}
	return nil
}

// Get implements [report.Store].
func (s *Store) Get(ctx context.Context, id string) (*report.Record, error) {
	const q = `
		SELECT id, filename, processed_at, audio_length, file_size, transcription, analysis, summary, embedding
		FROM   reports
		WHERE  id = $1`

	rec, err := scanRecord(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, report.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("report store: get: %w", err)
	}
	return rec, nil
}

// SearchSimilar implements [report.Store]. Records without an embedding are
// excluded; results are ordered by ascending cosine distance.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, topK int) ([]report.SimilarResult, error) {
	const q = `
		SELECT id, filename, processed_at, audio_length, file_size, transcription, analysis, summary, embedding,
		       embedding <=> $1 AS distance
		FROM   reports
		WHERE  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("report store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (report.SimilarResult, error) {
		var (
			sr           report.SimilarResult
			analysisJSON []byte
			vec          *pgvector.Vector
		)
		if err := row.Scan(
			&sr.Record.ID,
			&sr.Record.Filename,
			&sr.Record.ProcessedAt,
			&sr.Record.AudioLength,
			&sr.Record.FileSize,
			&sr.Record.Transcription,
			&analysisJSON,
			&sr.Record.Summary,
			&vec,
			&sr.Distance,
		); err != nil {
			return report.SimilarResult{}, err
		}
		if err := unmarshalAnalysis(analysisJSON, &sr.Record); err != nil {
			return report.SimilarResult{}, err
		}
		if vec != nil {
			sr.Record.Embedding = vec.Slice()
		}
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("report store: scan rows: %w", err)
	}
	if results == nil {
		results = []report.SimilarResult{}
	}
	return results, nil
}

// Ping implements [report.Store].
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// scanRecord scans one full record row.
func scanRecord(row pgx.Row) (*report.Record, error) {
	var (
		rec          report.Record
		analysisJSON []byte
		vec          *pgvector.Vector
	)
	if err := row.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.ProcessedAt,
		&rec.AudioLength,
		&rec.FileSize,
		&rec.Transcription,
		&analysisJSON,
		&rec.Summary,
		&vec,
	); err != nil {
		return nil, err
	}
	if err := unmarshalAnalysis(analysisJSON, &rec); err != nil {
		return nil, err
	}
	if vec != nil {
		rec.Embedding = vec.Slice()
	}
	return &rec, nil
}

func unmarshalAnalysis(data []byte, rec *report.Record) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	rec.Analysis = &analysis.Report{}
	if err := json.Unmarshal(data, rec.Analysis); err != nil {
		return fmt.Errorf("unmarshal analysis: %w", err)
	}
	return nil
}
