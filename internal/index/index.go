// Package index is a denormalized SQL mirror of seal.Metadata, written
// best-effort after a successful Store.Persist call to support operator
// listing/search by subject, ruleset, or time range. It is explicitly NOT
// part of THE CORE: Replay and the fetch-by-id Store API never consult it,
// and a failure to write an index row never fails the originating request
// — the index is an optimization, never a durability guarantee.
//
// Grounded on Mindburn-Labs/helm's pkg/store/ledger/sql_ledger.go
// (database/sql with a driver-agnostic schema, selected by the caller's
// *sql.DB rather than by this package), generalized from an obligation
// ledger to an evaluation metadata mirror.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

// ErrNotFound is returned by Get when no row matches the evaluation id.
var ErrNotFound = errors.New("index: evaluation not found")

const schema = `
CREATE TABLE IF NOT EXISTS evaluation_index (
	evaluation_id TEXT PRIMARY KEY,
	injected_time_utc TEXT,
	subject TEXT,
	ruleset TEXT,
	input_sha256 TEXT,
	output_sha256 TEXT,
	trace_sha256 TEXT,
	manifest_sha256 TEXT
);
`

// Index mirrors seal.Metadata rows into a SQL table via database/sql, so
// either lib/pq (Postgres) or modernc.org/sqlite (local/dev) can back it
// depending on the *sql.DB the caller constructed from the configured DSN.
type Index struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps db and ensures the evaluation_index table exists.
func New(ctx context.Context, db *sql.DB, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{db: db, logger: logger.With("component", "index")}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("index: init schema: %w", err)
	}
	return idx, nil
}

// Record inserts a row for md. Called best-effort after Store.Persist; the
// caller logs and discards any error rather than failing the evaluation.
func (idx *Index) Record(ctx context.Context, md seal.Metadata) error {
	query := `
		INSERT INTO evaluation_index
			(evaluation_id, injected_time_utc, subject, ruleset, input_sha256, output_sha256, trace_sha256, manifest_sha256)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := idx.db.ExecContext(ctx, query,
		md.EvaluationID, md.InjectedTimeUTC, md.Subject, md.Ruleset,
		md.InputSHA256, md.OutputSHA256, md.TraceSHA256, md.ManifestSHA256,
	)
	if err != nil {
		return fmt.Errorf("index: record %s: %w", md.EvaluationID, err)
	}
	return nil
}

// RecordBestEffort calls Record and logs, rather than returns, any failure.
// This is the entry point Store's caller should use in production — the
// index must never be able to fail an evaluation request.
func (idx *Index) RecordBestEffort(ctx context.Context, md seal.Metadata) {
	if err := idx.Record(ctx, md); err != nil {
		idx.logger.WarnContext(ctx, "failed to write index record", "evaluation_id", md.EvaluationID, "error", err)
	}
}

// Get returns the indexed metadata for id, or ErrNotFound.
func (idx *Index) Get(ctx context.Context, id string) (seal.Metadata, error) {
	query := `
		SELECT evaluation_id, injected_time_utc, subject, ruleset, input_sha256, output_sha256, trace_sha256, manifest_sha256
		FROM evaluation_index WHERE evaluation_id = $1
	`
	row := idx.db.QueryRowContext(ctx, query, id)
	var md seal.Metadata
	err := row.Scan(&md.EvaluationID, &md.InjectedTimeUTC, &md.Subject, &md.Ruleset,
		&md.InputSHA256, &md.OutputSHA256, &md.TraceSHA256, &md.ManifestSHA256)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return seal.Metadata{}, ErrNotFound
		}
		return seal.Metadata{}, fmt.Errorf("index: get %s: %w", id, err)
	}
	return md, nil
}

// ListBySubject returns every indexed evaluation for subject, most recent
// injected_time_utc first.
func (idx *Index) ListBySubject(ctx context.Context, subject string) ([]seal.Metadata, error) {
	return idx.query(ctx, `
		SELECT evaluation_id, injected_time_utc, subject, ruleset, input_sha256, output_sha256, trace_sha256, manifest_sha256
		FROM evaluation_index WHERE subject = $1 ORDER BY injected_time_utc DESC
	`, subject)
}

// ListByRuleset returns every indexed evaluation for ruleset, most recent
// injected_time_utc first.
func (idx *Index) ListByRuleset(ctx context.Context, ruleset string) ([]seal.Metadata, error) {
	return idx.query(ctx, `
		SELECT evaluation_id, injected_time_utc, subject, ruleset, input_sha256, output_sha256, trace_sha256, manifest_sha256
		FROM evaluation_index WHERE ruleset = $1 ORDER BY injected_time_utc DESC
	`, ruleset)
}

// ListByTimeRange returns every indexed evaluation with injected_time_utc in
// [from, to), both RFC 3339 strings, most recent first.
func (idx *Index) ListByTimeRange(ctx context.Context, from, to string) ([]seal.Metadata, error) {
	return idx.query(ctx, `
		SELECT evaluation_id, injected_time_utc, subject, ruleset, input_sha256, output_sha256, trace_sha256, manifest_sha256
		FROM evaluation_index WHERE injected_time_utc >= $1 AND injected_time_utc < $2 ORDER BY injected_time_utc DESC
	`, from, to)
}

func (idx *Index) query(ctx context.Context, q string, args ...interface{}) ([]seal.Metadata, error) {
	rows, err := idx.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]seal.Metadata, 0)
	for rows.Next() {
		var md seal.Metadata
		if err := rows.Scan(&md.EvaluationID, &md.InjectedTimeUTC, &md.Subject, &md.Ruleset,
			&md.InputSHA256, &md.OutputSHA256, &md.TraceSHA256, &md.ManifestSHA256); err != nil {
			return nil, fmt.Errorf("index: scan row: %w", err)
		}
		result = append(result, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate rows: %w", err)
	}
	return result, nil
}
