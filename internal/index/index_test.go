package index

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lamont-Labs/VeraSeal/internal/seal"
)

func newMockIndex(t *testing.T) (*Index, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS evaluation_index").WillReturnResult(sqlmock.NewResult(0, 0))
	idx, err := New(context.Background(), db, nil)
	require.NoError(t, err)
	return idx, mock
}

func sampleMetadata() seal.Metadata {
	return seal.Metadata{
		EvaluationID:    "abc123",
		InjectedTimeUTC: "2024-01-01T00:00:00Z",
		Subject:         "subject-1",
		Ruleset:         "ruleset-1",
		InputSHA256:     "in",
		OutputSHA256:    "out",
		TraceSHA256:     "trace",
		ManifestSHA256:  "manifest",
	}
}

func TestRecord_InsertsRow(t *testing.T) {
	idx, mock := newMockIndex(t)
	md := sampleMetadata()

	mock.ExpectExec("INSERT INTO evaluation_index").
		WithArgs(md.EvaluationID, md.InjectedTimeUTC, md.Subject, md.Ruleset, md.InputSHA256, md.OutputSHA256, md.TraceSHA256, md.ManifestSHA256).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, idx.Record(context.Background(), md))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordBestEffort_SwallowsError(t *testing.T) {
	idx, mock := newMockIndex(t)
	md := sampleMetadata()

	mock.ExpectExec("INSERT INTO evaluation_index").WillReturnError(assertErr{})

	require.NotPanics(t, func() {
		idx.RecordBestEffort(context.Background(), md)
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestGet_ReturnsNotFound(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery("SELECT .* FROM evaluation_index WHERE evaluation_id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"evaluation_id", "injected_time_utc", "subject", "ruleset",
			"input_sha256", "output_sha256", "trace_sha256", "manifest_sha256",
		}))

	_, err := idx.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsRow(t *testing.T) {
	idx, mock := newMockIndex(t)
	md := sampleMetadata()

	mock.ExpectQuery("SELECT .* FROM evaluation_index WHERE evaluation_id").
		WithArgs(md.EvaluationID).
		WillReturnRows(sqlmock.NewRows([]string{
			"evaluation_id", "injected_time_utc", "subject", "ruleset",
			"input_sha256", "output_sha256", "trace_sha256", "manifest_sha256",
		}).AddRow(md.EvaluationID, md.InjectedTimeUTC, md.Subject, md.Ruleset, md.InputSHA256, md.OutputSHA256, md.TraceSHA256, md.ManifestSHA256))

	got, err := idx.Get(context.Background(), md.EvaluationID)
	require.NoError(t, err)
	assert.Equal(t, md, got)
}

func TestListBySubject_ReturnsMatchingRows(t *testing.T) {
	idx, mock := newMockIndex(t)
	md := sampleMetadata()

	mock.ExpectQuery("SELECT .* FROM evaluation_index WHERE subject").
		WithArgs(md.Subject).
		WillReturnRows(sqlmock.NewRows([]string{
			"evaluation_id", "injected_time_utc", "subject", "ruleset",
			"input_sha256", "output_sha256", "trace_sha256", "manifest_sha256",
		}).AddRow(md.EvaluationID, md.InjectedTimeUTC, md.Subject, md.Ruleset, md.InputSHA256, md.OutputSHA256, md.TraceSHA256, md.ManifestSHA256))

	rows, err := idx.ListBySubject(context.Background(), md.Subject)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, md.EvaluationID, rows[0].EvaluationID)
}

func TestListByTimeRange_EmptyResultIsNotNil(t *testing.T) {
	idx, mock := newMockIndex(t)

	mock.ExpectQuery("SELECT .* FROM evaluation_index WHERE injected_time_utc").
		WithArgs("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z").
		WillReturnRows(sqlmock.NewRows([]string{
			"evaluation_id", "injected_time_utc", "subject", "ruleset",
			"input_sha256", "output_sha256", "trace_sha256", "manifest_sha256",
		}))

	rows, err := idx.ListByTimeRange(context.Background(), "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
