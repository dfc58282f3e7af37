package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/model"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "mysql"), mock
}

func TestUsageInsertIsIdempotentOnRequestID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsageRepository(db)
	ts := time.Date(2025, 5, 24, 10, 0, 0, 0, time.UTC)
	rec := model.UsageRecord{ID: "u1", RequestID: "r1", CustomerID: 1, ToolName: "search_films", Cost: 1, Timestamp: ts, DayBucket: "2025-05-24"}

	mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE id = id")).
		WithArgs("u1", "r1", int64(1), "search_films", uint64(1), ts, "2025-05-24").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUsageRepository(db)
	ts := time.Date(2025, 5, 24, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE day_bucket BETWEEN ? AND ? AND customer_id = ?")).
		WithArgs("2025-05-01", "2025-05-31", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "request_id", "customer_id", "tool_name", "cost", "created_at", "day_bucket"}).
			AddRow("u1", "r1", 3, "search_films", 1, ts, "2025-05-24").
			AddRow("u2", "r2", 3, "get_revenue_summary", 3, ts, "2025-05-24"))

	recs, err := repo.List(context.Background(), 3, "2025-05-01", "2025-05-31")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(3), recs[1].Cost)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomersUpsert(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCustomersRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO gateway_customers")).
		WithArgs(int64(1), "acme", "hash", "basic", true).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), model.Customer{ID: 1, Name: "acme", APIKeyHash: "hash", PlanID: "basic", Active: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditInsertBatchUsesOneBlock(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAuditRepository(db)
	ts := time.Date(2025, 5, 24, 10, 0, 0, 0, time.UTC)
	size := 2

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO gateway.audit_log"))
	prep.ExpectExec().
		WithArgs("a1", ts, int64(1), "search_films", `{"title":"x"}`, "fp", int64(2), int64(12), uint8(1), "", "responded", "127.0.0.1", "curl").
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("a2", ts, int64(1), "search_films", `{}`, "fp2", nil, int64(1), uint8(0), "auth.invalid", "authenticate", "", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.InsertBatch(context.Background(), []model.AuditEntry{
		{ID: "a1", Timestamp: ts, CustomerID: 1, ToolName: "search_films", MaskedArguments: []byte(`{"title":"x"}`),
			ArgumentFingerprint: "fp", ResultSize: &size, LatencyMs: 12, Success: true, Stage: "responded", ClientIP: "127.0.0.1", UserAgent: "curl"},
		{ID: "a2", Timestamp: ts, CustomerID: 1, ToolName: "search_films", MaskedArguments: []byte(`{}`),
			ArgumentFingerprint: "fp2", LatencyMs: 1, Reason: "auth.invalid", Stage: "authenticate"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
