package store

import (
	"context"
	"errors"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/config"
)

const filmsByRating = "SELECT title, rating FROM film WHERE rating = ? LIMIT ?"

func newTestExecutor(t *testing.T, threshold int) (*Executor, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := NewExecutor(sqlx.NewDb(db, "mysql"), map[string]string{"films": filmsByRating}, config.ExecutorConfig{
		QueryTimeout: time.Second,
		Breaker:      config.BreakerConfig{FailThreshold: threshold, OpenForMs: 60_000},
	})
	return e, mock
}

func TestExecuteQuery(t *testing.T) {
	e, mock := newTestExecutor(t, 3)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(filmsByRating)).
		WithArgs("PG", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"title", "rating"}).
			AddRow([]byte("ACADEMY DINOSAUR"), "PG").
			AddRow([]byte("AGENT TRUMAN"), "PG"))
	mock.ExpectCommit()

	rows, err := e.ExecuteQuery(context.Background(), "films", []any{"PG", int64(2)}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ACADEMY DINOSAUR", rows[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryStopsAfterMaxRowsPlusOne(t *testing.T) {
	e, mock := newTestExecutor(t, 3)

	r := sqlmock.NewRows([]string{"title", "rating"})
	for i := 0; i < 10; i++ {
		r.AddRow("film", "G")
	}
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(filmsByRating)).WillReturnRows(r)
	mock.ExpectCommit()

	rows, err := e.ExecuteQuery(context.Background(), "films", []any{"G", int64(50)}, 3)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestExecuteQueryRejectsBadTemplateUse(t *testing.T) {
	e, mock := newTestExecutor(t, 3)

	_, err := e.ExecuteQuery(context.Background(), "nope", nil, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = e.ExecuteQuery(context.Background(), "films", []any{"PG"}, 0)
	assert.ErrorIs(t, err, ErrInvalid)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecuteQueryClassifiesDriverErrors(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{&mysql.MySQLError{Number: 1064, Message: "syntax"}, ErrInvalid},
		{&mysql.MySQLError{Number: 1146, Message: "no such table"}, ErrInvalid},
		{&mysql.MySQLError{Number: 1213, Message: "deadlock"}, ErrTransient},
		{&mysql.MySQLError{Number: 1040, Message: "too many connections"}, ErrTransient},
		{mysql.ErrInvalidConn, ErrTransient},
		{&net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrTransient},
		{context.DeadlineExceeded, ErrTransient},
	}
	for _, c := range cases {
		e, mock := newTestExecutor(t, 100)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(filmsByRating)).WillReturnError(c.err)
		mock.ExpectRollback()

		_, err := e.ExecuteQuery(context.Background(), "films", []any{"PG", int64(1)}, 0)
		assert.ErrorIs(t, err, c.want, "%v", c.err)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	e, mock := newTestExecutor(t, 2)
	for i := 0; i < 2; i++ {
		mock.ExpectBegin().WillReturnError(mysql.ErrInvalidConn)
	}

	for i := 0; i < 2; i++ {
		_, err := e.ExecuteQuery(context.Background(), "films", []any{"PG", int64(1)}, 0)
		assert.ErrorIs(t, err, ErrTransient)
	}

	// open: no further round trip to the store
	_, err := e.ExecuteQuery(context.Background(), "films", []any{"PG", int64(1)}, 0)
	assert.ErrorIs(t, err, ErrTransient)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker(1, time.Minute)
	b.now = func() time.Time { return now }

	require.True(t, b.TryAcquire())
	b.OnFailure()
	assert.False(t, b.TryAcquire())

	now = now.Add(2 * time.Minute)
	assert.True(t, b.TryAcquire(), "trial call after openFor")
	assert.False(t, b.TryAcquire(), "one trial call at a time")

	b.OnFailure()
	assert.False(t, b.TryAcquire())

	now = now.Add(2 * time.Minute)
	require.True(t, b.TryAcquire())
	b.OnSuccess()
	assert.True(t, b.TryAcquire())
	assert.True(t, b.TryAcquire())
}
