package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	sql := `
-- header comment
CREATE DATABASE IF NOT EXISTS gateway;

CREATE TABLE t (
    a Int64, -- trailing
    b String
) ENGINE = MergeTree
ORDER BY a;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS gateway", stmts[0])
	assert.Contains(t, stmts[1], "ORDER BY a")
	assert.NotContains(t, stmts[1], ";")
}

func TestParsePeriod(t *testing.T) {
	now := time.Date(2025, 3, 9, 22, 0, 0, 0, time.UTC)

	p, err := parsePeriod("", "", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-09", p.From.Format("2006-01-02"))
	assert.Equal(t, p.From, p.To)

	p, err = parsePeriod("2025-03-01", "2025-03-05", now)
	require.NoError(t, err)
	assert.Equal(t, 4*24*time.Hour, p.To.Sub(p.From))

	_, err = parsePeriod("2025-03-05", "2025-03-01", now)
	require.Error(t, err)
	_, err = parsePeriod("March", "", now)
	require.Error(t, err)
}
