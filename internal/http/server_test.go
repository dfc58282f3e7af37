package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmehdipour/intent-gateway/internal/access"
	"github.com/jmehdipour/intent-gateway/internal/audit"
	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/config"
	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/dispatcher"
	"github.com/jmehdipour/intent-gateway/internal/plan"
	"github.com/jmehdipour/intent-gateway/internal/ratelimit"
	"github.com/jmehdipour/intent-gateway/internal/store"
	"github.com/jmehdipour/intent-gateway/internal/usage"
)

type stubExecutor struct {
	rows []store.Row
	err  error
}

func (s stubExecutor) ExecuteQuery(context.Context, string, []any, int) ([]store.Row, error) {
	return s.rows, s.err
}

func u64(n uint64) *uint64 { return &n }

type fixture struct {
	srv  *Server
	sink *audit.MemorySink
}

func newFixture(t *testing.T, exec dispatcher.Executor) *fixture {
	t.Helper()
	cat := catalog.MustSakila()
	table, err := plan.Build([]config.PlanConfig{
		{ID: "free", DailyQuota: u64(1), MaxResultRows: u64(10), AllowedTools: []string{"search_films", "list_categories"}},
		{ID: "enterprise", AllowedTools: []string{"*"}},
	}, cat)
	require.NoError(t, err)
	plans := plan.NewRegistry(table)

	dir := customer.NewDirectory(customer.NewStaticSource([]config.CustomerConfig{
		{ID: 1, Name: "free", APIKey: "k-free", PlanID: "free", Active: true},
		{ID: 2, Name: "big", APIKey: "k-ent", PlanID: "enterprise", Active: true},
		{ID: 3, Name: "off", APIKey: "k-off", PlanID: "free", Active: false},
	}))
	require.NoError(t, dir.Refresh(context.Background()))

	sink := audit.NewMemorySink()
	meter := usage.NewMeter(usage.NewMemoryStore(), usage.Pricing{Default: 2}, config.UsageConfig{WriteTimeout: time.Second})
	d := dispatcher.New(dispatcher.Deps{
		Directory: dir,
		Plans:     plans,
		Access:    access.NewController(cat),
		Limiter:   ratelimit.New(ratelimit.NewMemoryStore(), ""),
		Catalog:   cat,
		Executor:  exec,
		Meter:     meter,
		Audit:     audit.NewLogger(sink, config.AuditConfig{WriteTimeout: time.Second}),
	}, catalog.PolicyClamp)

	return &fixture{
		srv: NewServer(Deps{
			Dispatcher: d,
			Directory:  dir,
			Plans:      plans,
			Catalog:    cat,
			Usage:      meter,
		}),
		sink: sink,
	}
}

func (f *fixture) do(method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCallTool(t *testing.T) {
	f := newFixture(t, stubExecutor{rows: []store.Row{{"name": "Action", "film_count": 64}}})

	rec := f.do(http.MethodPost, "/v1/tools/list_categories", "k-free", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	body := decode(t, rec)
	assert.Equal(t, "list_categories", body["tool"])
	assert.EqualValues(t, 1, body["row_count"])
	assert.Equal(t, false, body["truncated"])
	quota := body["quota"].(map[string]any)
	assert.EqualValues(t, 1, quota["used"])
	assert.EqualValues(t, 1, quota["limit"])

	require.Len(t, f.sink.Entries(), 1)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), f.sink.Entries()[0].ID)
}

func TestCallToolErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		key    string
		body   string
		status int
		code   string
	}{
		{"missing key", "/v1/tools/list_categories", "", "", http.StatusUnauthorized, "auth.invalid"},
		{"inactive", "/v1/tools/list_categories", "k-off", "", http.StatusForbidden, "auth.inactive"},
		{"not in plan", "/v1/tools/get_revenue_summary", "k-free", "", http.StatusForbidden, "access.tool_not_in_plan"},
		{"unknown tool", "/v1/tools/run_sql", "k-ent", "", http.StatusForbidden, "access.unknown_tool"},
		{"bad argument", "/v1/tools/search_films", "k-ent", `{"rating":"XXX"}`, http.StatusBadRequest, "validation.out_of_domain"},
		{"unknown argument", "/v1/tools/search_films", "k-ent", `{"query":"select 1"}`, http.StatusBadRequest, "validation.unknown_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, stubExecutor{})
			rec := f.do(http.MethodPost, tc.path, tc.key, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["error"])
			assert.Len(t, f.sink.Entries(), 1)
		})
	}
}

func TestCallToolMalformedBody(t *testing.T) {
	oversized := `{"title":"` + strings.Repeat("a", maxBody) + `"}`
	for _, body := range []string{"[1,2]", "{", `"text"`, `{"title":"x"} {}`, oversized} {
		f := newFixture(t, stubExecutor{})
		rec := f.do(http.MethodPost, "/v1/tools/search_films", "k-ent", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "validation.malformed", decode(t, rec)["error"])

		entries := f.sink.Entries()
		require.Len(t, entries, 1)
		assert.EqualValues(t, 2, entries[0].CustomerID)
		assert.Equal(t, "validate", entries[0].Stage)
		assert.Equal(t, "validation.malformed", entries[0].Reason)
		assert.Equal(t, rec.Header().Get("X-Request-ID"), entries[0].ID)
	}
}

func TestCallToolMalformedBodyStillAuthenticated(t *testing.T) {
	f := newFixture(t, stubExecutor{})
	rec := f.do(http.MethodPost, "/v1/tools/search_films", "wrong", "{")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Len(t, f.sink.Entries(), 1)
	assert.Equal(t, "authenticate", f.sink.Entries()[0].Stage)
}

func TestCallToolNullBodyIsNoArguments(t *testing.T) {
	f := newFixture(t, stubExecutor{})
	rec := f.do(http.MethodPost, "/v1/tools/list_categories", "k-ent", "null")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQuotaExceededSetsRetryAfter(t *testing.T) {
	f := newFixture(t, stubExecutor{})

	rec := f.do(http.MethodPost, "/v1/tools/list_categories", "k-free", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/v1/tools/list_categories", "k-free", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, secs, 0)
	assert.LessOrEqual(t, secs, 86400)
	assert.Equal(t, true, decode(t, rec)["retryable"])
}

func TestTransientMapsTo503(t *testing.T) {
	f := newFixture(t, stubExecutor{err: store.ErrTransient})
	rec := f.do(http.MethodPost, "/v1/tools/list_categories", "k-ent", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "execution.transient", decode(t, rec)["error"])
}

func TestListToolsFiltersByPlan(t *testing.T) {
	f := newFixture(t, stubExecutor{})

	rec := f.do(http.MethodGet, "/v1/tools", "k-free", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "free", body["plan"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 2)
	first := tools[0].(map[string]any)
	assert.Equal(t, "list_categories", first["name"])
	assert.NotNil(t, first["input_schema"])

	rec = f.do(http.MethodGet, "/v1/tools", "k-ent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["tools"].([]any), 18)

	rec = f.do(http.MethodGet, "/v1/tools", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	// listing is not a tool call
	assert.Empty(t, f.sink.Entries())
}

func TestUsageReport(t *testing.T) {
	f := newFixture(t, stubExecutor{})
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/v1/tools/list_categories", "k-ent", "").Code)
	}

	rec := f.do(http.MethodGet, "/v1/usage", "k-ent", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 3, body["total_calls"])
	assert.EqualValues(t, 6, body["total_cost"])
	tools := body["tools"].(map[string]any)
	assert.EqualValues(t, 3, tools["list_categories"].(map[string]any)["count"])

	rec = f.do(http.MethodGet, "/v1/usage?from=2025-02-10&to=2025-02-01", "k-ent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodGet, "/v1/usage?from=yesterday", "k-ent", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, stubExecutor{})
	rec := f.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
