package http

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/intent-gateway/internal/dispatcher"
	"github.com/jmehdipour/intent-gateway/internal/http/middleware"
)

const maxBody = 64 << 10

var statusByCode = map[dispatcher.Code]int{
	dispatcher.CodeAuthInvalid:     http.StatusUnauthorized,
	dispatcher.CodeAuthInactive:    http.StatusForbidden,
	dispatcher.CodeToolNotInPlan:   http.StatusForbidden,
	dispatcher.CodeUnknownTool:     http.StatusForbidden,
	dispatcher.CodeQuotaExceeded:   http.StatusTooManyRequests,
	dispatcher.CodeUnknownArgument: http.StatusBadRequest,
	dispatcher.CodeMissingRequired: http.StatusBadRequest,
	dispatcher.CodeOutOfDomain:     http.StatusBadRequest,
	dispatcher.CodeOverLimit:       http.StatusBadRequest,
	dispatcher.CodeMalformed:       http.StatusBadRequest,
	dispatcher.CodeExecTransient:   http.StatusServiceUnavailable,
	dispatcher.CodeExecInvalid:     http.StatusInternalServerError,
	dispatcher.CodeCanceled:        http.StatusRequestTimeout,
}

type quotaResp struct {
	Used     uint64    `json:"used"`
	Limit    *uint64   `json:"limit"`
	ResetsAt time.Time `json:"resets_at"`
}

func callToolHandler(d Dispatcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		// a body that cannot be decoded is still dispatched so the call is
		// authenticated and audited before it is refused
		args, argsErr := readArgs(c.Request().Body)

		res, err := d.Dispatch(c.Request().Context(), dispatcher.Call{
			RequestID:    middleware.RequestIDFromCtx(c),
			Credential:   middleware.CredentialFromCtx(c),
			Tool:         c.Param("name"),
			Arguments:    args,
			ArgumentsErr: argsErr,
			ClientIP:     c.RealIP(),
			UserAgent:    c.Request().UserAgent(),
		})
		if err != nil {
			return writeError(c, err)
		}

		body := map[string]any{
			"request_id": res.RequestID,
			"tool":       res.Tool,
			"row_count":  res.RowCount,
			"truncated":  res.Truncated,
			"rows":       res.Rows,
		}
		if !res.Quota.Unlimited {
			body["quota"] = quotaResp{Used: res.Quota.Count, Limit: res.Quota.Limit, ResetsAt: res.Quota.ResetAt}
		}
		return c.JSON(http.StatusOK, body)
	}
}

// readArgs reads at most maxBody bytes. A longer body is refused whole
// rather than decoded from a truncated prefix.
func readArgs(r io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxBody+1))
	if err != nil {
		return nil, errors.Join(dispatcher.ErrMalformedArguments, err)
	}
	if len(raw) > maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", dispatcher.ErrMalformedArguments, maxBody)
	}
	return dispatcher.DecodeArguments(raw)
}

func writeError(c echo.Context, err error) error {
	var de *dispatcher.Error
	if !errors.As(err, &de) {
		c.Logger().Errorf("dispatch returned untyped error: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": string(dispatcher.CodeExecInvalid), "message": "internal error"})
	}
	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if de.Code == dispatcher.CodeQuotaExceeded && de.RetryAfter > 0 {
		secs := int64(math.Ceil(de.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	return c.JSON(status, map[string]any{
		"error":      de.Code,
		"message":    de.Message,
		"retryable":  de.Retryable,
		"request_id": middleware.RequestIDFromCtx(c),
	})
}

type toolResp struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// listToolsHandler lists only the tools the caller's plan allows.
func listToolsHandler(plans Plans, cat Catalog) echo.HandlerFunc {
	return func(c echo.Context) error {
		cu, ok := middleware.CustomerFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "auth.invalid"})
		}
		p, err := plans.Get(cu.PlanID)
		if err != nil {
			c.Logger().Errorf("customer %d has unknown plan %q", cu.ID, cu.PlanID)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": string(dispatcher.CodeExecInvalid)})
		}

		out := make([]toolResp, 0)
		for _, name := range cat.Names() {
			if !p.AllowedTools.Contains(name) {
				continue
			}
			t, _ := cat.Get(name)
			out = append(out, toolResp{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema()})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"plan":  p.ID,
			"count": len(out),
			"tools": out,
		})
	}
}
