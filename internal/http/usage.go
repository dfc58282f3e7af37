package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jmehdipour/intent-gateway/internal/http/middleware"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/usage"
)

const maxUsageSpan = 366 * 24 * time.Hour

// usageHandler returns the caller's billing aggregate for ?from=&to= (UTC
// days, inclusive). Both default to today.
func usageHandler(meter UsageReader, now func() time.Time) echo.HandlerFunc {
	return func(c echo.Context) error {
		cu, ok := middleware.CustomerFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "auth.invalid"})
		}

		today, _ := model.ParseDay(model.DayBucket(now()))
		from, to := today, today
		if v := c.QueryParam("from"); v != "" {
			d, err := model.ParseDay(v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request", "message": "from must be YYYY-MM-DD"})
			}
			from = d
		}
		if v := c.QueryParam("to"); v != "" {
			d, err := model.ParseDay(v)
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request", "message": "to must be YYYY-MM-DD"})
			}
			to = d
		}
		if to.Before(from) || to.Sub(from) > maxUsageSpan {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request", "message": "invalid period"})
		}

		s, err := meter.Aggregate(c.Request().Context(), cu.ID, usage.Period{From: from, To: to})
		if err != nil {
			c.Logger().Errorf("usage aggregate failed: %v", err)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "query failed"})
		}
		return c.JSON(http.StatusOK, s)
	}
}
