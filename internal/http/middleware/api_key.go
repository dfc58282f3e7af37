package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/model"
	"github.com/jmehdipour/intent-gateway/internal/util"
)

const (
	HeaderAPIKey    = "X-API-Key"
	HeaderRequestID = "X-Request-ID"

	keyCredential = "credential"
	keyRequestID  = "request_id"
	keyCustomer   = "customer"
)

// Resolver maps an API key to its customer.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (model.Customer, error)
}

// CredentialFromCtx returns the raw API key captured by Caller.
func CredentialFromCtx(c echo.Context) string {
	s, _ := c.Get(keyCredential).(string)
	return s
}

// RequestIDFromCtx returns the id assigned by Caller.
func RequestIDFromCtx(c echo.Context) string {
	s, _ := c.Get(keyRequestID).(string)
	return s
}

// CustomerFromCtx extracts the customer set by APIKeyMiddleware.
func CustomerFromCtx(c echo.Context) (model.Customer, bool) {
	cu, ok := c.Get(keyCustomer).(model.Customer)
	return cu, ok
}

// Caller captures the API key (X-API-Key or a bearer token) and assigns a
// request id. It does not authenticate: tool calls are authenticated by the
// dispatcher so that rejected keys are audited too.
func Caller() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			key := strings.TrimSpace(req.Header.Get(HeaderAPIKey))
			if key == "" {
				if auth := req.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
				}
			}
			c.Set(keyCredential, key)

			id := strings.TrimSpace(req.Header.Get(HeaderRequestID))
			if id == "" || len(id) > 64 {
				id = util.NewID()
			}
			c.Set(keyRequestID, id)
			c.Response().Header().Set(HeaderRequestID, id)
			return next(c)
		}
	}
}

// APIKeyMiddleware authenticates read-only routes against the directory and
// stores the customer in the context. Use it after Caller.
func APIKeyMiddleware(dir Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cu, err := dir.Resolve(c.Request().Context(), CredentialFromCtx(c))
			switch {
			case errors.Is(err, customer.ErrInactive):
				return c.JSON(http.StatusForbidden, map[string]string{"error": "auth.inactive", "message": "account is inactive"})
			case err != nil:
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "auth.invalid", "message": "invalid API key"})
			}
			c.Set(keyCustomer, cu)
			return next(c)
		}
	}
}
