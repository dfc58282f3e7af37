package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/intent-gateway/internal/access"
	"github.com/jmehdipour/intent-gateway/internal/catalog"
	"github.com/jmehdipour/intent-gateway/internal/customer"
	"github.com/jmehdipour/intent-gateway/internal/ratelimit"
	"github.com/jmehdipour/intent-gateway/internal/store"
)

// Code is the typed failure reason recorded in the audit log.
type Code string

const (
	CodeAuthInvalid     Code = "auth.invalid"
	CodeAuthInactive    Code = "auth.inactive"
	CodeToolNotInPlan   Code = "access.tool_not_in_plan"
	CodeUnknownTool     Code = "access.unknown_tool"
	CodeQuotaExceeded   Code = "ratelimit.exceeded"
	CodeUnknownArgument Code = "validation.unknown_argument"
	CodeMissingRequired Code = "validation.missing_required"
	CodeOutOfDomain     Code = "validation.out_of_domain"
	CodeOverLimit       Code = "validation.over_limit"
	CodeMalformed       Code = "validation.malformed"
	CodeExecTransient   Code = "execution.transient"
	CodeExecInvalid     Code = "execution.invalid"
	CodeCanceled        Code = "canceled"
)

// Error is what callers see. Message never carries store or driver text.
type Error struct {
	Code       Code
	Message    string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *Error) Error() string { return e.Message }

var errCanceled = errors.New("call canceled")

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("stage panic: %v", p.v) }

var validationCodes = map[catalog.ErrorCode]Code{
	catalog.UnknownArgument: CodeUnknownArgument,
	catalog.MissingRequired: CodeMissingRequired,
	catalog.OutOfDomain:     CodeOutOfDomain,
	catalog.OverLimit:       CodeOverLimit,
	catalog.Malformed:       CodeMalformed,
}

var validationMessages = map[catalog.ErrorCode]string{
	catalog.UnknownArgument: "argument %q is not accepted by this tool",
	catalog.MissingRequired: "argument %q is required",
	catalog.OutOfDomain:     "argument %q has a value outside its allowed range",
	catalog.OverLimit:       "argument %q exceeds the row limit of your plan",
	catalog.Malformed:       "arguments must be a JSON object",
}

// toError maps a stage failure to the caller-facing error. now is used for
// Retry-After on quota failures.
func toError(err error, now time.Time) *Error {
	var ex *ratelimit.ExceededError
	var ve *catalog.ValidationError
	switch {
	case errors.Is(err, errCanceled), errors.Is(err, context.Canceled):
		return &Error{Code: CodeCanceled, Message: "request canceled"}
	case errors.Is(err, customer.ErrInvalidCredential):
		return &Error{Code: CodeAuthInvalid, Message: "invalid API key"}
	case errors.Is(err, customer.ErrInactive):
		return &Error{Code: CodeAuthInactive, Message: "account is inactive"}
	case errors.Is(err, access.ErrUnknownTool):
		return &Error{Code: CodeUnknownTool, Message: "unknown tool"}
	case errors.Is(err, access.ErrToolNotInPlan):
		return &Error{Code: CodeToolNotInPlan, Message: "tool is not included in your plan"}
	case errors.As(err, &ex):
		return &Error{
			Code:       CodeQuotaExceeded,
			Message:    fmt.Sprintf("daily quota of %d calls used up, resets at %s", ex.Limit, ex.ResetAt.Format(time.RFC3339)),
			Retryable:  true,
			RetryAfter: ex.ResetAt.Sub(now),
		}
	case errors.As(err, &ve):
		msg := validationMessages[ve.Code]
		if ve.Argument != "" {
			msg = fmt.Sprintf(msg, ve.Argument)
		}
		return &Error{Code: validationCodes[ve.Code], Message: msg}
	case errors.Is(err, store.ErrTransient), errors.Is(err, ratelimit.ErrUnavailable):
		return &Error{Code: CodeExecTransient, Message: "service temporarily unavailable, retry later", Retryable: true}
	default:
		// store.ErrInvalid, unknown plan, stage panics
		return &Error{Code: CodeExecInvalid, Message: "internal error"}
	}
}
