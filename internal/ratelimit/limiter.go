package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/intent-gateway/internal/metrics"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

// bucketTTL keeps yesterday's counter readable for a day after it closes.
const bucketTTL = 48 * time.Hour

// ErrUnavailable wraps counter store failures. No reservation was made.
var ErrUnavailable = errors.New("quota store unavailable")

// ExceededError is returned when the day's quota is used up. Nothing was
// incremented.
type ExceededError struct {
	Count   uint64
	Limit   uint64
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: %d/%d, resets at %s", e.Count, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Reservation is one admitted unit. Count is the counter after the
// increment, zero when the plan is unlimited.
type Reservation struct {
	Count     uint64
	Limit     *uint64
	ResetAt   time.Time
	Unlimited bool
}

// Store is an atomic bounded counter.
type Store interface {
	// IncrementBelow adds one to key unless it already reached limit.
	// It returns whether the increment happened and the resulting count.
	IncrementBelow(ctx context.Context, key string, limit uint64, ttl time.Duration) (bool, uint64, error)
	Get(ctx context.Context, key string) (uint64, error)
}

// Limiter enforces per-customer daily quotas over a Store.
type Limiter struct {
	store  Store
	prefix string
}

func New(store Store, prefix string) *Limiter {
	if prefix == "" {
		prefix = "quota:"
	}
	return &Limiter{store: store, prefix: prefix}
}

func (l *Limiter) key(customerID int64, day string) string {
	return l.prefix + strconv.FormatInt(customerID, 10) + ":" + day
}

// Reserve admits one call for customerID in the given UTC day bucket. A nil
// limit is unlimited and never touches the store.
func (l *Limiter) Reserve(ctx context.Context, customerID int64, day string, limit *uint64) (Reservation, error) {
	resetAt, err := resetAt(day)
	if err != nil {
		return Reservation{}, err
	}
	if limit == nil {
		metrics.QuotaReservations.WithLabelValues("unlimited").Inc()
		return Reservation{Unlimited: true, ResetAt: resetAt}, nil
	}

	ok, count, err := l.store.IncrementBelow(ctx, l.key(customerID, day), *limit, bucketTTL)
	if err != nil {
		metrics.QuotaReservations.WithLabelValues("error").Inc()
		return Reservation{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if !ok {
		metrics.QuotaReservations.WithLabelValues("exceeded").Inc()
		return Reservation{}, &ExceededError{Count: count, Limit: *limit, ResetAt: resetAt}
	}
	metrics.QuotaReservations.WithLabelValues("reserved").Inc()
	return Reservation{Count: count, Limit: limit, ResetAt: resetAt}, nil
}

// Usage returns the current count without changing it.
func (l *Limiter) Usage(ctx context.Context, customerID int64, day string) (uint64, error) {
	return l.store.Get(ctx, l.key(customerID, day))
}

func resetAt(day string) (time.Time, error) {
	d, err := model.ParseDay(day)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad day bucket %q: %w", day, err)
	}
	return model.NextDay(d), nil
}
