package customer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmehdipour/intent-gateway/internal/logger"
	"github.com/jmehdipour/intent-gateway/internal/model"
)

var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrInactive          = errors.New("customer inactive")
)

// Source loads the full customer list. repository.CustomersRepository and
// StaticSource implement it.
type Source interface {
	ListAll(ctx context.Context) ([]model.Customer, error)
}

// HashKey is the stored form of an API key.
func HashKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

type snapshot struct {
	byHash map[string]model.Customer
}

// Directory resolves credentials against an in-memory snapshot that
// Refresh replaces as a whole.
type Directory struct {
	src  Source
	snap atomic.Pointer[snapshot]
}

func NewDirectory(src Source) *Directory {
	d := &Directory{src: src}
	d.snap.Store(&snapshot{byHash: map[string]model.Customer{}})
	return d
}

// Resolve maps a credential to its customer. It never blocks.
func (d *Directory) Resolve(_ context.Context, credential string) (model.Customer, error) {
	if credential == "" {
		return model.Customer{}, ErrInvalidCredential
	}
	c, ok := d.snap.Load().byHash[HashKey(credential)]
	if !ok {
		return model.Customer{}, ErrInvalidCredential
	}
	if !c.Active {
		return c, ErrInactive
	}
	return c, nil
}

// Refresh reloads all customers. On error the previous snapshot stays.
func (d *Directory) Refresh(ctx context.Context) error {
	list, err := d.src.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("load customers: %w", err)
	}
	next := &snapshot{byHash: make(map[string]model.Customer, len(list))}
	for _, c := range list {
		if c.APIKeyHash == "" {
			continue
		}
		next.byHash[c.APIKeyHash] = c
	}
	d.snap.Store(next)
	return nil
}

func (d *Directory) Len() int {
	return len(d.snap.Load().byHash)
}

// Run refreshes on every tick until ctx is done.
func (d *Directory) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = 30 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := d.Refresh(ctx); err != nil {
				logger.Log.Warn("customer refresh failed, keeping previous snapshot", zap.Error(err))
				continue
			}
			logger.Log.Debug("customers refreshed", zap.Int("count", d.Len()))
		}
	}
}
