package checkout

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/kobbycode/prestige-merchandise/internal/store"
)

const (
	defaultMaxAttempts = 5
	defaultBaseBackoff = 20 * time.Millisecond
)

// Transactor wraps the store's atomic unit in a bounded retry loop. A lost
// optimistic race (store.ErrTxConflict) is retried with exponential backoff
// and jitter; once the attempt budget runs out the conflict surfaces to the
// caller, who may retry the whole operation. Any other error ends the loop
// immediately.
type Transactor struct {
	store       store.Store
	maxAttempts int
	baseBackoff time.Duration
}

func NewTransactor(s store.Store) *Transactor {
	return &Transactor{
		store:       s,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

func (t *Transactor) Execute(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDelay(t.baseBackoff, attempt-1)):
			}
		}

		err = t.store.RunTx(ctx, fn)
		if !errors.Is(err, store.ErrTxConflict) {
			return err
		}
	}
	return err
}

func backoffDelay(base time.Duration, attempt int) time.Duration {
	exp := base << attempt
	jitter := time.Duration(rand.Int63n(int64(exp/2) + 1))
	return exp + jitter
}
