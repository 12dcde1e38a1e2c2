package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// Effect is one post-commit side effect: a notification write, an outbound
// email. Effects run after the atomic unit has committed and are never
// allowed to fail or delay the operation that produced them.
type Effect struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher executes effects in their own goroutines, detached from the
// request context. Failures are logged and swallowed; completion order
// between effects is not guaranteed.
type Dispatcher struct {
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{timeout: timeout}
}

func (d *Dispatcher) Dispatch(effects ...Effect) {
	for _, effect := range effects {
		d.wg.Add(1)
		go func(e Effect) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("effect %s panicked: %v", e.Name, r)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := e.Run(ctx); err != nil {
				log.Printf("effect %s failed: %v", e.Name, err)
			}
		}(effect)
	}
}

// Wait blocks until every dispatched effect has finished. Used during
// shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
