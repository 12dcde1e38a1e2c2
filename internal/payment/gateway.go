package payment

import (
	"context"
	"errors"
)

var (
	// ErrCancelled means the customer closed the payment dialog before the
	// gateway confirmed the charge. By contract nothing has been committed
	// at that point, so the caller must behave as if checkout never ran.
	ErrCancelled = errors.New("payment cancelled by customer")

	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Confirmation is the gateway's proof of a successful charge.
type Confirmation struct {
	Reference string
}

// Gateway is the external payment collaborator. Initialize blocks until the
// gateway confirms, the customer cancels, or ctx is done. Prepaid checkout
// calls it strictly before the atomic stock/order commit.
type Gateway interface {
	Initialize(ctx context.Context, amount float64, currency string, metadata map[string]string) (*Confirmation, error)
}
