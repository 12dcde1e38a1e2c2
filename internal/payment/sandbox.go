package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// SandboxGateway approves every charge with a generated reference. Used in
// development and tests; production wires the real provider adapter here.
type SandboxGateway struct{}

func (SandboxGateway) Initialize(ctx context.Context, amount float64, currency string, _ map[string]string) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Confirmation{
		Reference: fmt.Sprintf("sbx-%s-%s-%.2f", uuid.NewString()[:8], currency, amount),
	}, nil
}
