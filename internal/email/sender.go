package email

import (
	"context"
	"log"
)

// Sender is the outbound email collaborator. Delivery is best-effort; the
// engine never blocks or fails an operation because of it.
type Sender interface {
	Send(ctx context.Context, template, recipient string, data map[string]string) error
}

// LogSender writes outbound mail to the process log. Stands in for the real
// transactional mail provider in development and tests.
type LogSender struct{}

func (LogSender) Send(_ context.Context, template, recipient string, data map[string]string) error {
	log.Printf("email %q to %s: %v", template, recipient, data)
	return nil
}
