package notify

import (
	"context"
	"errors"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Store persists notifications and serves the two feeds: one scoped to a
// single user, one broadcast to every holder of a role. Delivery through
// the store is at-least-once; consumers dedupe by notification id.
type Store interface {
	Create(ctx context.Context, n *domain.Notification) error

	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error)
	ListByRole(ctx context.Context, role string, limit int) ([]domain.Notification, error)

	// MarkRead flips the read flag. It is the only mutation a stored
	// notification ever sees.
	MarkRead(ctx context.Context, id string) error

	// SubscribeUser and SubscribeRole stream notifications created after
	// the call. The channel closes when ctx is done.
	SubscribeUser(ctx context.Context, userID string) (<-chan domain.Notification, error)
	SubscribeRole(ctx context.Context, role string) (<-chan domain.Notification, error)
}
