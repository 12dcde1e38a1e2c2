package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/email"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
	"github.com/kobbycode/prestige-merchandise/internal/store"
)

// ErrInvalidStatus rejects a transition to a status outside the lifecycle.
type ErrInvalidStatus struct {
	Status domain.OrderStatus
}

func (e *ErrInvalidStatus) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// Service drives the order status lifecycle and read-side order access.
type Service struct {
	store      store.Store
	notifs     notify.Store
	email      email.Sender
	dispatcher *notify.Dispatcher
}

func NewService(st store.Store, notifs notify.Store, sender email.Sender, dispatcher *notify.Dispatcher) *Service {
	return &Service{
		store:      st,
		notifs:     notifs,
		email:      sender,
		dispatcher: dispatcher,
	}
}

// canTransition gates status transitions. Any state may currently move to
// any other state, matching the behavior shipped to production; swapping in
// a forward-only transition table only touches this function.
func canTransition(from, to domain.OrderStatus) bool {
	return true
}

// UpdateStatus persists the new status and appends to the order's history.
// Concurrent updates to the same order are last-writer-wins on the status
// field; the history keeps both entries. Each successful transition fires
// best-effort notifications and an email, none of which can fail the call.
func (s *Service) UpdateStatus(ctx context.Context, actor domain.Actor, orderID uuid.UUID, next domain.OrderStatus) error {
	if !next.Valid() {
		return &ErrInvalidStatus{Status: next}
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !canTransition(order.Status, next) {
		return &ErrInvalidStatus{Status: next}
	}

	change := domain.StatusChange{Status: next, Timestamp: time.Now().UTC()}
	event, err := store.NewOutboxEvent("order.status_changed", orderID.String(), map[string]any{
		"order_id":   orderID.String(),
		"from":       order.Status,
		"to":         next,
		"changed_by": actor.ID,
		"changed_at": change.Timestamp,
	})
	if err != nil {
		return err
	}

	previous, err := s.store.UpdateOrderStatus(ctx, orderID, change, event)
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(s.transitionEffects(order, previous, next)...)
	return nil
}

func (s *Service) transitionEffects(order *domain.Order, from, to domain.OrderStatus) []notify.Effect {
	now := time.Now().UTC()
	message := fmt.Sprintf("Order %s is now %s", shortID(order.ID), to)
	var effects []notify.Effect

	// The customer notification is suppressed when the owning account is
	// staff; staff already see the role broadcast.
	if !order.StaffOrder && order.UserID != "" {
		n := &domain.Notification{
			ID:        uuid.NewString(),
			UserID:    order.UserID,
			Type:      domain.NotificationOrderStatus,
			Message:   message,
			Link:      "/orders/" + order.ID.String(),
			CreatedAt: now,
		}
		effects = append(effects, notify.Effect{
			Name: "customer-status-changed",
			Run: func(ctx context.Context) error {
				return s.notifs.Create(ctx, n)
			},
		})
	}

	staffNote := &domain.Notification{
		ID:        uuid.NewString(),
		Role:      domain.RoleStaff,
		Type:      domain.NotificationOrderStatus,
		Message:   fmt.Sprintf("Order %s moved %s -> %s", shortID(order.ID), from, to),
		Link:      "/admin/orders/" + order.ID.String(),
		CreatedAt: now,
	}
	effects = append(effects, notify.Effect{
		Name: "staff-status-changed",
		Run: func(ctx context.Context) error {
			return s.notifs.Create(ctx, staffNote)
		},
	})

	if order.Customer.Email != "" {
		recipient := order.Customer.Email
		effects = append(effects, notify.Effect{
			Name: "status-email",
			Run: func(ctx context.Context) error {
				return s.email.Send(ctx, "order-status-changed", recipient, map[string]string{
					"order_id": order.ID.String(),
					"from":     from.String(),
					"to":       to.String(),
					"customer": order.Customer.Name,
				})
			},
		})
	}
	return effects
}

// Track returns an order only when the submitted contact matches the email
// or phone stored on it, so guests cannot probe ids they do not own.
func (s *Service) Track(ctx context.Context, orderID uuid.UUID, contact string) (*domain.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.ContactMatches(contact) {
		return nil, store.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	return s.store.ListOrdersByUser(ctx, userID)
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
