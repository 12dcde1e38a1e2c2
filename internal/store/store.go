package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// Common errors returned by the store
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTxConflict        = errors.New("transaction conflict, retry the operation")
)

// OutboxEvent is a row of the transactional outbox. Events are written in
// the same atomic unit as the state change they describe and published to
// Kafka by the poller afterwards, giving at-least-once delivery.
type OutboxEvent struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewOutboxEvent marshals payload and stamps a fresh event id.
func NewOutboxEvent(eventType, aggregateID string, payload any) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     data,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Tx is the view of the store inside one atomic unit. Reads taken through
// GetProductForUpdate are protected against concurrent modification: if
// another transaction commits a change to a product read here, the whole
// unit fails with ErrTxConflict instead of acting on the stale value.
type Tx interface {
	GetProductForUpdate(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock buffers a stock decrement. It fails with
	// ErrInsufficientStock rather than ever letting stock go negative.
	DecrementStock(ctx context.Context, productID string, quantity int) error

	CreateOrder(ctx context.Context, order *domain.Order) error

	AppendEvent(ctx context.Context, event *OutboxEvent) error
}

// Store is the transactional data store the engine runs against. RunTx is
// the single atomic read-modify-write primitive; everything else is a
// request-scoped read or an independent later mutation.
type Store interface {
	// RunTx executes fn inside one atomic unit. Either every write fn
	// issued is committed together, or none are. A lost optimistic race
	// surfaces as ErrTxConflict; the caller owns the retry policy.
	RunTx(ctx context.Context, fn func(tx Tx) error) error

	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	UpsertProduct(ctx context.Context, product *domain.Product) error

	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)

	// UpdateOrderStatus persists the new status, appends change to the
	// order's history without rewriting prior entries, and commits event
	// in the same unit. It returns the status the order held before.
	// Concurrent updates to the same order are last-writer-wins.
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, change domain.StatusChange, event *OutboxEvent) (domain.OrderStatus, error)

	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, eventID uuid.UUID) error

	Close() error
}
