package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// MemoryStore implements Store with in-memory storage and optimistic
// concurrency. Every product carries a version counter; a transaction
// records the version of each product it read and the commit step
// re-validates all of them under the write lock. A version that moved
// means another commit acted on the same product first, and the whole
// transaction fails with ErrTxConflict.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*productEntry
	orders   map[uuid.UUID]*domain.Order
	events   []*OutboxEvent
}

type productEntry struct {
	product domain.Product
	version uint64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*productEntry),
		orders:   make(map[uuid.UUID]*domain.Order),
	}
}

// memTx buffers all writes so that nothing touches shared state until the
// commit step has validated every read.
type memTx struct {
	store      *MemoryStore
	reads      map[string]uint64
	decrements map[string]int
	orders     []*domain.Order
	events     []*OutboxEvent
}

func (s *MemoryStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		store:      s,
		reads:      make(map[string]uint64),
		decrements: make(map[string]int),
	}
	if err := fn(tx); err != nil {
		return err // nothing was applied, buffered writes are discarded
	}
	return s.commit(tx)
}

func (s *MemoryStore) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every read before applying anything.
	for id, version := range tx.reads {
		entry, exists := s.products[id]
		if !exists || entry.version != version {
			return ErrTxConflict
		}
	}
	for id, qty := range tx.decrements {
		if s.products[id].product.Stock < qty {
			// Unreachable while decrements imply a validated read, kept as
			// a hard stop against the stock-negative invariant.
			return ErrInsufficientStock
		}
	}

	for id, qty := range tx.decrements {
		entry := s.products[id]
		entry.product.Stock -= qty
		entry.version++
	}
	for _, order := range tx.orders {
		s.orders[order.ID] = order
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (t *memTx) GetProductForUpdate(_ context.Context, productID string) (*domain.Product, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	entry, exists := t.store.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	if _, seen := t.reads[productID]; !seen {
		t.reads[productID] = entry.version
	}

	product := cloneProduct(&entry.product)
	product.Stock -= t.decrements[productID] // view includes buffered writes
	return product, nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	product, err := t.GetProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	if product.Stock < quantity {
		return ErrInsufficientStock
	}
	t.decrements[productID] += quantity
	return nil
}

func (t *memTx) CreateOrder(_ context.Context, order *domain.Order) error {
	t.orders = append(t.orders, cloneOrder(order))
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, event *OutboxEvent) error {
	t.events = append(t.events, event)
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	return cloneProduct(&entry.product), nil
}

// UpsertProduct replaces catalog state and bumps the version, so any
// in-flight transaction that read the old state fails its commit.
func (s *MemoryStore) UpsertProduct(_ context.Context, product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.products[product.ID]
	if !exists {
		s.products[product.ID] = &productEntry{product: *cloneProduct(product), version: 1}
		return nil
	}
	entry.product = *cloneProduct(product)
	entry.version++
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, exists := s.orders[orderID]
	if !exists {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*domain.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			orders = append(orders, cloneOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, change domain.StatusChange, event *OutboxEvent) (domain.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, exists := s.orders[orderID]
	if !exists {
		return "", ErrOrderNotFound
	}

	previous := order.Status
	order.Status = change.Status
	order.StatusHistory = append(order.StatusHistory, change)
	if event != nil {
		s.events = append(s.events, event)
	}
	return previous, nil
}

func (s *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*OutboxEvent
	for _, event := range s.events {
		if event.ProcessedAt == nil {
			events = append(events, event)
			if len(events) == limit {
				break
			}
		}
	}
	return events, nil
}

func (s *MemoryStore) MarkEventAsProcessed(_ context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range s.events {
		if event.ID == eventID {
			now := time.Now().UTC()
			event.ProcessedAt = &now
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cloneProduct(p *domain.Product) *domain.Product {
	clone := *p
	clone.Images = append([]string(nil), p.Images...)
	return &clone
}

func cloneOrder(o *domain.Order) *domain.Order {
	clone := *o
	clone.Items = append([]domain.OrderLineItem(nil), o.Items...)
	clone.StatusHistory = append([]domain.StatusChange(nil), o.StatusHistory...)
	return &clone
}
