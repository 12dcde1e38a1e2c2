package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

func seedProduct(t *testing.T, s *MemoryStore, id string, stock int) {
	t.Helper()
	err := s.UpsertProduct(context.Background(), &domain.Product{
		ID:    id,
		Name:  "Product " + id,
		Price: 10,
		Stock: stock,
	})
	require.NoError(t, err)
}

func testOrder() *domain.Order {
	now := time.Now().UTC()
	return &domain.Order{
		ID:            uuid.New(),
		UserID:        "user-1",
		Customer:      domain.CustomerDetails{Name: "Ama", Email: "ama@example.com", Address: "Accra"},
		Amount:        10,
		Currency:      "GHS",
		ExchangeRate:  1,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Status:        domain.OrderStatusPending,
		StatusHistory: []domain.StatusChange{{Status: domain.OrderStatusPending, Timestamp: now}},
		CreatedAt:     now,
	}
}

func TestRunTx_DecrementAndCreateOrder(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()
	order := testOrder()

	err := s.RunTx(ctx, func(tx Tx) error {
		if err := tx.DecrementStock(ctx, "p1", 2); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, order)
	})
	require.NoError(t, err)

	product, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock)

	stored, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestRunTx_FailedTxLeavesNoState(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	seedProduct(t, s, "p2", 0)
	ctx := context.Background()
	order := testOrder()

	err := s.RunTx(ctx, func(tx Tx) error {
		if err := tx.DecrementStock(ctx, "p1", 2); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, "p2", 1); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, order)
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	p1, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p1.Stock, "p1 must be untouched by the aborted tx")

	_, err = s.GetOrder(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRunTx_UnknownProduct(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.RunTx(ctx, func(tx Tx) error {
		_, err := tx.GetProductForUpdate(ctx, "ghost")
		return err
	})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestRunTx_ConflictOnConcurrentCommit(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 1)
	ctx := context.Background()

	// Both transactions observe stock=1 before either commits; the second
	// commit must fail on the version check.
	started := make(chan struct{})
	proceed := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.RunTx(ctx, func(tx Tx) error {
				if err := tx.DecrementStock(ctx, "p1", 1); err != nil {
					return err
				}
				started <- struct{}{}
				<-proceed
				return nil
			})
		}(i)
	}

	<-started
	<-started
	close(proceed)
	wg.Wait()

	var conflicts, successes int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case assert.ErrorIs(t, err, ErrTxConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	product, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, product.Stock, "stock must never go negative")
}

func TestRunTx_ConflictOnCatalogEdit(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.RunTx(ctx, func(tx Tx) error {
		if err := tx.DecrementStock(ctx, "p1", 1); err != nil {
			return err
		}
		// catalog edit lands between read and commit
		return s.UpsertProduct(ctx, &domain.Product{ID: "p1", Name: "Renamed", Price: 99, Stock: 5})
	})
	assert.ErrorIs(t, err, ErrTxConflict)
}

func TestRunTx_ReadSeesBufferedDecrement(t *testing.T) {
	s := NewMemoryStore()
	seedProduct(t, s, "p1", 5)
	ctx := context.Background()

	err := s.RunTx(ctx, func(tx Tx) error {
		if err := tx.DecrementStock(ctx, "p1", 3); err != nil {
			return err
		}
		product, err := tx.GetProductForUpdate(ctx, "p1")
		if err != nil {
			return err
		}
		assert.Equal(t, 2, product.Stock)
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateOrderStatus_AppendsHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	order := testOrder()
	require.NoError(t, s.RunTx(ctx, func(tx Tx) error {
		return tx.CreateOrder(ctx, order)
	}))

	change := domain.StatusChange{Status: domain.OrderStatusProcessing, Timestamp: time.Now().UTC()}
	previous, err := s.UpdateOrderStatus(ctx, order.ID, change, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, previous)

	stored, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, stored.Status)
	require.Len(t, stored.StatusHistory, 2)
	assert.Equal(t, domain.OrderStatusPending, stored.StatusHistory[0].Status)
	assert.Equal(t, domain.OrderStatusProcessing, stored.StatusHistory[1].Status)
}

func TestUpdateOrderStatus_NotFound(t *testing.T) {
	s := NewMemoryStore()
	change := domain.StatusChange{Status: domain.OrderStatusShipped, Timestamp: time.Now().UTC()}

	_, err := s.UpdateOrderStatus(context.Background(), uuid.New(), change, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutbox_EventsRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	event, err := NewOutboxEvent("order.placed", "agg-1", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, s.RunTx(ctx, func(tx Tx) error {
		return tx.AppendEvent(ctx, event)
	}))

	pending, err := s.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "order.placed", pending[0].EventType)

	require.NoError(t, s.MarkEventAsProcessed(ctx, event.ID))

	pending, err = s.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestListOrdersByUser_NewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := testOrder()
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := testOrder()
	second.CreatedAt = time.Now().UTC()

	require.NoError(t, s.RunTx(ctx, func(tx Tx) error {
		if err := tx.CreateOrder(ctx, first); err != nil {
			return err
		}
		return tx.CreateOrder(ctx, second)
	}))

	list, err := s.ListOrdersByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
