package cart

import (
	"context"
	"sync"
	"time"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

// MemoryRepository implements Repository with in-memory storage
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{carts: make(map[string]*domain.Cart)}
}

func (r *MemoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, exists := r.carts[userID]
	if !exists {
		return nil, ErrCartNotFound
	}
	return cloneCart(cart), nil
}

func (r *MemoryRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	cart, exists := r.carts[userID]
	if !exists {
		cart = &domain.Cart{UserID: userID, CreatedAt: now}
		r.carts[userID] = cart
	}

	item.ID = domain.CartItemID(item.ProductID, item.Variant)
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	for i := range cart.Items {
		if cart.Items[i].ID == item.ID {
			cart.Items[i].Quantity += item.Quantity
			cart.UpdatedAt = now
			return nil
		}
	}
	cart.Items = append(cart.Items, item)
	cart.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) UpdateItemQuantity(_ context.Context, userID, itemID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, exists := r.carts[userID]
	if !exists {
		return ErrCartNotFound
	}

	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items[i].Quantity = quantity
			cart.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) RemoveItem(_ context.Context, userID, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cart, exists := r.carts[userID]
	if !exists {
		return ErrCartNotFound
	}

	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			cart.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrItemNotFound
}

func (r *MemoryRepository) DeleteCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.carts, userID)
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	clone := *c
	clone.Items = append([]domain.CartItem(nil), c.Items...)
	return &clone
}
