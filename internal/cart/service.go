package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kobbycode/prestige-merchandise/internal/cart/cache"
	"github.com/kobbycode/prestige-merchandise/internal/checkout"
	"github.com/kobbycode/prestige-merchandise/internal/domain"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// ProductReader is the slice of the catalog the cart needs: current display
// prices for building checkout lines.
type ProductReader interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type Service struct {
	repo     Repository
	cache    cache.CartCache
	products ProductReader
	sfg      singleflight.Group // Prevents cache stampede
}

func NewService(repo Repository, cartCache cache.CartCache, products ProductReader) *Service {
	return &Service{
		repo:     repo,
		cache:    cartCache,
		products: products,
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cached, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		loaded, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, userID, loaded); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, userID string, item domain.CartItem) error {
	if item.Quantity < 1 {
		return errors.New("quantity must be at least 1")
	}
	if _, err := s.products.GetProduct(ctx, item.ProductID); err != nil {
		return err
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) error {
	if quantity < 1 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	if err := s.repo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) error {
	if err := s.repo.RemoveItem(ctx, userID, itemID); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := s.repo.DeleteCart(ctx, userID); err != nil {
		return err
	}
	s.invalidateCache(userID)
	return nil
}

// CheckoutLines finalizes the cart into checkout lines, quoting the current
// display price of every product. The quoted price becomes the order
// snapshot price even if the catalog changes before commit.
func (s *Service) CheckoutLines(ctx context.Context, userID string) ([]checkout.CheckoutLine, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, ErrEmptyCart
	}
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]checkout.CheckoutLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, checkout.CheckoutLine{
			ProductID: item.ProductID,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}
	return lines, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
