package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
	"github.com/kobbycode/prestige-merchandise/internal/payment"
	"github.com/kobbycode/prestige-merchandise/internal/rates"
	"github.com/kobbycode/prestige-merchandise/internal/store"
)

// CheckoutLine is one line of a finalized cart as it was displayed to the
// customer. UnitPrice is the quoted price and becomes the snapshot price of
// the order, even if the catalog price moved between display and commit.
// The stock check always runs against live catalog state.
type CheckoutLine struct {
	ProductID string
	Variant   string
	Quantity  int
	UnitPrice float64
}

type PlaceOrderRequest struct {
	Customer      domain.CustomerDetails
	Lines         []CheckoutLine
	PaymentMethod domain.PaymentMethod
	Currency      string
}

type Service struct {
	transactor *Transactor
	gateway    payment.Gateway
	rates      rates.Provider
	notifs     notify.Store
	dispatcher *notify.Dispatcher
}

func NewService(
	transactor *Transactor,
	gateway payment.Gateway,
	ratesProvider rates.Provider,
	notifs notify.Store,
	dispatcher *notify.Dispatcher,
) *Service {
	return &Service{
		transactor: transactor,
		gateway:    gateway,
		rates:      ratesProvider,
		notifs:     notifs,
		dispatcher: dispatcher,
	}
}

// PlaceOrder runs the full placement flow: validate, confirm payment for
// prepaid methods, then atomically verify and decrement stock for every
// line and write the immutable order record. Post-commit notifications are
// fire-and-forget and never affect the returned result.
//
// Typed failures: *ValidationError, store.ErrProductNotFound,
// *InsufficientStockError, store.ErrTxConflict, payment.ErrCancelled.
func (s *Service) PlaceOrder(ctx context.Context, actor domain.Actor, req *PlaceOrderRequest) (*domain.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	merged, productOrder, quantities := aggregateLines(req.Lines)

	var amount float64
	for _, line := range merged {
		amount += line.UnitPrice * float64(line.Quantity)
	}

	rate, err := s.rates.Rate(req.Currency)
	if err != nil {
		return nil, validationErrorf("currency %q: %v", req.Currency, err)
	}

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        actor.ID,
		StaffOrder:    actor.Staff,
		Customer:      req.Customer,
		Amount:        amount,
		Currency:      req.Currency,
		ExchangeRate:  rate,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: domain.PaymentStatusUnpaid,
		Status:        domain.OrderStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	order.StatusHistory = []domain.StatusChange{{Status: order.Status, Timestamp: order.CreatedAt}}

	// Prepaid methods need a confirmed gateway reference before any stock
	// or order state is touched. A cancelled or failed payment leaves the
	// system exactly as if checkout was never attempted.
	if req.PaymentMethod.Prepaid() {
		confirmation, err := s.gateway.Initialize(ctx, amount, req.Currency, map[string]string{
			"order_id": order.ID.String(),
			"customer": req.Customer.Name,
		})
		if err != nil {
			if errors.Is(err, payment.ErrCancelled) {
				return nil, err
			}
			return nil, fmt.Errorf("payment gateway: %w", err)
		}
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaymentReference = confirmation.Reference
	}

	err = s.transactor.Execute(ctx, func(tx store.Tx) error {
		// First pass: read and validate every product before mutating any.
		products := make(map[string]*domain.Product, len(productOrder))
		for _, productID := range productOrder {
			product, err := tx.GetProductForUpdate(ctx, productID)
			if err != nil {
				return err
			}
			if product.Stock < quantities[productID] {
				return &InsufficientStockError{Product: product.Name, Available: product.Stock}
			}
			products[productID] = product
		}

		// Second pass: decrement stock and write the order together.
		for _, productID := range productOrder {
			if err := tx.DecrementStock(ctx, productID, quantities[productID]); err != nil {
				return err
			}
		}

		items := make([]domain.OrderLineItem, len(merged))
		for i, line := range merged {
			product := products[line.ProductID]
			item := domain.OrderLineItem{
				ProductID: line.ProductID,
				Name:      product.Name,
				Price:     line.UnitPrice,
				Quantity:  line.Quantity,
				Variant:   line.Variant,
			}
			if len(product.Images) > 0 {
				item.Image = product.Images[0]
			}
			items[i] = item
		}
		order.Items = items

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		event, err := store.NewOutboxEvent("order.placed", order.ID.String(), map[string]any{
			"order_id":       order.ID.String(),
			"user_id":        order.UserID,
			"amount":         order.Amount,
			"currency":       order.Currency,
			"payment_method": order.PaymentMethod,
			"items":          order.Items,
			"placed_at":      order.CreatedAt,
		})
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Dispatch(s.placementEffects(actor, order)...)
	return order, nil
}

func (s *Service) placementEffects(actor domain.Actor, order *domain.Order) []notify.Effect {
	now := time.Now().UTC()
	var effects []notify.Effect

	// Administrative self-orders suppress the customer notification.
	if !actor.Staff {
		n := &domain.Notification{
			ID:        uuid.NewString(),
			UserID:    order.UserID,
			Type:      domain.NotificationOrderPlaced,
			Message:   fmt.Sprintf("Your order for %.2f %s has been received", order.Amount, order.Currency),
			Link:      "/orders/" + order.ID.String(),
			CreatedAt: now,
		}
		effects = append(effects, notify.Effect{
			Name: "customer-order-placed",
			Run: func(ctx context.Context) error {
				return s.notifs.Create(ctx, n)
			},
		})
	}

	staffNote := &domain.Notification{
		ID:        uuid.NewString(),
		Role:      domain.RoleStaff,
		Type:      domain.NotificationOrderPlaced,
		Message:   fmt.Sprintf("New order from %s: %.2f %s", order.Customer.Name, order.Amount, order.Currency),
		Link:      "/admin/orders/" + order.ID.String(),
		CreatedAt: now,
	}
	effects = append(effects, notify.Effect{
		Name: "staff-order-placed",
		Run: func(ctx context.Context) error {
			return s.notifs.Create(ctx, staffNote)
		},
	})
	return effects
}

func validateRequest(req *PlaceOrderRequest) error {
	if len(req.Lines) == 0 {
		return validationErrorf("no line items")
	}
	for _, line := range req.Lines {
		if line.ProductID == "" {
			return validationErrorf("line item without product id")
		}
		if line.Quantity < 1 {
			return validationErrorf("quantity %d for product %s, must be at least 1", line.Quantity, line.ProductID)
		}
		if line.UnitPrice < 0 {
			return validationErrorf("negative price for product %s", line.ProductID)
		}
	}
	if !req.PaymentMethod.Valid() {
		return validationErrorf("unknown payment method %q", req.PaymentMethod)
	}
	if req.Currency == "" {
		return validationErrorf("currency is required")
	}
	if req.Customer.Name == "" || req.Customer.Address == "" {
		return validationErrorf("customer name and address are required")
	}
	if req.Customer.Email == "" && req.Customer.Phone == "" {
		return validationErrorf("customer email or phone is required")
	}
	return nil
}

// aggregateLines merges duplicate (product, variant) lines and pre-aggregates
// quantities per product, so the transactor reads each product exactly once
// per attempt. productOrder preserves first-appearance order for stable reads.
func aggregateLines(lines []CheckoutLine) (merged []CheckoutLine, productOrder []string, quantities map[string]int) {
	quantities = make(map[string]int)
	lineIndex := make(map[string]int)

	for _, line := range lines {
		key := domain.CartItemID(line.ProductID, line.Variant)
		if i, seen := lineIndex[key]; seen {
			merged[i].Quantity += line.Quantity
		} else {
			lineIndex[key] = len(merged)
			merged = append(merged, line)
		}

		if _, seen := quantities[line.ProductID]; !seen {
			productOrder = append(productOrder, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}
	return merged, productOrder, quantities
}
