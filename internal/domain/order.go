package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentMethod string

const (
	PaymentMethodCOD         PaymentMethod = "cash_on_delivery"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
)

// Prepaid reports whether a gateway confirmation must precede order creation.
func (m PaymentMethod) Prepaid() bool {
	return m == PaymentMethodMobileMoney || m == PaymentMethodCard
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodMobileMoney, PaymentMethodCard:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// StatusChange is one entry of an order's append-only audit trail.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
}

// OrderLineItem is an immutable snapshot of a purchased line. All fields are
// copied at commit time and never re-derived from live product state, so
// later catalog edits cannot alter a placed order.
type OrderLineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Variant   string  `json:"variant,omitempty"`
	Image     string  `json:"image,omitempty"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	StaffOrder       bool            `json:"staff_order"`
	Customer         CustomerDetails `json:"customer"`
	Items            []OrderLineItem `json:"items"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	ExchangeRate     float64         `json:"exchange_rate"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	Status           OrderStatus     `json:"status"`
	StatusHistory    []StatusChange  `json:"status_history"`
	CreatedAt        time.Time       `json:"created_at"`
}

// ContactMatches reports whether a submitted email or phone matches the
// contact stored on the order. Used to gate guest order tracking.
func (o *Order) ContactMatches(contact string) bool {
	c := strings.ToLower(strings.TrimSpace(contact))
	if c == "" {
		return false
	}
	return c == strings.ToLower(o.Customer.Email) || c == strings.TrimSpace(o.Customer.Phone)
}
