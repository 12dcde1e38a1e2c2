package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kobbycode/prestige-merchandise/internal/cart"
	"github.com/kobbycode/prestige-merchandise/internal/checkout"
	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/orders"
)

type OrdersHandler struct {
	checkout *checkout.Service
	orders   *orders.Service
	cart     *cart.Service
	timeout  time.Duration
}

func NewOrdersHandler(checkoutSvc *checkout.Service, ordersSvc *orders.Service, cartSvc *cart.Service, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		cart:     cartSvc,
		timeout:  timeout,
	}
}

type CustomerDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city,omitempty"`
}

type LineItemDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Variant   string  `json:"variant,omitempty"`
	Image     string  `json:"image,omitempty"`
}

type StatusChangeDTO struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type OrderResponseDTO struct {
	ID               string            `json:"id"`
	Customer         CustomerDTO       `json:"customer"`
	Items            []LineItemDTO     `json:"items"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	ExchangeRate     float64           `json:"exchange_rate"`
	PaymentMethod    string            `json:"payment_method"`
	PaymentStatus    string            `json:"payment_status"`
	PaymentReference string            `json:"payment_reference,omitempty"`
	Status           string            `json:"status"`
	StatusHistory    []StatusChangeDTO `json:"status_history"`
	CreatedAt        string            `json:"created_at"`
}

type PlaceOrderRequestDTO struct {
	Customer      CustomerDTO   `json:"customer"`
	Lines         []LineItemDTO `json:"lines,omitempty"`
	PaymentMethod string        `json:"payment_method"`
	Currency      string        `json:"currency"`
}

// POST /api/v1/orders
//
// Lines may be submitted directly or left empty to check out the caller's
// stored cart. On success the cart is cleared.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	lines := make([]checkout.CheckoutLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, checkout.CheckoutLine{
			ProductID: line.ProductID,
			Variant:   line.Variant,
			Quantity:  line.Quantity,
			UnitPrice: line.Price,
		})
	}

	fromCart := len(lines) == 0
	if fromCart {
		cartLines, err := h.cart.CheckoutLines(ctx, actor.ID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		lines = cartLines
	}

	order, err := h.checkout.PlaceOrder(ctx, actor, &checkout.PlaceOrderRequest{
		Customer: domain.CustomerDetails{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
			City:    req.Customer.City,
		},
		Lines:         lines,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Currency:      req.Currency,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if fromCart {
		if clearErr := h.cart.ClearCart(ctx, actor.ID); clearErr != nil {
			log.Printf("failed to clear cart after order %s (request-id %s): %v",
				order.ID, getRequestID(r.Context()), clearErr)
		}
	}

	respondJSON(w, http.StatusCreated, convertOrder(order))
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	if !actor.Staff {
		respondError(w, http.StatusForbidden, "forbidden", "staff access required")
		return
	}

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.orders.UpdateStatus(ctx, actor, orderID, domain.OrderStatus(req.Status)); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type TrackOrderRequestDTO struct {
	OrderID string `json:"order_id"`
	Contact string `json:"contact"`
}

// POST /api/v1/orders/track
func (h *OrdersHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req TrackOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid uuid")
		return
	}

	order, err := h.orders.Track(ctx, orderID, req.Contact)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !actor.Staff && order.UserID != actor.ID {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	actor := getActorFromContext(r.Context())
	if actor.ID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	list, err := h.orders.ListByUser(ctx, actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(list))
	for _, order := range list {
		dtos = append(dtos, convertOrder(order))
	}
	respondJSON(w, http.StatusOK, dtos)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "order_id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return uuid.Nil, false
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a valid uuid")
		return uuid.Nil, false
	}
	return orderID, true
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]LineItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, LineItemDTO{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Variant:   item.Variant,
			Image:     item.Image,
		})
	}

	history := make([]StatusChangeDTO, 0, len(o.StatusHistory))
	for _, change := range o.StatusHistory {
		history = append(history, StatusChangeDTO{
			Status:    string(change.Status),
			Timestamp: change.Timestamp.Format(time.RFC3339Nano),
		})
	}

	return OrderResponseDTO{
		ID: o.ID.String(),
		Customer: CustomerDTO{
			Name:    o.Customer.Name,
			Email:   o.Customer.Email,
			Phone:   o.Customer.Phone,
			Address: o.Customer.Address,
			City:    o.Customer.City,
		},
		Items:            items,
		Amount:           o.Amount,
		Currency:         o.Currency,
		ExchangeRate:     o.ExchangeRate,
		PaymentMethod:    string(o.PaymentMethod),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentReference: o.PaymentReference,
		Status:           string(o.Status),
		StatusHistory:    history,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339Nano),
	}
}
