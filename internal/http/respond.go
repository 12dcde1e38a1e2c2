package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/kobbycode/prestige-merchandise/internal/cart"
	"github.com/kobbycode/prestige-merchandise/internal/checkout"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
	"github.com/kobbycode/prestige-merchandise/internal/orders"
	"github.com/kobbycode/prestige-merchandise/internal/payment"
	"github.com/kobbycode/prestige-merchandise/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the engine's typed errors to HTTP status codes.
func handleServiceError(w http.ResponseWriter, err error) {
	var validationErr *checkout.ValidationError
	var stockErr *checkout.InsufficientStockError
	var statusErr *orders.ErrInvalidStatus

	switch {
	case errors.As(err, &validationErr):
		respondError(w, http.StatusBadRequest, "invalid_request", validationErr.Error())
	case errors.As(err, &statusErr):
		respondError(w, http.StatusBadRequest, "invalid_status", statusErr.Error())
	case errors.Is(err, cart.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.As(err, &stockErr):
		respondError(w, http.StatusConflict, "insufficient_stock", stockErr.Error())
	case errors.Is(err, store.ErrTxConflict):
		respondError(w, http.StatusConflict, "transaction_conflict",
			"the order could not be committed due to concurrent activity, please retry")
	case errors.Is(err, payment.ErrCancelled):
		respondError(w, http.StatusPaymentRequired, "payment_cancelled", err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		respondError(w, http.StatusBadGateway, "payment_unavailable", err.Error())
	case errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrOrderNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, notify.ErrNotificationNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
