package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobbycode/prestige-merchandise/internal/cart"
	cartcache "github.com/kobbycode/prestige-merchandise/internal/cart/cache"
	"github.com/kobbycode/prestige-merchandise/internal/checkout"
	"github.com/kobbycode/prestige-merchandise/internal/domain"
	"github.com/kobbycode/prestige-merchandise/internal/email"
	"github.com/kobbycode/prestige-merchandise/internal/notify"
	"github.com/kobbycode/prestige-merchandise/internal/orders"
	"github.com/kobbycode/prestige-merchandise/internal/payment"
	"github.com/kobbycode/prestige-merchandise/internal/rates"
	"github.com/kobbycode/prestige-merchandise/internal/store"
)

type testServer struct {
	router     http.Handler
	store      *store.MemoryStore
	dispatcher *notify.Dispatcher
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	mem := store.NewMemoryStore()
	require.NoError(t, mem.UpsertProduct(context.Background(), &domain.Product{
		ID: "p1", Name: "Kente Scarf", Price: 50, Stock: 5, Images: []string{"scarf.jpg"},
	}))
	require.NoError(t, mem.UpsertProduct(context.Background(), &domain.Product{
		ID: "p2", Name: "Beaded Bracelet", Price: 30, Stock: 1,
	}))

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	notifStore := notify.NewRedisStore(redisClient)
	dispatcher := notify.NewDispatcher(5 * time.Second)

	checkoutSvc := checkout.NewService(
		checkout.NewTransactor(mem),
		payment.SandboxGateway{},
		rates.NewStaticProvider("GHS", map[string]float64{"USD": 0.067}),
		notifStore,
		dispatcher,
	)
	ordersSvc := orders.NewService(mem, notifStore, email.LogSender{}, dispatcher)
	cartSvc := cart.NewService(cart.NewMemoryRepository(), cartcache.NewRedisCache(redisClient), mem)

	timeout := 5 * time.Second
	router := NewRouter(
		NewOrdersHandler(checkoutSvc, ordersSvc, cartSvc, timeout),
		NewCartHandler(cartSvc, timeout),
		NewNotificationsHandler(notifStore, timeout),
	)

	return &testServer{router: router, store: mem, dispatcher: dispatcher}
}

func (s *testServer) do(t *testing.T, method, path string, body any, userID, role string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	if role != "" {
		req.Header.Set("X-User-Role", role)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func placeOrderBody(lines ...LineItemDTO) PlaceOrderRequestDTO {
	return PlaceOrderRequestDTO{
		Customer: CustomerDTO{
			Name:    "Ama Mensah",
			Email:   "ama@example.com",
			Phone:   "+233200000000",
			Address: "12 Ring Road, Accra",
		},
		Lines:         lines,
		PaymentMethod: "cash_on_delivery",
		Currency:      "GHS",
	}
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) OrderResponseDTO {
	t.Helper()
	var dto OrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	return dto
}

func TestPlaceOrderEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 2},
		LineItemDTO{ProductID: "p2", Price: 30, Quantity: 1},
	), "user-1", "")

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decodeOrder(t, rec)
	assert.Equal(t, 130.0, dto.Amount)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "unpaid", dto.PaymentStatus)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "Kente Scarf", dto.Items[0].Name)
	require.Len(t, dto.StatusHistory, 1)

	p1, err := s.store.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p1.Stock)
}

func TestPlaceOrderEndpoint_Unauthorized(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
	), "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceOrderEndpoint_InsufficientStock(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p2", Price: 30, Quantity: 2},
	), "user-1", "")

	require.Equal(t, http.StatusConflict, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "insufficient_stock", errResp.Code)

	// nothing committed
	p2, err := s.store.GetProduct(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, 1, p2.Stock)
}

func TestPlaceOrderEndpoint_ValidationError(t *testing.T) {
	s := setupServer(t)

	body := placeOrderBody(LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1})
	body.PaymentMethod = "barter"

	rec := s.do(t, http.MethodPost, "/api/v1/orders", body, "user-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "invalid_request", errResp.Code)
}

func TestPlaceOrderEndpoint_PrepaidReference(t *testing.T) {
	s := setupServer(t)

	body := placeOrderBody(LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1})
	body.PaymentMethod = "mobile_money"

	rec := s.do(t, http.MethodPost, "/api/v1/orders", body, "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decodeOrder(t, rec)
	assert.Equal(t, "paid", dto.PaymentStatus)
	assert.NotEmpty(t, dto.PaymentReference)
}

func TestPlaceOrderEndpoint_FromCart(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{
		ProductID: "p1", Quantity: 2,
	}, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(), "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	dto := decodeOrder(t, rec)
	assert.Equal(t, 100.0, dto.Amount)

	// the cart is cleared after a successful checkout
	rec = s.do(t, http.MethodGet, "/api/v1/cart", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cartDTO CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cartDTO))
	assert.Empty(t, cartDTO.Items)
}

func TestPlaceOrderEndpoint_EmptyCart(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(), "user-1", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
	assert.Equal(t, "empty_cart", errResp.Code)
}

func TestTrackOrderEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
	), "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeOrder(t, rec)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/track", TrackOrderRequestDTO{
		OrderID: placed.ID, Contact: "ama@example.com",
	}, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tracked := decodeOrder(t, rec)
	assert.Equal(t, placed.ID, tracked.ID)

	rec = s.do(t, http.MethodPost, "/api/v1/orders/track", TrackOrderRequestDTO{
		OrderID: placed.ID, Contact: "stranger@example.com",
	}, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetOrderEndpoint_OwnerAndStaffOnly(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
	), "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeOrder(t, rec)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, nil, "user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, nil, "user-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, nil, "staff-1", domain.RoleStaff)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetOrderEndpoint_BadID(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/orders/not-a-uuid", nil, "user-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	s := setupServer(t)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
			LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
		), "user-1", "")
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/v1/orders", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []OrderResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list, 2)

	rec = s.do(t, http.MethodGet, "/api/v1/orders", nil, "user-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Empty(t, list)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
	), "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decodeOrder(t, rec)

	// customers cannot drive the lifecycle
	rec = s.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status",
		UpdateStatusRequestDTO{Status: "processing"}, "user-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status",
		UpdateStatusRequestDTO{Status: "processing"}, "staff-1", domain.RoleStaff)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPatch, "/api/v1/orders/"+placed.ID+"/status",
		UpdateStatusRequestDTO{Status: "launched"}, "staff-1", domain.RoleStaff)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/orders/"+placed.ID, nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decodeOrder(t, rec)
	assert.Equal(t, "processing", dto.Status)
	require.Len(t, dto.StatusHistory, 2)
	assert.Equal(t, "pending", dto.StatusHistory[0].Status)
	assert.Equal(t, "processing", dto.StatusHistory[1].Status)
}

func TestUpdateStatusEndpoint_UnknownOrder(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPatch, "/api/v1/orders/"+uuid.NewString()+"/status",
		UpdateStatusRequestDTO{Status: "shipped"}, "staff-1", domain.RoleStaff)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotificationsEndpoint(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/orders", placeOrderBody(
		LineItemDTO{ProductID: "p1", Price: 50, Quantity: 1},
	), "user-1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	s.dispatcher.Wait()

	// customer sees the user feed
	rec = s.do(t, http.MethodGet, "/api/v1/notifications", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var feed []NotificationDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
	require.Len(t, feed, 1)
	assert.Equal(t, "order_placed", feed[0].Type)
	assert.False(t, feed[0].Read)

	// staff see the role broadcast merged into their feed
	rec = s.do(t, http.MethodGet, "/api/v1/notifications", nil, "staff-1", domain.RoleStaff)
	require.Equal(t, http.StatusOK, rec.Code)
	var staffFeed []NotificationDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&staffFeed))
	require.Len(t, staffFeed, 1)

	// mark read round-trips
	rec = s.do(t, http.MethodPost, "/api/v1/notifications/"+feed[0].ID+"/read", nil, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/notifications", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	feed = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&feed))
	require.Len(t, feed, 1)
	assert.True(t, feed[0].Read)
}

func TestNotificationsEndpoint_MarkReadUnknown(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/notifications/ghost/read", nil, "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCartEndpoints_AddMergesComposite(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{
		ProductID: "p1", Variant: "M", Quantity: 1,
	}, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{
		ProductID: "p1", Variant: "M", Quantity: 2,
	}, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cartDTO CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cartDTO))
	require.Len(t, cartDTO.Items, 1, "same composite id merges")
	assert.Equal(t, 3, cartDTO.Items[0].Quantity)
}

func TestCartEndpoints_UpdateAndRemove(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{
		ProductID: "p1", Variant: "M", Quantity: 3,
	}, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/cart/items/p1::M", UpdateQuantityRequestDTO{Quantity: 1}, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/v1/cart/items/p1::M", nil, "user-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/cart", nil, "user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cartDTO CartResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cartDTO))
	assert.Empty(t, cartDTO.Items)
}

func TestCartEndpoints_Unauthorized(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodGet, "/api/v1/cart", nil, "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartEndpoints_UnknownProduct(t *testing.T) {
	s := setupServer(t)

	rec := s.do(t, http.MethodPost, "/api/v1/cart/items", AddItemRequestDTO{
		ProductID: "ghost", Quantity: 1,
	}, "user-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
