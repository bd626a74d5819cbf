package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/go-chi/chi/v5"
)

// IdempotencyHeader carries the PlaceOrder idempotency key.
const IdempotencyHeader = "Idempotency-Key"

const maxRequestBodySize = 1 << 20 // 1MB

type OrdersHandler struct {
	orders  service.OrderService
	timeout time.Duration
}

// NewOrdersHandler serves orders. The user id resolved from the bearer token
// is passed to orders as the auth token.
func NewOrdersHandler(orders service.OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// POST /api/v1/orders
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", IdempotencyHeader+" header is required")
		return
	}

	var req d.PlaceOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.IdempotencyKey = key

	res, err := h.orders.PlaceOrder(ctx, userID, &req)
	if err != nil {
		log.Printf("place order failed: user_id = %v, request_id = %v, error = %v", userID, getRequestID(r.Context()), err)
		handleServiceError(w, err)
		return
	}

	status := http.StatusAccepted
	if res.Order != nil && res.Order.Status == d.OrderStatusConfirmed {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	list, err := h.orders.ListOrders(ctx, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		list = make([]*d.Order, 0)
	}

	respondJSON(w, http.StatusOK, list)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.FetchOrder(ctx, userID, orderID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}
