package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helper ---

func withUser(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), userIDKey, "user-1")
	return r.WithContext(ctx)
}

func withOrderID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("order_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func confirmedOrder() *d.Order {
	return &d.Order{
		ID:       uuid.MustParse("0b7e5a3c-8f0e-4c18-b2a1-6bd4b0f0c001"),
		UserID:   "user-1",
		Status:   d.OrderStatusConfirmed,
		Currency: "GBP",
		Totals:   d.Totals{SubTotal: 5000, Total: 4500, ChargeTotal: 4500},
	}
}

const placeBody = `{"basket":{"id":"b-1","currency":"GBP","items":[{"id":"i-1","course_id":"c-1","course_name":"Pottery","price":5000}]},"payment_method_id":"pm_1"}`

func placeRequest(key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(placeBody))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- PlaceOrder tests ---

func TestPlaceOrder_Confirmed(t *testing.T) {
	mock := &MockOrderService{Result: &d.PlaceOrderResult{Order: confirmedOrder()}}
	handler := NewOrdersHandler(mock, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.PlaceOrder(rec, withUser(placeRequest(" key-1 ")))

	require.Equal(t, http.StatusCreated, rec.Code)
	var res d.PlaceOrderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.NotNil(t, res.Order)
	assert.Equal(t, confirmedOrder().ID, res.Order.ID)
	assert.Equal(t, d.Money(4500), res.Order.Totals.ChargeTotal)

	got := mock.lastRequest()
	assert.Equal(t, "key-1", got.IdempotencyKey)
	assert.Equal(t, "pm_1", got.PaymentMethodID)
	assert.Equal(t, d.Money(5000), got.Basket.Items[0].Price)
	assert.Equal(t, []string{"user-1"}, mock.Users)
}

func TestPlaceOrder_RequiresAction(t *testing.T) {
	mock := &MockOrderService{Result: &d.PlaceOrderResult{RequiresAction: true, ClientSecret: "pi_1_secret_x", OrderID: "o-1"}}
	handler := NewOrdersHandler(mock, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.PlaceOrder(rec, withUser(placeRequest("key-1")))

	require.Equal(t, http.StatusAccepted, rec.Code)
	var res d.PlaceOrderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.RequiresAction)
	assert.Equal(t, "pi_1_secret_x", res.ClientSecret)
	assert.Equal(t, "o-1", res.OrderID)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		details string
	}{
		{"declined", &d.PaymentError{Kind: d.PaymentErrorDeclined, Code: "card_declined", Message: "Your card was declined."}, http.StatusPaymentRequired, "card_declined", "declined"},
		{"authentication", &d.PaymentError{Kind: d.PaymentErrorAuthentication, Code: "authentication_required"}, http.StatusPaymentRequired, "authentication_required", "authentication"},
		{"invalid request", &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Code: "totals_mismatch", Message: "totals changed"}, http.StatusUnprocessableEntity, "totals_mismatch", "invalid_request"},
		{"transport", d.NewTransportError(context.DeadlineExceeded), http.StatusBadGateway, "", "transport"},
		{"unauthenticated", orders.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", ""},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "internal_error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewOrdersHandler(&MockOrderService{PlaceErr: tt.err}, 5*time.Second)
			rec := httptest.NewRecorder()

			handler.PlaceOrder(rec, withUser(placeRequest("key-1")))

			assert.Equal(t, tt.status, rec.Code)
			body := errorBody(t, rec)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.details, body.Details)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestPlaceOrder_Unauthorized(t *testing.T) {
	mock := &MockOrderService{}
	handler := NewOrdersHandler(mock, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.PlaceOrder(rec, placeRequest("key-1"))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, mock.Requests)
}

func TestPlaceOrder_MissingIdempotencyKey(t *testing.T) {
	mock := &MockOrderService{}
	handler := NewOrdersHandler(mock, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.PlaceOrder(rec, withUser(placeRequest("")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_idempotency_key", errorBody(t, rec).Code)
	assert.Empty(t, mock.Requests)
}

func TestPlaceOrder_InvalidJSON(t *testing.T) {
	mock := &MockOrderService{}
	handler := NewOrdersHandler(mock, 5*time.Second)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader("{"))
	req.Header.Set(IdempotencyHeader, "key-1")
	rec := httptest.NewRecorder()

	handler.PlaceOrder(rec, withUser(req))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", errorBody(t, rec).Code)
}

// --- ListOrders / GetOrder tests ---

func TestListOrders_Success(t *testing.T) {
	mock := &MockOrderService{Orders: []*d.Order{confirmedOrder()}}
	handler := NewOrdersHandler(mock, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var list []d.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, d.OrderStatusConfirmed, list[0].Status)
}

func TestListOrders_EmptyIsArray(t *testing.T) {
	handler := NewOrdersHandler(&MockOrderService{}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetOrder_Success(t *testing.T) {
	mock := &MockOrderService{Order: confirmedOrder()}
	handler := NewOrdersHandler(mock, 5*time.Second)
	id := confirmedOrder().ID.String()
	rec := httptest.NewRecorder()

	handler.GetOrder(rec, withOrderID(withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+id, nil)), id))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{id}, mock.Fetched)
}

func TestGetOrder_NotFound(t *testing.T) {
	handler := NewOrdersHandler(&MockOrderService{FetchErr: orders.ErrOrderNotFound}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.GetOrder(rec, withOrderID(withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil)), "x"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorBody(t, rec).Code)
}

func TestGetOrder_MissingID(t *testing.T) {
	handler := NewOrdersHandler(&MockOrderService{}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.GetOrder(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
