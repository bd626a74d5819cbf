package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// OrdersClient talks to the orders API. It implements service.OrderService;
// every failure is a *domain.PaymentError, and failures where the server may
// have acted are reported as transport errors.
type OrdersClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewOrdersClient(baseURL string, timeout time.Duration) *OrdersClient {
	return &OrdersClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *OrdersClient) PlaceOrder(ctx context.Context, authToken string, req *d.PlaceOrderRequest) (*d.PlaceOrderResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Message: "order request could not be encoded", Err: err}
	}

	var res d.PlaceOrderResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", authToken, req.IdempotencyKey, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *OrdersClient) FetchOrder(ctx context.Context, authToken string, orderID string) (*d.Order, error) {
	var order d.Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID), authToken, "", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *OrdersClient) ListOrders(ctx context.Context, authToken string) ([]*d.Order, error) {
	list := make([]*d.Order, 0)
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders", authToken, "", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *OrdersClient) do(ctx context.Context, method, path, authToken, key string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &d.PaymentError{Kind: d.PaymentErrorInvalidRequest, Message: "order request could not be built", Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return d.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return d.NewTransportError(fmt.Errorf("failed to decode %s %s response: %w", method, path, err))
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)

	kind := errorKind(resp.StatusCode, body.Details)
	msg := body.Error
	if msg == "" && kind == d.PaymentErrorTransport {
		msg = "order service unavailable"
	}
	return &d.PaymentError{
		Kind:    kind,
		Code:    body.Code,
		Message: msg,
		Err:     errors.New("orders service returned " + resp.Status),
	}
}

func errorKind(status int, details string) d.PaymentErrorKind {
	switch k := d.PaymentErrorKind(details); k {
	case d.PaymentErrorTransport, d.PaymentErrorDeclined, d.PaymentErrorInvalidInstrument,
		d.PaymentErrorAuthentication, d.PaymentErrorInvalidRequest:
		return k
	}
	switch {
	case status >= http.StatusInternalServerError, status == http.StatusTooManyRequests, status == http.StatusRequestTimeout:
		return d.PaymentErrorTransport
	case status == http.StatusPaymentRequired:
		return d.PaymentErrorDeclined
	default:
		return d.PaymentErrorInvalidRequest
	}
}
