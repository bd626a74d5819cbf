package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCachedGateway(t *testing.T, inner *MockClient) (*CachedGateway, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCachedGateway(inner, client, "cus_1"), mr
}

func TestCachedGateway_ListCachesResult(t *testing.T) {
	inner := &MockClient{Methods: []d.PaymentMethod{{ID: "pm_1", IsDefault: true, Brand: "visa", Last4: "4242"}}}
	gw, mr := setupCachedGateway(t, inner)
	ctx := context.Background()

	first, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)
	second, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.ListCalls)
	assert.True(t, mr.Exists(cacheKey("cus_1")))
	ttl := mr.TTL(cacheKey("cus_1"))
	assert.GreaterOrEqual(t, ttl, gw.baseTTL)
}

func TestCachedGateway_CreateInvalidates(t *testing.T) {
	inner := &MockClient{
		Methods: []d.PaymentMethod{{ID: "pm_1"}},
		Created: &d.PaymentMethod{ID: "pm_2"},
	}
	gw, mr := setupCachedGateway(t, inner)
	ctx := context.Background()

	_, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)

	pm, err := gw.CreatePaymentMethod(ctx, "tok_visa", nil, false)
	require.NoError(t, err)
	assert.Equal(t, "pm_2", pm.ID)
	assert.False(t, mr.Exists(cacheKey("cus_1")))

	_, err = gw.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.ListCalls)
}

func TestCachedGateway_InvalidateSeesMethodAddedElsewhere(t *testing.T) {
	inner := &MockClient{Methods: []d.PaymentMethod{{ID: "pm_1"}}}
	gw, mr := setupCachedGateway(t, inner)
	ctx := context.Background()

	_, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)
	inner.Methods = append(inner.Methods, d.PaymentMethod{ID: "pm_2"})

	stale, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	require.NoError(t, gw.Invalidate(ctx))
	assert.False(t, mr.Exists(cacheKey("cus_1")))

	fresh, err := gw.ListPaymentMethods(ctx)
	require.NoError(t, err)
	require.Len(t, fresh, 2)
	assert.Equal(t, "pm_2", fresh[1].ID)
	assert.Equal(t, 2, inner.ListCalls)
}

func TestCachedGateway_CorruptEntryFallsThrough(t *testing.T) {
	inner := &MockClient{Methods: []d.PaymentMethod{{ID: "pm_1"}}}
	gw, mr := setupCachedGateway(t, inner)
	require.NoError(t, mr.Set(cacheKey("cus_1"), "{not json"))

	methods, err := gw.ListPaymentMethods(context.Background())

	require.NoError(t, err)
	assert.Len(t, methods, 1)
	assert.Equal(t, 1, inner.ListCalls)
}

func TestCachedGateway_RedisDown(t *testing.T) {
	inner := &MockClient{Methods: []d.PaymentMethod{{ID: "pm_1"}}}
	gw, mr := setupCachedGateway(t, inner)
	mr.Close()

	methods, err := gw.ListPaymentMethods(context.Background())

	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestCachedGateway_InnerErrorNotCached(t *testing.T) {
	inner := &MockClient{Err: d.NewTransportError(errors.New("timeout"))}
	gw, mr := setupCachedGateway(t, inner)

	_, err := gw.ListPaymentMethods(context.Background())

	pe, ok := d.AsPaymentError(err)
	require.True(t, ok)
	assert.True(t, pe.IsTransient())
	assert.False(t, mr.Exists(cacheKey("cus_1")))
}

func TestCachedGateway_PassesThroughAuthorize(t *testing.T) {
	gw, _ := setupCachedGateway(t, &MockClient{})

	auth, err := gw.Authorize(context.Background(), &AuthorizeRequest{IdempotencyKey: "k"})

	require.NoError(t, err)
	assert.Equal(t, "pi_1", auth.PaymentID)
}
