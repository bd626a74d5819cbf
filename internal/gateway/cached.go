package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/redis/go-redis/v9"
)

// CachedGateway keeps a customer's payment method list in Redis. Cache
// failures fall through to the wrapped client.
type CachedGateway struct {
	Client
	client   *redis.Client
	customer string
	baseTTL  time.Duration
}

func NewCachedGateway(inner Client, client *redis.Client, customer string) *CachedGateway {
	return &CachedGateway{
		Client:   inner,
		client:   client,
		customer: customer,
		baseTTL:  5 * time.Minute,
	}
}

var errCacheMiss = errors.New("cache miss")

func (c *CachedGateway) ListPaymentMethods(ctx context.Context) ([]d.PaymentMethod, error) {
	methods, err := c.get(ctx)
	if err == nil {
		return methods, nil
	}
	if !errors.Is(err, errCacheMiss) {
		log.Printf("payment method cache read failed, customer = %v: %v", c.customer, err)
	}

	methods, err = c.Client.ListPaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.set(ctx, methods); err != nil {
		log.Printf("payment method cache write failed, customer = %v: %v", c.customer, err)
	}
	return methods, nil
}

func (c *CachedGateway) CreatePaymentMethod(ctx context.Context, token string, billing *d.Address, setAsDefault bool) (*d.PaymentMethod, error) {
	pm, err := c.Client.CreatePaymentMethod(ctx, token, billing, setAsDefault)
	if err != nil {
		return nil, err
	}
	if err := c.Invalidate(ctx); err != nil {
		log.Printf("payment method cache invalidation failed, customer = %v: %v", c.customer, err)
	}
	return pm, nil
}

func (c *CachedGateway) get(ctx context.Context) ([]d.PaymentMethod, error) {
	data, err := c.client.Get(ctx, cacheKey(c.customer)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var methods []d.PaymentMethod
	if err2 := json.Unmarshal(data, &methods); err2 != nil {
		return nil, fmt.Errorf("unmarshal payment methods failed: %w", err2)
	}
	return methods, nil
}

func (c *CachedGateway) set(ctx context.Context, methods []d.PaymentMethod) error {
	data, err := json.Marshal(methods)
	if err != nil {
		return fmt.Errorf("marshal payment methods failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	ttl := c.baseTTL + jitter
	if err := c.client.Set(ctx, cacheKey(c.customer), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached list so the next ListPaymentMethods reads
// through to the wrapped client.
func (c *CachedGateway) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, cacheKey(c.customer)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(customer string) string {
	return fmt.Sprintf("payment_methods:%s", customer)
}

var _ Client = (*CachedGateway)(nil)
