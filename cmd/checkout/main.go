package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	d "github.com/fjod/go_cart/checkout-engine/domain"
	"github.com/fjod/go_cart/checkout-engine/internal/config"
	"github.com/fjod/go_cart/checkout-engine/internal/gateway"
	h "github.com/fjod/go_cart/checkout-engine/internal/http"
	"github.com/fjod/go_cart/checkout-engine/internal/metrics"
	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	basketPath := flag.String("basket", "", "path to a priced basket JSON file")
	token := flag.String("token", os.Getenv("CHECKOUT_TOKEN"), "bearer token for the orders API")
	methodID := flag.String("method", "", "payment method id to use instead of the default")
	metricsAddr := flag.String("metrics-addr", "", "serve checkout metrics on this address")
	flag.Parse()

	if *basketPath == "" {
		log.Fatalf("-basket is required")
	}
	basket, err := readBasket(*basketPath)
	if err != nil {
		log.Fatalf("Failed to read basket: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		log.Fatalf("Invalid gateway configuration: %v", err)
	}

	api := gateway.NewStripeAPI(cfg.Stripe.SecretKey, &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Stripe.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})
	var gw gateway.Client = gateway.NewStripeGateway(api, cfg.Stripe.CustomerID)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		gw = gateway.NewCachedGateway(gw, rdb, cfg.Stripe.CustomerID)
		log.Printf("Caching payment methods in redis at %s", cfg.Redis.Addr)
	}

	engine := service.NewCheckoutService(gw, h.NewOrdersClient(cfg.Orders.BaseURL, cfg.Orders.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watch(ctx, engine, *metricsAddr)

	if err := run(ctx, engine, basket, *token, *methodID); err != nil {
		log.Fatalf("Checkout failed: %v", err)
	}
}

// watch logs every checkout state and, when addr is set, serves the
// checkout counters.
func watch(ctx context.Context, engine *service.CheckoutServiceImpl, addr string) {
	logSub := engine.Subscribe(16)
	go func() {
		for st := range logSub.C {
			log.Printf("checkout state = %v", st.Name())
		}
	}()
	go func() {
		<-ctx.Done()
		logSub.Close()
	}()

	if addr == "" {
		return
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewCheckoutMetrics(reg)
	go m.Observe(ctx, engine.Subscribe(64))
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

func run(ctx context.Context, engine *service.CheckoutServiceImpl, basket d.Basket, token, methodID string) error {
	if err := engine.InitializeCheckout(ctx, basket); err != nil {
		return err
	}

	sess := engine.Session()
	t := sess.Basket.Totals
	fmt.Printf("Subtotal:   %s\n", t.SubTotal.Format(sess.Basket.Currency))
	fmt.Printf("Discounts:  %s\n", (t.DiscountTotal + t.PromoCodeDiscountValue).Format(sess.Basket.Currency))
	fmt.Printf("Credits:    %s\n", t.CreditTotal.Format(sess.Basket.Currency))
	fmt.Printf("Total:      %s\n", t.Total.Format(sess.Basket.Currency))
	fmt.Printf("Pay now:    %s\n", t.ChargeTotal.Format(sess.Basket.Currency))
	if t.PayLater > 0 {
		fmt.Printf("Pay later:  %s\n", t.PayLater.Format(sess.Basket.Currency))
	}

	if engine.RequiresPayment() {
		if methodID != "" {
			if err := engine.SelectPaymentMethod(d.PaymentMethod{ID: methodID}); err != nil {
				return err
			}
		}
		pm := engine.SelectedPaymentMethod()
		if pm == nil {
			return errors.New("no payment method on file; add one first")
		}
		fmt.Printf("Paying with %s ending %s\n", pm.Brand, pm.Last4)
	}

	if err := engine.NextStep(); err != nil {
		return err
	}

	outcome, err := engine.ProcessPayment(ctx, token)
	if err != nil {
		return err
	}

	switch outcome {
	case service.PaymentRequiresAction:
		secret := engine.Session().ClientSecret
		fmt.Printf("Your bank needs to confirm this payment (%s). Press Enter once done.\n", strings.SplitN(secret, "_secret_", 2)[0])
		if _, err := bufio.NewReader(os.Stdin).ReadString('\n'); err != nil {
			return err
		}
		if err := engine.Complete3DSAuthentication(ctx, secret); err != nil {
			return err
		}
		fallthrough
	case service.PaymentPending:
		order, err := engine.ConfirmOrder(ctx, token)
		if err != nil {
			return err
		}
		if order.Status != d.OrderStatusConfirmed {
			fmt.Printf("Order %s is still being processed.\n", order.ID)
			return nil
		}
	}

	order := engine.Order()
	if order == nil {
		return errors.New("checkout finished without an order")
	}
	fmt.Printf("Order %s confirmed.\n", order.ID)
	return nil
}

func readBasket(path string) (d.Basket, error) {
	var b d.Basket
	data, err := os.ReadFile(path)
	if err != nil {
		return b, err
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("failed to parse basket: %w", err)
	}
	return b, nil
}
