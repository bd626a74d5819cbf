package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/checkout-engine/internal/config"
	"github.com/fjod/go_cart/checkout-engine/internal/gateway"
	h "github.com/fjod/go_cart/checkout-engine/internal/http"
	"github.com/fjod/go_cart/checkout-engine/internal/metrics"
	"github.com/fjod/go_cart/checkout-engine/internal/orders"
	"github.com/fjod/go_cart/checkout-engine/internal/publisher"
	"github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	log.Println("orders-service starting...")

	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.ValidateGateway(); err != nil {
		log.Fatalf("Invalid gateway configuration: %v", err)
	}

	// Database setup
	creds := cfg.Credentials()
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Payment gateway
	api := gateway.NewStripeAPI(cfg.Stripe.SecretKey, &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout:   cfg.Stripe.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	})
	svc := orders.NewService(repo, gateway.NewStripeGateway(api, cfg.Stripe.CustomerID))

	// Outbox
	writer := publisher.NewKafkaWriter(cfg.Kafka.Brokers...)
	defer writer.Close()
	poller := publisher.NewOutboxPoller(repo, svc, writer)

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go poller.Run(pollCtx)

	// HTTP
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := h.NewRouter(h.NewOrdersHandler(svc, cfg.HTTP.RequestTimeout), h.RouterConfig{
		ServiceName:    "orders-service",
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Resolve:        h.TokenAsUserID,
		Metrics:        metrics.NewServerMetrics(reg, "orders"),
		MetricsHandler: metrics.Handler(reg),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTP.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Orders service listening on :%s", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down orders service...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	log.Println("orders service stopped")
}
