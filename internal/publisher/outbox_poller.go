package publisher

import (
	"context"
	"log"
	"time"

	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/segmentio/kafka-go"
)

// Topic receives order.confirmed and order.failed events keyed by order id.
const Topic = "order-events"

const (
	eventBatchSize   = 100
	reconcileBatch   = 50
	pendingThreshold = 10 * time.Minute
)

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*r.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

// Reconciler settles orders stuck waiting on the payment gateway.
type Reconciler interface {
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type OutboxPoller struct {
	timeout      time.Duration
	eventTick    time.Duration
	recoveryTick time.Duration
	repo         EventStore
	orders       Reconciler
	writer       MessageWriter
}

func NewKafkaWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewOutboxPoller publishes outbox events through writer. orders may be nil,
// in which case pending orders are left for FetchOrder to settle.
func NewOutboxPoller(repo EventStore, orders Reconciler, writer MessageWriter) *OutboxPoller {
	return &OutboxPoller{time.Second * 5, time.Second, time.Minute, repo, orders, writer}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-recoveryTicker.C:
			p.reconcilePendingOrders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, eventBatchSize)
	if err != nil {
		log.Printf("failed to fetch events %v", err)
		return
	}

	for _, event := range events {
		if err := p.publishToKafka(ctx, event); err != nil {
			log.Printf("failed to publish event id = %v with error %v", event.ID, err)
			// Later events for the same order must not overtake this one.
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			log.Printf("failed to mark event as processed id = %v with error %v", event.ID, err)
			return
		}
	}
}

func (p *OutboxPoller) reconcilePendingOrders(ctx context.Context) {
	if p.orders == nil {
		return
	}
	n, err := p.orders.ReconcilePending(ctx, pendingThreshold, reconcileBatch)
	if err != nil {
		log.Printf("failed to reconcile pending orders: %v", err)
		return
	}
	if n > 0 {
		log.Printf("reconciled %d pending orders", n)
	}
}

func (p *OutboxPoller) publishToKafka(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id for ordering
		Value: event.Payload,             // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}

	return p.writer.WriteMessages(ctx, msg)
}
