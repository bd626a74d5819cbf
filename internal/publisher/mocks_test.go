package publisher

import (
	"context"
	"sync"
	"time"

	r "github.com/fjod/go_cart/checkout-engine/internal/repository"
	"github.com/segmentio/kafka-go"
)

type MockEventStore struct {
	mu sync.Mutex

	OutboxEvents []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

// GetUnprocessedEvents returns the events not yet marked, oldest first.
func (m *MockEventStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var out []*r.OutboxEvent
	for _, ev := range m.OutboxEvents {
		if len(out) == limit {
			break
		}
		if !m.processedLocked(ev.ID) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *MockEventStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockEventStore) processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

func (m *MockEventStore) processedLocked(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	Messages []kafka.Message
	FailOn   map[string]error // keyed by message key
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		if err := m.FailOn[string(msg.Key)]; err != nil {
			return err
		}
		m.Messages = append(m.Messages, msg)
	}
	return nil
}

type MockReconciler struct {
	Settled   int
	Err       error
	Calls     int
	OlderThan time.Duration
	Limit     int
}

func (m *MockReconciler) ReconcilePending(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	m.Calls++
	m.OlderThan = olderThan
	m.Limit = limit
	return m.Settled, m.Err
}
