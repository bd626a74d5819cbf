package metrics

import (
	"context"

	"github.com/fjod/go_cart/checkout-engine/internal/service"
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts what a checkout state machine goes through.
type CheckoutMetrics struct {
	States   *prometheus.CounterVec
	Errors   *prometheus.CounterVec
	Payments *prometheus.CounterVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	states := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "state_transitions_total",
		Help:      "Checkout states entered, by state.",
	}, []string{"state"})
	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Checkout errors shown to the user, by gateway code.",
	}, []string{"code", "retryable"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_confirmed_total",
		Help:      "Checkouts that ended with a confirmed order, by currency.",
	}, []string{"currency"})

	reg.MustRegister(states, errs, payments)
	return &CheckoutMetrics{States: states, Errors: errs, Payments: payments}
}

// Observe records every state delivered on sub until it is closed or ctx is
// done. States a slow observer never saw are not counted.
func (m *CheckoutMetrics) Observe(ctx context.Context, sub *service.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-sub.C:
			if !ok {
				return
			}
			m.record(st)
		}
	}
}

func (m *CheckoutMetrics) record(st service.State) {
	m.States.WithLabelValues(string(st.Name())).Inc()
	switch s := st.(type) {
	case service.ErrorState:
		code := s.Code
		if code == "" {
			code = "none"
		}
		retryable := "false"
		if s.Retryable {
			retryable = "true"
		}
		m.Errors.WithLabelValues(code, retryable).Inc()
	case service.SuccessState:
		m.Payments.WithLabelValues(s.Order.Currency).Inc()
	}
}
