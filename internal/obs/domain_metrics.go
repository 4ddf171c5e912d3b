package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTransitions counts checkout session state transitions.
	CheckoutTransitions *prometheus.CounterVec
	// CouponApplyTotal counts coupon application outcomes.
	CouponApplyTotal *prometheus.CounterVec
	// PaymentIntentTotal counts payment intent creation outcomes.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentAmbiguousTotal counts verifications that failed after a gateway success.
	PaymentAmbiguousTotal prometheus.Counter
	// MoneyClampTotal counts subtractions that were floored at zero, by call site.
	MoneyClampTotal *prometheus.CounterVec
	// CollaboratorLatency records collaborator call latency in milliseconds.
	CollaboratorLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transition_total",
			Help:      "Count of checkout session state transitions.",
		}, []string{"from", "to"})
		CouponApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_apply_total",
			Help:      "Count of coupon application outcomes.",
		}, []string{"result"})
		PaymentIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent processing outcomes.",
		}, []string{"result"})
		PaymentAmbiguousTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_ambiguous_total",
			Help:      "Payments whose verification failed after the gateway reported success.",
		})
		MoneyClampTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "money_clamp_total",
			Help:      "Subtractions floored at zero instead of going negative.",
		}, []string{"site"})
		CollaboratorLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_request_duration_ms",
			Help:      "Latency of backend collaborator calls in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"collaborator", "result"})

		mustRegisterCollector(reg, CheckoutTransitions, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTransitions = v
			}
		})
		mustRegisterCollector(reg, CouponApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponApplyTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentIntentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentIntentTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentAmbiguousTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PaymentAmbiguousTotal = v
			}
		})
		mustRegisterCollector(reg, MoneyClampTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MoneyClampTotal = v
			}
		})
		mustRegisterCollector(reg, CollaboratorLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				CollaboratorLatency = v
			}
		})
	})
}

// ObserveTransition increments the transition counter when metrics are registered.
func ObserveTransition(from, to string) {
	if CheckoutTransitions != nil {
		CheckoutTransitions.WithLabelValues(from, to).Inc()
	}
}

// ObserveCouponApply records a coupon apply outcome.
func ObserveCouponApply(result string) {
	if CouponApplyTotal != nil {
		CouponApplyTotal.WithLabelValues(result).Inc()
	}
}

// ObservePaymentIntent records a payment intent outcome.
func ObservePaymentIntent(result string) {
	if PaymentIntentTotal != nil {
		PaymentIntentTotal.WithLabelValues(result).Inc()
	}
}

// ObserveAmbiguousPayment records an ambiguous payment verification.
func ObserveAmbiguousPayment() {
	if PaymentAmbiguousTotal != nil {
		PaymentAmbiguousTotal.Inc()
	}
}

// ObserveClamp records a money subtraction floored at zero.
func ObserveClamp(site string) {
	if MoneyClampTotal != nil {
		MoneyClampTotal.WithLabelValues(site).Inc()
	}
}

// ObserveCollaborator records a collaborator call latency.
func ObserveCollaborator(name, result string, ms float64) {
	if CollaboratorLatency != nil {
		CollaboratorLatency.WithLabelValues(name, result).Observe(ms)
	}
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
