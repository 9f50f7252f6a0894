package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PromoCalculationsTotal counts promotion calculation outcomes per tenant.
	PromoCalculationsTotal *prometheus.CounterVec
	// PromoCodeValidationsTotal counts code validation outcomes.
	PromoCodeValidationsTotal *prometheus.CounterVec
	// PromoDiscountCents observes the total discount granted per calculation.
	PromoDiscountCents prometheus.Histogram
	// PromoUsageRecordFailures counts usage records that could not be persisted
	// or enqueued. Recording is fire-and-forget, so failures only surface here.
	PromoUsageRecordFailures prometheus.Counter
	// PromoUnknownTypeTotal counts promotions skipped because their type has no calculator.
	PromoUnknownTypeTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PromoCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_calculations_total",
			Help:      "Count of promotion calculation outcomes.",
		}, []string{"tenant", "result"})
		PromoCodeValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_code_validations_total",
			Help:      "Count of promotion code validation outcomes.",
		}, []string{"result"})
		PromoDiscountCents = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "promo_discount_cents",
			Help:      "Total discount granted per calculation in minor units.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		})
		PromoUsageRecordFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_usage_record_failures_total",
			Help:      "Number of promotion usage records that failed to persist or enqueue.",
		})
		PromoUnknownTypeTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_unknown_type_total",
			Help:      "Number of promotions skipped due to an unknown promotion type.",
		})

		mustRegisterCollector(reg, PromoCalculationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoCalculationsTotal = v
			}
		})
		mustRegisterCollector(reg, PromoCodeValidationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PromoCodeValidationsTotal = v
			}
		})
		mustRegisterCollector(reg, PromoDiscountCents, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				PromoDiscountCents = v
			}
		})
		mustRegisterCollector(reg, PromoUsageRecordFailures, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PromoUsageRecordFailures = v
			}
		})
		mustRegisterCollector(reg, PromoUnknownTypeTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PromoUnknownTypeTotal = v
			}
		})
	})
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
