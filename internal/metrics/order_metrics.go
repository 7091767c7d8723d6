package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для метки result.
const (
	ResultCreated  = "created"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultFailed   = "failed"
)

// OrderMetrics содержит метрики оформления заказов.
type OrderMetrics struct {
	// Итоги оформления по результату
	ordersTotal *prometheus.CounterVec

	// Гистограммы времени выполнения
	orderDuration prometheus.Histogram
	stepDuration  *prometheus.HistogramVec

	unitsOrdered prometheus.Counter
	outboxEvents prometheus.Counter

	// Gauge для оформлений в процессе
	inFlight prometheus.Gauge
}

// NewOrderMetrics создаёт метрики, зарегистрированные в prometheus.DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersTotal: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ordering_orders_total",
			Help: "Total number of order placement attempts by result",
		}, []string{"result"}),
		orderDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ordering_create_order_duration_seconds",
			Help:    "Duration of order placement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "ordering_step_duration_seconds",
			Help:    "Duration of individual order placement steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		unitsOrdered: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_units_ordered_total",
			Help: "Total number of product units taken from stock by placed orders",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ordering_outbox_events_total",
			Help: "Total number of outbox events enqueued by placed orders",
		}),
		inFlight: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ordering_orders_in_flight",
			Help: "Number of order placements currently in progress",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordResult увеличивает счётчик оформлений с указанным результатом.
func (m *OrderMetrics) RecordResult(result string) {
	m.ordersTotal.WithLabelValues(result).Inc()
}

// RecordInFlightStarted увеличивает количество оформлений в процессе.
func (m *OrderMetrics) RecordInFlightStarted() {
	m.inFlight.Inc()
}

// RecordInFlightFinished уменьшает количество оформлений в процессе.
func (m *OrderMetrics) RecordInFlightFinished() {
	m.inFlight.Dec()
}

// RecordDuration записывает время оформления заказа.
func (m *OrderMetrics) RecordDuration(duration time.Duration) {
	m.orderDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага.
func (m *OrderMetrics) RecordStepDuration(step string, duration time.Duration) {
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordUnitsOrdered добавляет количество списанных единиц товара.
func (m *OrderMetrics) RecordUnitsOrdered(units int) {
	if units <= 0 {
		return
	}
	m.unitsOrdered.Add(float64(units))
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
