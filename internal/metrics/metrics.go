package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sim-broker/internal/engine"
)

var (
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_orders_total", Help: "Orders accepted into the book"},
		[]string{"symbol", "side"},
	)
	OrdersRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "broker_orders_rejected_total", Help: "Orders rejected at submission"},
	)
	FillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_fills_total", Help: "Fills produced by ticks"},
		[]string{"symbol", "side"},
	)
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "broker_ticks_total", Help: "Count of market ticks executed"},
		[]string{"symbol"},
	)
	CancelsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "broker_cancels_total", Help: "Resting orders cancelled"},
	)
)

func init() {
	prometheus.MustRegister(OrdersTotal, OrdersRejected, FillsTotal, TicksTotal, CancelsTotal)
}

// Listener counts engine events. Register it with Attach.
type Listener struct{}

func (Listener) GotOrder(o engine.Order) {
	OrdersTotal.WithLabelValues(o.Symbol, o.Side.String()).Inc()
}

func (Listener) GotFill(t engine.Trade) {
	FillsTotal.WithLabelValues(t.Symbol, t.Side.String()).Inc()
}

func (Listener) GotTick(t engine.Tick) {
	TicksTotal.WithLabelValues(t.Symbol).Inc()
}

func (Listener) GotCancel(uint64) {
	CancelsTotal.Inc()
}

// Attach registers a Listener for every engine event.
func Attach(e *engine.MatchingEngine) {
	var l Listener
	e.OnOrder(l)
	e.OnFill(l)
	e.OnTick(l)
	e.OnCancel(l)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
