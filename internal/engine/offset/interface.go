package offset

import (
	"github.com/shopspring/decimal"

	"sim-broker/internal/engine"
)

// OrderSender places an offset order and returns its id, 0 if it was rejected.
type OrderSender interface {
	SendOrder(o engine.Order) uint64
}

// OrderCanceller cancels an outstanding offset order.
type OrderCanceller interface {
	CancelOrder(id uint64)
}

// Pricer turns a position into protective orders.
type Pricer interface {
	ProfitOrder(p engine.Position, dist, percent decimal.Decimal) engine.Order
	StopOrder(p engine.Position, dist, percent decimal.Decimal) engine.Order
}

type SenderFunc func(o engine.Order) uint64

func (f SenderFunc) SendOrder(o engine.Order) uint64 { return f(o) }

type CancellerFunc func(id uint64)

func (f CancellerFunc) CancelOrder(id uint64) { f(id) }
