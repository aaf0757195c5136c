package offset

import (
	"github.com/shopspring/decimal"

	"sim-broker/internal/engine"
)

// Calc is the default Pricer.
//
// Profit orders are limits on the closing side at AvgPrice+dist for longs and
// AvgPrice-dist for shorts. Stops sit dist away on the losing side. The size is
// the position size scaled by percent and truncated. A flat position, a
// non-positive distance or a zero size produce an invalid order.
type Calc struct{}

func (Calc) ProfitOrder(p engine.Position, dist, percent decimal.Decimal) engine.Order {
	size, ok := offsetSize(p, dist, percent)
	if !ok {
		return engine.Order{Symbol: p.Symbol}
	}
	if p.IsLong() {
		return engine.SellLimit(p.Symbol, size, p.AvgPrice.Add(dist))
	}
	return engine.BuyLimit(p.Symbol, size, p.AvgPrice.Sub(dist))
}

func (Calc) StopOrder(p engine.Position, dist, percent decimal.Decimal) engine.Order {
	size, ok := offsetSize(p, dist, percent)
	if !ok {
		return engine.Order{Symbol: p.Symbol}
	}
	if p.IsLong() {
		return engine.SellStop(p.Symbol, size, p.AvgPrice.Sub(dist))
	}
	return engine.BuyStop(p.Symbol, size, p.AvgPrice.Add(dist))
}

func offsetSize(p engine.Position, dist, percent decimal.Decimal) (int64, bool) {
	if p.IsFlat() || !dist.IsPositive() || !percent.IsPositive() {
		return 0, false
	}
	size := decimal.NewFromInt(p.FlatSize()).Mul(percent).IntPart()
	return size, size > 0
}
