package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// OrderBook maintains the resting orders of every symbol.
// Ids come from a counter owned by the book, so they are unique across symbols
// for the lifetime of the book and never reused.
type OrderBook struct {
	orders map[string][]Order // symbol -> resting orders in insertion order
	index  map[uint64]string  // order id -> symbol
	nextID uint64
}

func NewOrderBook(startID uint64) *OrderBook {
	if startID == 0 {
		startID = 1
	}
	return &OrderBook{
		orders: make(map[string][]Order),
		index:  make(map[uint64]string),
		nextID: startID,
	}
}

// Insert assigns the next id to the order and stores it.
func (b *OrderBook) Insert(order Order) uint64 {
	order.ID = b.nextID
	b.nextID++
	b.orders[order.Symbol] = append(b.orders[order.Symbol], order)
	b.index[order.ID] = order.Symbol
	return order.ID
}

// Cancel removes the order with the given id. Unknown ids are ignored.
func (b *OrderBook) Cancel(id uint64) bool {
	symbol, ok := b.index[id]
	if !ok {
		return false
	}
	delete(b.index, id)
	resting := b.orders[symbol]
	for i := range resting {
		if resting[i].ID == id {
			b.orders[symbol] = append(resting[:i:i], resting[i+1:]...)
			break
		}
	}
	if len(b.orders[symbol]) == 0 {
		delete(b.orders, symbol)
	}
	return true
}

// Clear drops every resting order. The id counter keeps running.
func (b *OrderBook) Clear() {
	b.orders = make(map[string][]Order)
	b.index = make(map[uint64]string)
}

// Get returns the resting order with the given id.
func (b *OrderBook) Get(id uint64) (Order, bool) {
	symbol, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	for _, o := range b.orders[symbol] {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// Orders returns a copy of the resting orders for symbol in insertion order.
func (b *OrderBook) Orders(symbol string) []Order {
	resting := b.orders[symbol]
	out := make([]Order, len(resting))
	copy(out, resting)
	return out
}

// IDs returns the ids of all resting orders, oldest first.
func (b *OrderBook) IDs() []uint64 {
	ids := make([]uint64, 0, len(b.index))
	for id := range b.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (b *OrderBook) Len() int { return len(b.index) }

// BestBid returns the highest resting buy price and the total size resting at it.
func (b *OrderBook) BestBid(symbol string) Order {
	return b.best(symbol, Buy)
}

// BestOffer returns the lowest resting sell price and the total size resting at it.
func (b *OrderBook) BestOffer(symbol string) Order {
	return b.best(symbol, Sell)
}

func (b *OrderBook) best(symbol string, side Side) Order {
	quote := Order{Symbol: symbol, Side: side, Type: Limit}
	found := false
	var price decimal.Decimal
	var size int64
	for _, o := range b.orders[symbol] {
		if o.Side != side || o.Type != Limit {
			continue
		}
		switch {
		case !found, better(side, o.Price, price):
			found = true
			price = o.Price
			size = o.Size
		case o.Price.Equal(price):
			size += o.Size
		}
	}
	if !found {
		return quote
	}
	quote.Price = price
	quote.Size = size
	return quote
}

func better(side Side, p, than decimal.Decimal) bool {
	if side == Buy {
		return p.GreaterThan(than)
	}
	return p.LessThan(than)
}
