package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderType int
type Side int

const (
	Market OrderType = iota
	Limit
	OpeningPrice
	Stop
)

const (
	Buy Side = iota
	Sell
)

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case OpeningPrice:
		return "opg"
	case Stop:
		return "stop"
	}
	return "unknown"
}

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

func (t OrderType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *OrderType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "market", "":
		*t = Market
	case "limit":
		*t = Limit
	case "opg":
		*t = OpeningPrice
	case "stop":
		*t = Stop
	default:
		return fmt.Errorf("unknown order type %q", b)
	}
	return nil
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Side) UnmarshalText(b []byte) error {
	switch string(b) {
	case "buy":
		*s = Buy
	case "sell":
		*s = Sell
	default:
		return fmt.Errorf("unknown side %q", b)
	}
	return nil
}

// Sign is +1 for buys and -1 for sells.
func (s Side) Sign() int64 {
	if s == Buy {
		return 1
	}
	return -1
}

// Order represents an order in the orderbook
type Order struct {
	ID        uint64          `json:"id"` // 0 until accepted by the engine
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Size      int64           `json:"size"`
	Type      OrderType       `json:"type"`
	Price     decimal.Decimal `json:"price"`      // limit price
	StopPrice decimal.Decimal `json:"stop_price"` // trigger price for stop orders
	Account   string          `json:"account,omitempty"`
	Time      time.Time       `json:"time"`
}

// IsBuy reports whether the order buys.
func (o Order) IsBuy() bool { return o.Side == Buy }

// IsValid reports whether the order can be accepted into the book.
// Best bid/offer results for an empty side are never valid.
func (o Order) IsValid() bool {
	if o.Symbol == "" || o.Size <= 0 {
		return false
	}
	switch o.Type {
	case Limit:
		return o.Price.IsPositive()
	case Stop:
		return o.StopPrice.IsPositive()
	}
	return true
}

func (o Order) String() string {
	if !o.IsValid() {
		return fmt.Sprintf("%s %s invalid", o.Symbol, o.Side)
	}
	s := fmt.Sprintf("%s %s %d %s", o.Side, o.Symbol, o.Size, o.Type)
	switch o.Type {
	case Limit:
		s += "@" + o.Price.String()
	case Stop:
		s += "@" + o.StopPrice.String()
	}
	if o.ID != 0 {
		s += fmt.Sprintf(" [%d]", o.ID)
	}
	return s
}

func BuyMarket(symbol string, size int64) Order {
	return Order{Symbol: symbol, Side: Buy, Size: size, Type: Market}
}

func SellMarket(symbol string, size int64) Order {
	return Order{Symbol: symbol, Side: Sell, Size: size, Type: Market}
}

func BuyLimit(symbol string, size int64, price decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Buy, Size: size, Type: Limit, Price: price}
}

func SellLimit(symbol string, size int64, price decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Sell, Size: size, Type: Limit, Price: price}
}

// BuyOPG builds an opening-price buy. The price is informational only.
func BuyOPG(symbol string, size int64, price decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Buy, Size: size, Type: OpeningPrice, Price: price}
}

func SellOPG(symbol string, size int64, price decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Sell, Size: size, Type: OpeningPrice, Price: price}
}

func BuyStop(symbol string, size int64, stop decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Buy, Size: size, Type: Stop, StopPrice: stop}
}

func SellStop(symbol string, size int64, stop decimal.Decimal) Order {
	return Order{Symbol: symbol, Side: Sell, Size: size, Type: Stop, StopPrice: stop}
}

// Tick is a market data trade print
type Tick struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Size     int64           `json:"size"`
	Exchange string          `json:"exchange,omitempty"`
	Time     time.Time       `json:"time"`
}

// NewTrade builds a trade tick with no exchange and the current time.
func NewTrade(symbol string, price decimal.Decimal, size int64) Tick {
	return Tick{Symbol: symbol, Price: price, Size: size, Time: time.Now()}
}

// IsTrade reports whether the tick carries a trade print.
func (t Tick) IsTrade() bool {
	return t.Price.IsPositive() && t.Size > 0
}

// Trade represents a fill produced by the engine
type Trade struct {
	OrderID  uint64          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	Account  string          `json:"account"`
	Side     Side            `json:"side"`
	Price    decimal.Decimal `json:"price"`
	Size     int64           `json:"size"`
	Exchange string          `json:"exchange,omitempty"`
	Time     time.Time       `json:"time"`
}

// SignedSize is positive for buys and negative for sells.
func (t Trade) SignedSize() int64 {
	return t.Side.Sign() * t.Size
}

// Position is the net exposure of one account in one symbol
type Position struct {
	Symbol   string          `json:"symbol"`
	Account  string          `json:"account"`
	Size     int64           `json:"size"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	ClosedPL decimal.Decimal `json:"closed_pl"`
}

func (p Position) IsLong() bool  { return p.Size > 0 }
func (p Position) IsShort() bool { return p.Size < 0 }
func (p Position) IsFlat() bool  { return p.Size == 0 }

// FlatSize is the absolute position size.
func (p Position) FlatSize() int64 {
	if p.Size < 0 {
		return -p.Size
	}
	return p.Size
}
