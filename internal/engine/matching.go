package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"sim-broker/pkg/utils"
)

// Config carries the values the engine would otherwise take from process-wide state.
type Config struct {
	// DefaultAccount owns orders submitted without an account.
	DefaultAccount string
	// PrimaryExchange is the exchange whose first trade print fills opening-price orders.
	PrimaryExchange string
	// StartID seeds the order id counter.
	StartID uint64
	Logger  logrus.FieldLogger
}

func DefaultConfig() Config {
	return Config{
		DefaultAccount:  "DEFAULT",
		PrimaryExchange: "NYS",
		StartID:         1,
	}
}

// MatchingEngine is a simulated broker. It accepts orders into a book and fills
// them against incoming trade ticks.
//
// The engine is not safe for concurrent use. Listeners run synchronously inside
// the call that triggered them and may call back into the engine.
type MatchingEngine struct {
	cfg       Config
	log       logrus.FieldLogger
	orderBook *OrderBook
	positions *PositionTracker
	opened    map[string]bool // exchange -> opening print seen

	orderListeners  []OrderListener
	fillListeners   []FillListener
	tickListeners   []TickListener
	cancelListeners []CancelListener
}

func NewMatchingEngine(cfg Config) *MatchingEngine {
	def := DefaultConfig()
	if cfg.DefaultAccount == "" {
		cfg.DefaultAccount = def.DefaultAccount
	}
	if cfg.PrimaryExchange == "" {
		cfg.PrimaryExchange = def.PrimaryExchange
	}
	log := cfg.Logger
	if log == nil {
		log = utils.Logger
	}
	return &MatchingEngine{
		cfg:       cfg,
		log:       log,
		orderBook: NewOrderBook(cfg.StartID),
		positions: NewPositionTracker(cfg.DefaultAccount),
		opened:    make(map[string]bool),
	}
}

func (e *MatchingEngine) Config() Config { return e.cfg }

// SendOrder validates the order and rests it in the book. It returns the new order
// id, or 0 when the order was rejected.
func (e *MatchingEngine) SendOrder(order Order) uint64 {
	return e.SendOrderForAccount(order, "")
}

// SendOrderForAccount is SendOrder with an explicit account that takes precedence
// over the order's own Account field.
func (e *MatchingEngine) SendOrderForAccount(order Order, account string) uint64 {
	if !order.IsValid() {
		e.log.WithFields(logrus.Fields{
			"symbol": order.Symbol,
			"size":   order.Size,
			"type":   order.Type.String(),
		}).Warn("Order rejected")
		return 0
	}
	switch {
	case account != "":
		order.Account = account
	case order.Account == "":
		order.Account = e.cfg.DefaultAccount
	}
	if order.Time.IsZero() {
		order.Time = time.Now()
	}
	order.ID = e.orderBook.Insert(order)
	utils.LogOrder(e.log, order.ID, order.Symbol, order.Side.String(), order.Size, order.Account)
	e.notifyOrder(order)
	return order.ID
}

// CancelOrder removes a resting order. Unknown ids are ignored.
func (e *MatchingEngine) CancelOrder(id uint64) {
	if !e.orderBook.Cancel(id) {
		return
	}
	e.log.WithField("order_id", id).Debug("Order cancelled")
	e.notifyCancel(id)
}

// CancelOrders cancels every resting order of every symbol.
func (e *MatchingEngine) CancelOrders() {
	for _, id := range e.orderBook.IDs() {
		e.CancelOrder(id)
	}
}

// Execute passes the tick to tick listeners and fills every resting order of the
// tick's symbol that the tick satisfies. It returns the number of fills.
func (e *MatchingEngine) Execute(tick Tick) int {
	e.notifyTick(tick)
	if !tick.IsTrade() {
		return 0
	}

	opening := tick.Exchange == e.cfg.PrimaryExchange && !e.opened[tick.Exchange]
	if opening {
		e.opened[tick.Exchange] = true
	}

	var matched []Order
	for _, o := range e.orderBook.Orders(tick.Symbol) {
		if e.fillable(o, tick, opening) {
			matched = append(matched, o)
		}
	}
	// book is settled before any fill listener runs
	for _, o := range matched {
		e.orderBook.Cancel(o.ID)
	}

	for _, o := range matched {
		fill := Trade{
			OrderID:  o.ID,
			Symbol:   o.Symbol,
			Account:  o.Account,
			Side:     o.Side,
			Price:    tick.Price,
			Size:     o.Size,
			Exchange: tick.Exchange,
			Time:     tick.Time,
		}
		e.positions.Adjust(fill)
		utils.LogFill(e.log, fill.OrderID, fill.Symbol, fill.Side.String(), fill.Price.String(), fill.Size, fill.Account)
		e.notifyFill(fill)
	}

	utils.LogMatchResult(tick.Symbol, len(matched))
	return len(matched)
}

func (e *MatchingEngine) fillable(o Order, tick Tick, opening bool) bool {
	switch o.Type {
	case Market:
		return true
	case Limit:
		return e.isPriceAcceptable(o, tick)
	case OpeningPrice:
		return opening
	case Stop:
		return e.isStopTriggered(o, tick)
	}
	return false
}

func (e *MatchingEngine) isPriceAcceptable(order Order, tick Tick) bool {
	if order.IsBuy() {
		return tick.Price.LessThanOrEqual(order.Price)
	}
	return tick.Price.GreaterThanOrEqual(order.Price)
}

func (e *MatchingEngine) isStopTriggered(order Order, tick Tick) bool {
	if order.IsBuy() {
		return tick.Price.GreaterThanOrEqual(order.StopPrice)
	}
	return tick.Price.LessThanOrEqual(order.StopPrice)
}

// ResetSession forgets every opening print so opening-price orders can fill again.
func (e *MatchingEngine) ResetSession() {
	e.opened = make(map[string]bool)
}

// ResetExchange forgets the opening print of one exchange.
func (e *MatchingEngine) ResetExchange(code string) {
	delete(e.opened, code)
}

// HasOpened reports whether the opening print of exchange was already seen.
func (e *MatchingEngine) HasOpened(exchange string) bool {
	return e.opened[exchange]
}

func (e *MatchingEngine) BestBid(symbol string) Order   { return e.orderBook.BestBid(symbol) }
func (e *MatchingEngine) BestOffer(symbol string) Order { return e.orderBook.BestOffer(symbol) }

// Orders returns the resting orders for symbol.
func (e *MatchingEngine) Orders(symbol string) []Order { return e.orderBook.Orders(symbol) }

// GetOpenPosition returns the default account's position. Fills attributed to any
// other account never show up here.
func (e *MatchingEngine) GetOpenPosition(symbol string) Position {
	return e.positions.Get(symbol)
}

func (e *MatchingEngine) GetOpenPositionForAccount(symbol, account string) Position {
	return e.positions.GetForAccount(symbol, account)
}

func (e *MatchingEngine) Positions() []Position { return e.positions.Positions() }
