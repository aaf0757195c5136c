// Package offset keeps protective profit and stop orders in line with positions.
package offset

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"sim-broker/internal/engine"
	"sim-broker/pkg/utils"
)

var ErrMissingCallbacks = errors.New("offset: order sender and canceller must both be set")

// Info is the offset configuration of one symbol. ProfitID and StopID report the
// orders working for one position when returned by OffsetForAccount.
type Info struct {
	ProfitDist    decimal.Decimal `json:"profit_dist" yaml:"profit_dist"`
	StopDist      decimal.Decimal `json:"stop_dist" yaml:"stop_dist"`
	ProfitPercent decimal.Decimal `json:"profit_percent" yaml:"profit_percent"`
	StopPercent   decimal.Decimal `json:"stop_percent" yaml:"stop_percent"`
	ProfitID      uint64          `json:"profit_id" yaml:"-"`
	StopID        uint64          `json:"stop_id" yaml:"-"`
}

// NewInfo returns an offset with the given distances covering the full position.
func NewInfo(profitDist, stopDist decimal.Decimal) Info {
	return Info{
		ProfitDist:    profitDist,
		StopDist:      stopDist,
		ProfitPercent: decimal.NewFromInt(1),
		StopPercent:   decimal.NewFromInt(1),
	}
}

// DefaultInfo has zero distances, which places no orders.
func DefaultInfo() Info {
	return NewInfo(decimal.Zero, decimal.Zero)
}

// slot identifies the position an offset pair protects.
type slot struct {
	account string
	symbol  string
}

type workingIDs struct {
	profit uint64
	stop   uint64
}

// Tracker maintains at most one profit and one stop order per (account, symbol)
// position. Distances and percents are configured per symbol.
// Like the engine it is single-threaded; it may be registered on the engine as a
// fill and cancel listener.
type Tracker struct {
	account   string
	def       Info
	custom    map[string]Info
	working   map[slot]workingIDs
	ignore    map[string]bool
	positions *engine.PositionTracker
	sender    OrderSender
	canceller OrderCanceller
	pricer    Pricer
	ready     bool
	log       logrus.FieldLogger
}

func NewTracker(defaultAccount string) *Tracker {
	return &Tracker{
		account:   defaultAccount,
		def:       DefaultInfo(),
		custom:    make(map[string]Info),
		working:   make(map[slot]workingIDs),
		ignore:    make(map[string]bool),
		positions: engine.NewPositionTracker(defaultAccount),
		pricer:    Calc{},
		log:       utils.Logger,
	}
}

func (t *Tracker) SetSender(s OrderSender)        { t.sender = s }
func (t *Tracker) SetCanceller(c OrderCanceller)  { t.canceller = c }
func (t *Tracker) SetPricer(p Pricer)             { t.pricer = p }
func (t *Tracker) SetLogger(l logrus.FieldLogger) { t.log = l }

// SetDefault changes the offset used by symbols without a custom one.
func (t *Tracker) SetDefault(info Info) {
	info.ProfitID, info.StopID = 0, 0
	t.def = info
}

func (t *Tracker) Default() Info { return t.def }

// SetOffset installs a custom offset for symbol. Working orders are kept until
// the next refresh of each position.
func (t *Tracker) SetOffset(symbol string, info Info) {
	info.ProfitID, info.StopID = 0, 0
	t.custom[symbol] = info
}

// Offset returns the default account's offset for symbol.
func (t *Tracker) Offset(symbol string) Info {
	return t.OffsetForAccount(symbol, "")
}

// OffsetForAccount returns the offset configured for symbol together with the ids
// of the orders working for the account's position.
func (t *Tracker) OffsetForAccount(symbol, account string) Info {
	info := t.config(symbol)
	w := t.working[t.slot(symbol, account)]
	info.ProfitID, info.StopID = w.profit, w.stop
	return info
}

// SetIgnore replaces the list of symbols that get no offsets.
func (t *Tracker) SetIgnore(symbols ...string) {
	t.ignore = make(map[string]bool, len(symbols))
	for _, s := range symbols {
		t.ignore[s] = true
	}
}

func (t *Tracker) Positions() *engine.PositionTracker { return t.positions }

func (t *Tracker) config(symbol string) Info {
	if info, ok := t.custom[symbol]; ok {
		return info
	}
	return t.def
}

func (t *Tracker) slot(symbol, account string) slot {
	if account == "" {
		account = t.account
	}
	return slot{account: account, symbol: symbol}
}

// UpdateTrade applies a fill and refreshes the offsets of its position.
func (t *Tracker) UpdateTrade(tr engine.Trade) error {
	if err := t.checkCallbacks(); err != nil {
		return err
	}
	p := t.positions.Adjust(tr)
	t.refresh(p)
	return nil
}

// UpdatePosition applies a position snapshot and refreshes its offsets.
func (t *Tracker) UpdatePosition(p engine.Position) error {
	if err := t.checkCallbacks(); err != nil {
		return err
	}
	p = t.positions.AdjustPosition(p)
	t.refresh(p)
	return nil
}

// GotFill lets the tracker listen to engine fills.
func (t *Tracker) GotFill(tr engine.Trade) {
	if err := t.UpdateTrade(tr); err != nil {
		utils.LogError(err)
	}
}

// GotCancel clears a cancelled offset order id wherever it is tracked.
func (t *Tracker) GotCancel(id uint64) {
	if id == 0 {
		return
	}
	for k, w := range t.working {
		switch id {
		case w.stop:
			w.stop = 0
		case w.profit:
			w.profit = 0
		default:
			continue
		}
		t.working[k] = w
	}
}

func (t *Tracker) checkCallbacks() error {
	if t.ready {
		return nil
	}
	if t.sender == nil || t.canceller == nil {
		return ErrMissingCallbacks
	}
	t.ready = true
	return nil
}

func (t *Tracker) refresh(p engine.Position) {
	if t.ignore[p.Symbol] {
		return
	}
	k := t.slot(p.Symbol, p.Account)
	off := t.config(p.Symbol)
	w := t.working[k]
	t.cancel(w.profit)
	t.cancel(w.stop)
	w = workingIDs{}

	profit := t.pricer.ProfitOrder(p, off.ProfitDist, off.ProfitPercent)
	if profit.IsValid() {
		profit.Account = k.account
		w.profit = t.sender.SendOrder(profit)
	}
	stop := t.pricer.StopOrder(p, off.StopDist, off.StopPercent)
	if stop.IsValid() {
		stop.Account = k.account
		w.stop = t.sender.SendOrder(stop)
	}

	t.log.WithFields(logrus.Fields{
		"symbol":    k.symbol,
		"account":   k.account,
		"position":  p.Size,
		"profit_id": w.profit,
		"stop_id":   w.stop,
	}).Debug("Offsets refreshed")
	t.working[k] = w
}

func (t *Tracker) cancel(id uint64) {
	if id != 0 {
		t.canceller.CancelOrder(id)
	}
}

func (t *Tracker) cancelProfit(k slot) { t.cancel(t.working[k].profit) }
func (t *Tracker) cancelStop(k slot)   { t.cancel(t.working[k].stop) }

func (t *Tracker) cancelBoth(k slot) {
	t.cancelProfit(k)
	t.cancelStop(k)
}

// CancelAll cancels every tracked offset order.
func (t *Tracker) CancelAll() {
	keys := make([]slot, 0, len(t.working))
	for k := range t.working {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].account != keys[j].account {
			return keys[i].account < keys[j].account
		}
		return keys[i].symbol < keys[j].symbol
	})
	for _, k := range keys {
		t.cancelBoth(k)
	}
}

// CancelSymbol cancels profit and stop orders for symbol in every account.
func (t *Tracker) CancelSymbol(symbol string) {
	t.eachPosition(bySymbol(symbol), t.cancelBoth)
}

// CancelProfit cancels the profit orders for symbol.
func (t *Tracker) CancelProfit(symbol string) {
	t.eachPosition(bySymbol(symbol), t.cancelProfit)
}

// CancelStop cancels the stop orders for symbol.
func (t *Tracker) CancelStop(symbol string) {
	t.eachPosition(bySymbol(symbol), t.cancelStop)
}

// CancelSide cancels profit and stop orders of long (true) or short positions.
func (t *Tracker) CancelSide(long bool) {
	t.eachPosition(bySide(long), t.cancelBoth)
}

// CancelProfitSide cancels profit orders of long (true) or short positions.
func (t *Tracker) CancelProfitSide(long bool) {
	t.eachPosition(bySide(long), t.cancelProfit)
}

// CancelStopSide cancels stop orders of long (true) or short positions.
func (t *Tracker) CancelStopSide(long bool) {
	t.eachPosition(bySide(long), t.cancelStop)
}

func bySymbol(symbol string) func(engine.Position) bool {
	return func(p engine.Position) bool { return p.Symbol == symbol }
}

func bySide(long bool) func(engine.Position) bool {
	return func(p engine.Position) bool {
		// flat positions have no side
		return !p.IsFlat() && p.IsLong() == long
	}
}

// eachPosition calls fn for every known position matching keep.
func (t *Tracker) eachPosition(keep func(engine.Position) bool, fn func(slot)) {
	for _, p := range t.positions.Positions() {
		if keep(p) {
			fn(t.slot(p.Symbol, p.Account))
		}
	}
}
