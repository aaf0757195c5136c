package engine

// OrderListener is told about every accepted order.
type OrderListener interface {
	GotOrder(o Order)
}

// FillListener is told about every fill.
type FillListener interface {
	GotFill(t Trade)
}

// TickListener receives every tick passed to Execute, matched or not.
type TickListener interface {
	GotTick(t Tick)
}

// CancelListener is told about every resting order that was cancelled.
type CancelListener interface {
	GotCancel(id uint64)
}

type OrderFunc func(o Order)

func (f OrderFunc) GotOrder(o Order) { f(o) }

type FillFunc func(t Trade)

func (f FillFunc) GotFill(t Trade) { f(t) }

type TickFunc func(t Tick)

func (f TickFunc) GotTick(t Tick) { f(t) }

type CancelFunc func(id uint64)

func (f CancelFunc) GotCancel(id uint64) { f(id) }

// OnOrder registers l for order acceptance events.
func (e *MatchingEngine) OnOrder(l OrderListener) { e.orderListeners = append(e.orderListeners, l) }

// OnFill registers l for fill events.
func (e *MatchingEngine) OnFill(l FillListener) { e.fillListeners = append(e.fillListeners, l) }

// OnTick registers l for tick pass-through.
func (e *MatchingEngine) OnTick(l TickListener) { e.tickListeners = append(e.tickListeners, l) }

// OnCancel registers l for cancellation events.
func (e *MatchingEngine) OnCancel(l CancelListener) { e.cancelListeners = append(e.cancelListeners, l) }

func (e *MatchingEngine) notifyOrder(o Order) {
	for _, l := range e.orderListeners {
		l.GotOrder(o)
	}
}

func (e *MatchingEngine) notifyFill(t Trade) {
	for _, l := range e.fillListeners {
		l.GotFill(t)
	}
}

func (e *MatchingEngine) notifyTick(t Tick) {
	for _, l := range e.tickListeners {
		l.GotTick(t)
	}
}

func (e *MatchingEngine) notifyCancel(id uint64) {
	for _, l := range e.cancelListeners {
		l.GotCancel(id)
	}
}
