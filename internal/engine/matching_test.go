package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const sym = "TST"

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// eventCounter records engine events the way a subscriber would see them
type eventCounter struct {
	orders  []Order
	fills   []Trade
	ticks   []Tick
	cancels []uint64
}

func newTestEngine() (*MatchingEngine, *eventCounter) {
	e := NewMatchingEngine(DefaultConfig())
	c := &eventCounter{}
	e.OnOrder(OrderFunc(func(o Order) { c.orders = append(c.orders, o) }))
	e.OnFill(FillFunc(func(t Trade) { c.fills = append(c.fills, t) }))
	e.OnTick(TickFunc(func(t Tick) { c.ticks = append(c.ticks, t) }))
	e.OnCancel(CancelFunc(func(id uint64) { c.cancels = append(c.cancels, id) }))
	return e, c
}

func TestBasics(t *testing.T) {
	engine, c := newTestEngine()

	if id := engine.SendOrder(Order{}); id != 0 {
		t.Errorf("Expected empty order to be rejected, got id %d", id)
	}
	if len(c.orders) != 0 || len(c.fills) != 0 {
		t.Errorf("Expected no events for rejected order, got %d orders %d fills", len(c.orders), len(c.fills))
	}

	if id := engine.SendOrder(BuyMarket(sym, 100)); id == 0 {
		t.Fatalf("Expected market order to be accepted")
	}
	if len(c.orders) != 1 || len(c.fills) != 0 {
		t.Errorf("Expected 1 order and 0 fills, got %d and %d", len(c.orders), len(c.fills))
	}
	if n := engine.Execute(NewTrade(sym, d(10), 200)); n != 1 {
		t.Errorf("Expected 1 fill, got %d", n)
	}
	if len(c.fills) != 1 {
		t.Errorf("Expected 1 fill event, got %d", len(c.fills))
	}
	pos := engine.GetOpenPosition(sym)
	if !pos.IsLong() || pos.Size != 100 {
		t.Errorf("Expected long 100, got %+v", pos)
	}

	// limit order is not filled outside the market
	engine.SendOrder(BuyLimit(sym, 100, d(9)))
	if n := engine.Execute(NewTrade(sym, d(10), 100)); n != 0 {
		t.Errorf("Expected buy limit at 9 not to fill at 10, got %d fills", n)
	}
	if len(c.fills) != 1 {
		t.Errorf("Expected fill count to stay 1, got %d", len(c.fills))
	}

	// limit order is filled inside the market
	if n := engine.Execute(NewTrade(sym, d(8), 100)); n != 1 {
		t.Errorf("Expected buy limit at 9 to fill at 8, got %d fills", n)
	}
	if len(c.fills) != 2 {
		t.Errorf("Expected 2 fill events, got %d", len(c.fills))
	}
	if !c.fills[1].Price.Equal(d(8)) {
		t.Errorf("Expected fill at tick price 8, got %s", c.fills[1].Price)
	}
}

func TestMarketOrderWithoutOppositeBook(t *testing.T) {
	engine, c := newTestEngine()
	const other = "trader2"

	engine.SendOrder(SellLimit(sym, 100, d(11)))
	engine.CancelOrders()
	if len(engine.Orders(sym)) != 0 {
		t.Fatalf("Expected empty book after CancelOrders")
	}

	o := SellMarket(sym, 100)
	o.Account = other
	engine.SendOrder(o)
	if len(c.fills) != 0 {
		t.Errorf("Expected no fill at submission, got %d", len(c.fills))
	}

	// market orders fill against any trade print, opposite interest or not
	if n := engine.Execute(NewTrade(sym, d(10), 50)); n != 1 {
		t.Errorf("Expected market order to fill against the print, got %d", n)
	}
	if p := engine.GetOpenPositionForAccount(sym, other); p.Size != -100 {
		t.Errorf("Expected short 100 for %s, got %d", other, p.Size)
	}
}

func TestRejections(t *testing.T) {
	engine, c := newTestEngine()

	rejects := []Order{
		{Symbol: "", Side: Buy, Size: 100, Type: Market},
		BuyMarket(sym, 0),
		SellMarket(sym, -5),
		BuyLimit(sym, 100, decimal.Zero),
		SellLimit(sym, 100, d(-1)),
		SellStop(sym, 100, decimal.Zero),
	}
	for i, o := range rejects {
		if id := engine.SendOrder(o); id != 0 {
			t.Errorf("Order %d: expected rejection, got id %d", i, id)
		}
	}
	if len(c.orders) != 0 {
		t.Errorf("Expected no accepted orders, got %d", len(c.orders))
	}
	if len(engine.Orders(sym)) != 0 {
		t.Errorf("Expected empty book after rejections")
	}
	if n := engine.Execute(NewTrade(sym, d(10), 100)); n != 0 {
		t.Errorf("Expected no fills after rejections, got %d", n)
	}
}

func TestIDsAreUniqueAcrossSymbols(t *testing.T) {
	engine, _ := newTestEngine()

	a := engine.SendOrder(BuyMarket("AAA", 1))
	b := engine.SendOrder(BuyMarket("BBB", 1))
	engine.CancelOrder(a)
	c := engine.SendOrder(BuyMarket("AAA", 1))

	if a == 0 || b == 0 || c == 0 {
		t.Fatalf("Expected all orders accepted, got %d %d %d", a, b, c)
	}
	if !(a < b && b < c) {
		t.Errorf("Expected increasing ids, got %d %d %d", a, b, c)
	}
}

func TestStartID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartID = 500
	engine := NewMatchingEngine(cfg)
	if id := engine.SendOrder(BuyMarket(sym, 1)); id != 500 {
		t.Errorf("Expected first id 500, got %d", id)
	}
}

func TestAccountResolution(t *testing.T) {
	engine, c := newTestEngine()

	engine.SendOrder(BuyMarket(sym, 1))
	o := BuyMarket(sym, 1)
	o.Account = "own"
	engine.SendOrder(o)
	engine.SendOrderForAccount(o, "explicit")

	want := []string{"DEFAULT", "own", "explicit"}
	for i, acct := range want {
		if c.orders[i].Account != acct {
			t.Errorf("Order %d: expected account %s, got %s", i, acct, c.orders[i].Account)
		}
	}
}

func TestDataProvider(t *testing.T) {
	engine, c := newTestEngine()
	tick := NewTrade(sym, d(10), 700)

	if len(c.ticks) != 0 {
		t.Fatalf("Expected no ticks before Execute")
	}
	engine.Execute(tick)
	if len(c.ticks) != 1 {
		t.Fatalf("Expected tick pass-through, got %d ticks", len(c.ticks))
	}
	if !c.ticks[0].Price.Equal(tick.Price) || c.ticks[0].Size != tick.Size {
		t.Errorf("Expected received tick to match sent tick, got %+v", c.ticks[0])
	}

	// quotes without a trade still pass through but never fill
	engine.SendOrder(BuyMarket(sym, 1))
	if n := engine.Execute(Tick{Symbol: sym}); n != 0 {
		t.Errorf("Expected no fills from a non-trade tick, got %d", n)
	}
	if len(c.ticks) != 2 {
		t.Errorf("Expected non-trade tick to pass through, got %d ticks", len(c.ticks))
	}
}

func TestBBO(t *testing.T) {
	engine, _ := newTestEngine()
	const x = 100
	p1, p2 := d(10), d(11)

	// only order on the book is the best bid
	engine.SendOrder(BuyLimit(sym, x, p1))
	bid, offer := engine.BestBid(sym), engine.BestOffer(sym)
	if !bid.IsValid() || !bid.Price.Equal(p1) || bid.Size != x {
		t.Errorf("Expected bid %d@%s, got %s", x, p1, bid)
	}
	if offer.IsValid() {
		t.Errorf("Expected invalid offer, got %s", offer)
	}

	// better bid
	id1 := engine.SendOrder(BuyLimit(sym, x, p2))
	bid = engine.BestBid(sym)
	if !bid.IsValid() || !bid.Price.Equal(p2) || bid.Size != x {
		t.Errorf("Expected bid %d@%s, got %s", x, p2, bid)
	}

	// same price on another account is additive
	id2 := engine.SendOrderForAccount(BuyLimit(sym, x, p2), "ANOTHER_ACCOUNT")
	bid = engine.BestBid(sym)
	if !bid.IsValid() || !bid.Price.Equal(p2) || bid.Size != 2*x {
		t.Errorf("Expected bid %d@%s, got %s", 2*x, p2, bid)
	}
	if engine.BestOffer(sym).IsValid() {
		t.Errorf("Expected invalid offer")
	}

	// cancel better bids and the previous level returns
	engine.CancelOrder(id1)
	engine.CancelOrder(id2)
	bid = engine.BestBid(sym)
	if !bid.IsValid() || !bid.Price.Equal(p1) || bid.Size != x {
		t.Errorf("Expected bid %d@%s after cancels, got %s", x, p1, bid)
	}
}

func TestBBOSellSide(t *testing.T) {
	engine, _ := newTestEngine()

	engine.SendOrder(SellLimit(sym, 100, d(12)))
	low := engine.SendOrder(SellLimit(sym, 50, d(11)))
	engine.SendOrderForAccount(SellLimit(sym, 25, d(11)), "other")

	offer := engine.BestOffer(sym)
	if !offer.IsValid() || !offer.Price.Equal(d(11)) || offer.Size != 75 {
		t.Errorf("Expected offer 75@11, got %s", offer)
	}
	if engine.BestBid(sym).IsValid() {
		t.Errorf("Expected invalid bid")
	}

	engine.CancelOrder(low)
	offer = engine.BestOffer(sym)
	if !offer.Price.Equal(d(11)) || offer.Size != 25 {
		t.Errorf("Expected offer 25@11, got %s", offer)
	}
}

func TestCancelUnknownOrder(t *testing.T) {
	engine, c := newTestEngine()

	engine.CancelOrder(12345)
	id := engine.SendOrder(BuyLimit(sym, 1, d(1)))
	engine.CancelOrder(id)
	engine.CancelOrder(id)

	if len(c.cancels) != 1 || c.cancels[0] != id {
		t.Errorf("Expected one cancel event for %d, got %v", id, c.cancels)
	}
}

func TestMultiAccount(t *testing.T) {
	engine, _ := newTestEngine()
	const me, other = "tester", "anotherguy"

	now := time.Now()
	oa := BuyMarket(sym, 100)
	ob := BuyMarket(sym, 100)
	oa.Account, oa.Time = me, now
	ob.Account, ob.Time = other, now

	if engine.SendOrder(oa) == 0 || engine.SendOrder(ob) == 0 {
		t.Fatalf("Expected both orders accepted")
	}
	tick := Tick{Symbol: sym, Price: d(100), Size: 200, Time: now}
	if n := engine.Execute(tick); n != 2 {
		t.Errorf("Expected 2 fills, got %d", n)
	}

	apos := engine.GetOpenPositionForAccount(sym, me)
	bpos := engine.GetOpenPositionForAccount(sym, other)
	cpos := engine.GetOpenPositionForAccount(sym, "sleeper")
	if !apos.IsLong() || apos.Size != 100 {
		t.Errorf("Expected %s long 100, got %+v", me, apos)
	}
	if !bpos.IsLong() || bpos.Size != 100 {
		t.Errorf("Expected %s long 100, got %+v", other, bpos)
	}
	if !cpos.IsFlat() {
		t.Errorf("Expected sleeper flat, got %+v", cpos)
	}
	// default account never sees other accounts' trades
	if !engine.GetOpenPosition(sym).IsFlat() {
		t.Errorf("Expected default account flat, got %+v", engine.GetOpenPosition(sym))
	}
}

func TestOPGs(t *testing.T) {
	engine, _ := newTestEngine()

	engine.SendOrder(BuyOPG(sym, 200, d(10)))

	// tick on another exchange
	it := NewTrade(sym, d(9), 100)
	it.Exchange = "ISLD"
	if n := engine.Execute(it); n != 0 {
		t.Errorf("Expected no fill on ISLD, got %d", n)
	}
	if engine.HasOpened("NYS") {
		t.Errorf("Expected ISLD tick not to open NYS")
	}

	// opening print on the primary exchange
	nt := NewTrade(sym, d(9), 10000)
	nt.Exchange = "NYS"
	if n := engine.Execute(nt); n != 1 {
		t.Errorf("Expected OPG to fill on opening print, got %d", n)
	}

	// a later OPG never fills
	engine.SendOrder(BuyOPG(sym, 200, d(10)))
	next := NewTrade(sym, d(9), 2000)
	next.Exchange = "NYS"
	if n := engine.Execute(next); n != 0 {
		t.Errorf("Expected late OPG not to fill, got %d", n)
	}
	if len(engine.Orders(sym)) != 1 {
		t.Errorf("Expected late OPG to keep resting")
	}
}

func TestOPGResetSession(t *testing.T) {
	engine, _ := newTestEngine()

	open := NewTrade(sym, d(9), 100)
	open.Exchange = "NYS"
	engine.Execute(open)

	engine.SendOrder(SellOPG(sym, 10, decimal.Zero))
	if n := engine.Execute(open); n != 0 {
		t.Fatalf("Expected no fill after open, got %d", n)
	}

	engine.ResetExchange("NYS")
	if n := engine.Execute(open); n != 1 {
		t.Errorf("Expected OPG to fill after exchange reset, got %d", n)
	}

	engine.SendOrder(SellOPG(sym, 10, decimal.Zero))
	engine.ResetSession()
	if n := engine.Execute(open); n != 1 {
		t.Errorf("Expected OPG to fill after session reset, got %d", n)
	}
}

func TestStopOrders(t *testing.T) {
	engine, _ := newTestEngine()

	engine.SendOrder(SellStop(sym, 100, d(9)))
	engine.SendOrder(BuyStop(sym, 50, d(12)))

	if n := engine.Execute(NewTrade(sym, d(10), 100)); n != 0 {
		t.Errorf("Expected no stops triggered at 10, got %d", n)
	}
	if n := engine.Execute(NewTrade(sym, d(9), 100)); n != 1 {
		t.Errorf("Expected sell stop triggered at 9, got %d", n)
	}
	if n := engine.Execute(NewTrade(sym, d(13), 100)); n != 1 {
		t.Errorf("Expected buy stop triggered at 13, got %d", n)
	}
	if p := engine.GetOpenPosition(sym); p.Size != -50 {
		t.Errorf("Expected net short 50, got %d", p.Size)
	}
}

func TestExecuteOnlyMatchesTickSymbol(t *testing.T) {
	engine, _ := newTestEngine()

	engine.SendOrder(BuyMarket("AAA", 10))
	engine.SendOrder(BuyMarket("BBB", 10))
	if n := engine.Execute(NewTrade("AAA", d(5), 1)); n != 1 {
		t.Errorf("Expected 1 fill, got %d", n)
	}
	if len(engine.Orders("BBB")) != 1 {
		t.Errorf("Expected BBB order to keep resting")
	}
}

func TestFillCarriesTickDetails(t *testing.T) {
	engine, c := newTestEngine()

	id := engine.SendOrderForAccount(SellLimit(sym, 30, d(10)), "acct")
	ts := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	engine.Execute(Tick{Symbol: sym, Price: d(11), Size: 1, Exchange: "ARCA", Time: ts})

	if len(c.fills) != 1 {
		t.Fatalf("Expected 1 fill, got %d", len(c.fills))
	}
	f := c.fills[0]
	if f.OrderID != id || f.Account != "acct" || f.Side != Sell || f.Size != 30 {
		t.Errorf("Unexpected fill %+v", f)
	}
	if !f.Price.Equal(d(11)) || !f.Time.Equal(ts) || f.Exchange != "ARCA" {
		t.Errorf("Expected fill at tick price and time, got %+v", f)
	}
}

func TestListenerMayReenter(t *testing.T) {
	engine := NewMatchingEngine(DefaultConfig())
	var replacement uint64
	engine.OnFill(FillFunc(func(tr Trade) {
		if replacement == 0 {
			replacement = engine.SendOrder(SellMarket(sym, tr.Size))
		}
	}))

	engine.SendOrder(BuyMarket(sym, 10))
	if n := engine.Execute(NewTrade(sym, d(10), 1)); n != 1 {
		t.Fatalf("Expected 1 fill, got %d", n)
	}
	if replacement == 0 {
		t.Fatalf("Expected listener to place an order")
	}
	// the order placed during the fill waits for the next tick
	if len(engine.Orders(sym)) != 1 {
		t.Errorf("Expected replacement order resting")
	}
	if n := engine.Execute(NewTrade(sym, d(11), 1)); n != 1 {
		t.Errorf("Expected replacement to fill on next tick, got %d", n)
	}
	if !engine.GetOpenPosition(sym).IsFlat() {
		t.Errorf("Expected flat after round trip")
	}
}

func TestListenersRunInRegistrationOrder(t *testing.T) {
	engine := NewMatchingEngine(DefaultConfig())
	var seen []int
	for i := 0; i < 3; i++ {
		i := i
		engine.OnTick(TickFunc(func(Tick) { seen = append(seen, i) }))
	}
	engine.Execute(NewTrade(sym, d(1), 1))
	if len(seen) != 3 || seen[0] != 0 || seen[1] != 1 || seen[2] != 2 {
		t.Errorf("Expected listeners in order 0,1,2, got %v", seen)
	}
}
