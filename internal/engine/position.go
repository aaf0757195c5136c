package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

type positionKey struct {
	account string
	symbol  string
}

// PositionTracker keeps the net position of every (account, symbol) pair that has
// seen a fill or a pushed snapshot.
type PositionTracker struct {
	defaultAccount string
	positions      map[positionKey]Position
}

func NewPositionTracker(defaultAccount string) *PositionTracker {
	return &PositionTracker{
		defaultAccount: defaultAccount,
		positions:      make(map[positionKey]Position),
	}
}

func (pt *PositionTracker) key(symbol, account string) positionKey {
	if account == "" {
		account = pt.defaultAccount
	}
	return positionKey{account: account, symbol: symbol}
}

// Adjust applies a fill and returns the resulting position.
func (pt *PositionTracker) Adjust(t Trade) Position {
	k := pt.key(t.Symbol, t.Account)
	p, ok := pt.positions[k]
	if !ok {
		p = Position{Symbol: k.symbol, Account: k.account}
	}
	delta := t.SignedSize()
	next := p.Size + delta
	switch {
	case p.Size == 0 || sameSign(p.Size, delta):
		// opening or adding
		total := decimal.NewFromInt(abs(next))
		if total.IsZero() {
			p.AvgPrice = decimal.Zero
			break
		}
		held := p.AvgPrice.Mul(decimal.NewFromInt(abs(p.Size)))
		added := t.Price.Mul(decimal.NewFromInt(t.Size))
		p.AvgPrice = held.Add(added).Div(total)
	default:
		// reducing, closing or flipping
		closed := min(abs(p.Size), t.Size)
		perShare := t.Price.Sub(p.AvgPrice)
		if p.Size < 0 {
			perShare = perShare.Neg()
		}
		p.ClosedPL = p.ClosedPL.Add(perShare.Mul(decimal.NewFromInt(closed)))
		switch {
		case next == 0:
			p.AvgPrice = decimal.Zero
		case !sameSign(p.Size, next):
			p.AvgPrice = t.Price
		}
	}
	p.Size = next
	pt.positions[k] = p
	return p
}

// AdjustPosition replaces the stored row with an externally sourced snapshot.
func (pt *PositionTracker) AdjustPosition(p Position) Position {
	k := pt.key(p.Symbol, p.Account)
	p.Account = k.account
	pt.positions[k] = p
	return p
}

// Get returns the default account's position in symbol.
func (pt *PositionTracker) Get(symbol string) Position {
	return pt.GetForAccount(symbol, "")
}

// GetForAccount returns the stored position or a flat one when nothing was recorded.
func (pt *PositionTracker) GetForAccount(symbol, account string) Position {
	k := pt.key(symbol, account)
	if p, ok := pt.positions[k]; ok {
		return p
	}
	return Position{Symbol: k.symbol, Account: k.account}
}

// Positions lists every known row ordered by account then symbol.
func (pt *PositionTracker) Positions() []Position {
	out := make([]Position, 0, len(pt.positions))
	for _, p := range pt.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func sameSign(a, b int64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
