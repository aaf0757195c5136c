package tickfeed

import (
	"context"

	"sim-broker/internal/engine"
)

// Source yields ticks in order. Next returns io.EOF once the source is exhausted.
type Source interface {
	Next(ctx context.Context) (engine.Tick, error)
}

// Executor consumes ticks. *engine.MatchingEngine satisfies it.
type Executor interface {
	Execute(t engine.Tick) int
}
