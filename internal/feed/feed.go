// Package feed delivers (pair, price) ticks to the bot engine. Sources are
// interchangeable: a random-walk simulator for development and load testing,
// and an HTTP spot-price poller for live market data. Feed failures skip the
// tick; they never stop the engine.
package feed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Tick is one observed price for a pair.
type Tick struct {
	Pair  string
	Price decimal.Decimal
	At    time.Time
}

// Source produces ticks until the context is cancelled.
type Source interface {
	// Run sends ticks to out. It returns when ctx is done. Run never
	// closes out; the caller owns the channel.
	Run(ctx context.Context, out chan<- Tick) error
}
