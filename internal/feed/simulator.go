package feed

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Simulator emits a bounded random walk around a starting price. Useful for
// development and for exercising the full tick path without an exchange.
type Simulator struct {
	pair       string
	price      decimal.Decimal
	volatility decimal.Decimal // max fractional move per tick
	interval   time.Duration
	rng        *rand.Rand
}

// NewSimulator creates a random-walk source for one pair.
func NewSimulator(pair string, start decimal.Decimal, volatility float64, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	if volatility <= 0 {
		volatility = 0.001
	}
	return &Simulator{
		pair:       pair,
		price:      start,
		volatility: decimal.NewFromFloat(volatility),
		interval:   interval,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run implements Source.
func (s *Simulator) Run(ctx context.Context, out chan<- Tick) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.step()
			select {
			case out <- Tick{Pair: s.pair, Price: s.price, At: time.Now().UTC()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// step moves the price by a uniform fraction in [-volatility, +volatility].
func (s *Simulator) step() {
	move := decimal.NewFromFloat(s.rng.Float64()*2 - 1).Mul(s.volatility)
	next := s.price.Mul(decimal.NewFromInt(1).Add(move))
	if next.IsPositive() {
		s.price = next
	}
}
