package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Poller fetches a spot price over HTTP at a fixed cadence. The response is
// expected in Coinbase spot shape: {"data": {"amount": "50000.12"}}.
// Prices outside the sanity bounds are discarded.
type Poller struct {
	pair     string
	url      string
	interval time.Duration
	client   *http.Client

	minPrice decimal.Decimal
	maxPrice decimal.Decimal
	last     decimal.Decimal
}

// NewPoller creates an HTTP spot-price source for one pair.
func NewPoller(pair, url string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{
		pair:     pair,
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		minPrice: decimal.NewFromFloat(0.000001),
		maxPrice: decimal.NewFromInt(10_000_000),
	}
}

type spotResponse struct {
	Data struct {
		Amount string `json:"amount"`
	} `json:"data"`
}

// Run implements Source.
func (p *Poller) Run(ctx context.Context, out chan<- Tick) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			price, err := p.fetch(ctx)
			if err != nil {
				if !p.last.IsPositive() {
					slog.Warn("price fetch failed, skipping tick", "pair", p.pair, "err", err)
					continue
				}
				// Re-emit the last good price so displays stay live
				// through a transient outage.
				slog.Warn("price fetch failed, serving last good price",
					"pair", p.pair, "price", p.last, "err", err)
				price = p.last
			}
			p.last = price
			select {
			case out <- Tick{Pair: p.pair, Price: price, At: time.Now().UTC()}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (p *Poller) fetch(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("spot endpoint returned %d", resp.StatusCode)
	}

	var body spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode spot response: %w", err)
	}

	price, err := decimal.NewFromString(body.Data.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", body.Data.Amount, err)
	}
	if price.LessThan(p.minPrice) || price.GreaterThan(p.maxPrice) {
		return decimal.Zero, fmt.Errorf("price %s failed sanity check", price)
	}
	return price, nil
}
