// Package market handles trading-pair symbol parsing and validation.
package market

import (
	"errors"
	"fmt"
	"regexp"
)

// Quote currencies accepted for simulated trading.
const (
	QuoteUSD  = "USD"
	QuoteUSDT = "USDT"
	QuoteUSDC = "USDC"
)

var validQuotes = map[string]bool{
	QuoteUSD:  true,
	QuoteUSDT: true,
	QuoteUSDC: true,
}

// pairRegex matches: {BASE}-{QUOTE}
// Example: BTC-USD
var pairRegex = regexp.MustCompile(`^([A-Z0-9]{2,10})-([A-Z]{3,5})$`)

var (
	ErrInvalidPair  = errors.New("market: invalid pair format")
	ErrInvalidQuote = errors.New("market: unsupported quote currency")
)

// Pair is a parsed trading pair.
type Pair struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// ParsePair parses and validates a pair symbol string.
// Format: {BASE}-{QUOTE}, e.g. BTC-USD.
func ParsePair(symbol string) (*Pair, error) {
	matches := pairRegex.FindStringSubmatch(symbol)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected BASE-QUOTE)", ErrInvalidPair, symbol)
	}

	base := matches[1]
	quote := matches[2]

	if !validQuotes[quote] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuote, quote)
	}
	if base == quote {
		return nil, fmt.Errorf("%w: base equals quote in %s", ErrInvalidPair, symbol)
	}

	return &Pair{Symbol: symbol, Base: base, Quote: quote}, nil
}
