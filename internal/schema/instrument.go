// Package schema defines the canonical market, order and stop-order types
// shared across the engine.
package schema

import (
	"fmt"
	"strings"
)

// Exchange names a recognized trading venue.
type Exchange string

const (
	ExchangeCFFEX   Exchange = "CFFEX"
	ExchangeSHFE    Exchange = "SHFE"
	ExchangeDCE     Exchange = "DCE"
	ExchangeCZCE    Exchange = "CZCE"
	ExchangeINE     Exchange = "INE"
	ExchangeSSE     Exchange = "SSE"
	ExchangeSZSE    Exchange = "SZSE"
	ExchangeBinance Exchange = "BINANCE"
	ExchangeOKX     Exchange = "OKX"
	ExchangeSim     Exchange = "SIM"
)

var knownExchanges = map[Exchange]struct{}{
	ExchangeCFFEX:   {},
	ExchangeSHFE:    {},
	ExchangeDCE:     {},
	ExchangeCZCE:    {},
	ExchangeINE:     {},
	ExchangeSSE:     {},
	ExchangeSZSE:    {},
	ExchangeBinance: {},
	ExchangeOKX:     {},
	ExchangeSim:     {},
}

// Valid reports whether the exchange is part of the recognized venue set.
func (e Exchange) Valid() bool {
	_, ok := knownExchanges[e]
	return ok
}

// ParseSymbol splits a market-qualified symbol ("rb2510.SHFE") into its code
// and exchange suffix. The suffix must name a recognized venue.
func ParseSymbol(symbol string) (string, Exchange, error) {
	trimmed := strings.TrimSpace(symbol)
	idx := strings.LastIndex(trimmed, ".")
	if idx <= 0 || idx == len(trimmed)-1 {
		return "", "", fmt.Errorf("symbol %q missing exchange suffix", symbol)
	}
	code := trimmed[:idx]
	exchange := Exchange(trimmed[idx+1:])
	if !exchange.Valid() {
		return "", "", fmt.Errorf("symbol %q has unrecognized exchange suffix %q", symbol, string(exchange))
	}
	return code, exchange, nil
}

// QualifySymbol joins a venue-local code and exchange into a qualified symbol.
func QualifySymbol(code string, exchange Exchange) string {
	return code + "." + string(exchange)
}
