package model

import (
	"math"
	"time"
)

// -----------------------------------------------------------------------------
// Market Types
// -----------------------------------------------------------------------------

// Cadence is the duration of one market window.
type Cadence string

const (
	Cadence15Min Cadence = "15m"
	Cadence1Hour Cadence = "1h"
)

// Duration returns the nominal window length.
func (c Cadence) Duration() time.Duration {
	if c == Cadence15Min {
		return 15 * time.Minute
	}
	return time.Hour
}

// MarketType identifies one tracked (asset, cadence) pair.
type MarketType string

const (
	BTC15Min MarketType = "btc-15m"
	ETH15Min MarketType = "eth-15m"
	BTC1Hour MarketType = "btc-1h"
	ETH1Hour MarketType = "eth-1h"
)

// AllMarketTypes returns the fixed set of tracked market types.
func AllMarketTypes() []MarketType {
	return []MarketType{BTC15Min, ETH15Min, BTC1Hour, ETH1Hour}
}

// Asset returns the underlying asset slug used in market catalog slugs
// (e.g. "bitcoin").
func (t MarketType) Asset() string {
	switch t {
	case BTC15Min, BTC1Hour:
		return "bitcoin"
	case ETH15Min, ETH1Hour:
		return "ethereum"
	}
	return ""
}

// Cadence returns the window cadence for this market type.
func (t MarketType) Cadence() Cadence {
	switch t {
	case BTC15Min, ETH15Min:
		return Cadence15Min
	}
	return Cadence1Hour
}

// Valid reports whether t is one of the tracked market types.
func (t MarketType) Valid() bool {
	switch t {
	case BTC15Min, ETH15Min, BTC1Hour, ETH1Hour:
		return true
	}
	return false
}

// -----------------------------------------------------------------------------
// Market Windows
// -----------------------------------------------------------------------------

// Outcome labels for the two sides of a window.
const (
	OutcomeUp   = "Up"
	OutcomeDown = "Down"
)

// OutcomeToken is one tradable side (Up or Down) of a market window.
type OutcomeToken struct {
	TokenID string // CLOB asset id
	Outcome string // "Up" or "Down"
}

// MarketWindow is a time-boxed instance of a binary Up/Down market.
// Windows are immutable: a rollover replaces the window, never mutates it.
type MarketWindow struct {
	Type        MarketType
	ConditionID string
	Slug        string
	Question    string
	StartMs     int64 // window open, ms since epoch
	EndMs       int64 // window close, ms since epoch
	Tokens      []OutcomeToken
}

// UpToken returns the Up-outcome token, or false if absent.
func (w *MarketWindow) UpToken() (OutcomeToken, bool) {
	return w.token(OutcomeUp)
}

// DownToken returns the Down-outcome token, or false if absent.
func (w *MarketWindow) DownToken() (OutcomeToken, bool) {
	return w.token(OutcomeDown)
}

func (w *MarketWindow) token(outcome string) (OutcomeToken, bool) {
	for _, tok := range w.Tokens {
		if tok.Outcome == outcome {
			return tok, true
		}
	}
	return OutcomeToken{}, false
}

// TokenIDs returns both token ids in declaration order.
func (w *MarketWindow) TokenIDs() []string {
	ids := make([]string, 0, len(w.Tokens))
	for _, tok := range w.Tokens {
		ids = append(ids, tok.TokenID)
	}
	return ids
}

// RemainingMs returns milliseconds until the window ends (negative if ended).
func (w *MarketWindow) RemainingMs(nowMs int64) int64 {
	return w.EndMs - nowMs
}

// Ended reports whether the window has closed.
func (w *MarketWindow) Ended(nowMs int64) bool {
	return w.EndMs <= nowMs
}

// Active reports whether nowMs falls inside the window.
func (w *MarketWindow) Active(nowMs int64) bool {
	return w.StartMs <= nowMs && nowMs < w.EndMs
}

// -----------------------------------------------------------------------------
// Journal Rows
// -----------------------------------------------------------------------------

// EntryKind distinguishes journal row origins.
type EntryKind string

const (
	EntryPrice     EntryKind = "price"
	EntryWatchMark EntryKind = "watch-mark"
	EntryPaperMark EntryKind = "paper-mark"
)

// JournalRow is one persisted observation for a market type.
// Immutable once written.
type JournalRow struct {
	TimestampMs int64
	Type        MarketType
	PriceUp     float64
	PriceDown   float64
	UpBid       float64
	UpAsk       float64
	DownBid     float64
	DownAsk     float64
	Kind        EntryKind
	Notes       string
}

// Deviation returns |priceUp + priceDown - 1|.
func (r *JournalRow) Deviation() float64 {
	return math.Abs(r.PriceUp + r.PriceDown - 1.0)
}

// PricePoint is one entry in the per-type price history ring.
type PricePoint struct {
	TimestampMs int64
	PriceUp     float64
	PriceDown   float64
}

// -----------------------------------------------------------------------------
// Prices
// -----------------------------------------------------------------------------

// Round6 rounds a price to 6 decimal places. Two prices that round equal
// are treated as unchanged throughout the pipeline.
func Round6(p float64) float64 {
	return math.Round(p*1e6) / 1e6
}
