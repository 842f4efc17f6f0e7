package stream

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Event type constants on the market channel.
const (
	EventBook           = "book"
	EventPriceChange    = "price_change"
	EventLastTradePrice = "last_trade_price"
	EventBestBidAsk     = "best_bid_ask"
)

// OrderLevel is one price level of a book snapshot. Prices and sizes arrive
// as decimal strings.
type OrderLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// PriceChangeEntry is one entry of a batched price_change event.
type PriceChangeEntry struct {
	AssetID string `json:"asset_id"`
	Price   string `json:"price"`
	Side    string `json:"side"`
	BestBid string `json:"best_bid"`
	BestAsk string `json:"best_ask"`
}

// Event is the union of market-channel event shapes. Fields not present for
// a given event_type are zero.
type Event struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Timestamp string `json:"timestamp"`

	// book snapshots; both naming conventions appear in the wild.
	Buys  []OrderLevel `json:"buys"`
	Sells []OrderLevel `json:"sells"`
	Bids  []OrderLevel `json:"bids"`
	Asks  []OrderLevel `json:"asks"`

	// price_change / best_bid_ask
	BestBid      string             `json:"best_bid"`
	BestAsk      string             `json:"best_ask"`
	PriceChanges []PriceChangeEntry `json:"price_changes"`

	// last_trade_price
	Price string `json:"price"`
	Side  string `json:"side"`
}

// ParseFrame decodes one WebSocket frame into events. The channel sends
// either a single object or an array of objects; anything unparseable
// yields an empty slice.
func ParseFrame(data []byte) []Event {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var events []Event
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil
		}
		return events
	}

	var ev Event
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil
	}
	return []Event{ev}
}

// parsePrice parses a decimal price string. Empty, malformed, and
// non-positive values report false.
func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	p, err := strconv.ParseFloat(s, 64)
	if err != nil || p <= 0 {
		return 0, false
	}
	return p, true
}

// bestOfBook extracts the best bid (highest buy) and best ask (lowest sell)
// from a book snapshot.
func bestOfBook(ev *Event) (bid, ask float64) {
	buys := ev.Buys
	if len(buys) == 0 {
		buys = ev.Bids
	}
	sells := ev.Sells
	if len(sells) == 0 {
		sells = ev.Asks
	}

	for _, lvl := range buys {
		if p, ok := parsePrice(lvl.Price); ok && p > bid {
			bid = p
		}
	}
	for _, lvl := range sells {
		if p, ok := parsePrice(lvl.Price); ok && (ask == 0 || p < ask) {
			ask = p
		}
	}
	return bid, ask
}
