package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/avelik/polymarket-data/internal/feed"
	"github.com/avelik/polymarket-data/internal/model"
)

// Quote is one deduplicated mid-price observation for a token.
type Quote struct {
	TokenID     string
	Mid         float64 // rounded to 6 decimals
	Bid         float64 // 0 when unknown
	Ask         float64 // 0 when unknown
	TimestampMs int64   // local receive time
}

// assetState is the accumulated quote state for one token.
type assetState struct {
	bid       float64
	ask       float64
	lastTrade float64
	lastMid   float64
	hasMid    bool
}

// Stats is a snapshot of processor counters.
type Stats struct {
	Tracked   int
	States    int
	Events    int64
	Forwarded int64
}

// Processor consumes raw frames and emits quotes. Process is called from a
// single goroutine; SetTracked and accessors may be called from others.
type Processor struct {
	logger *slog.Logger

	mu      sync.Mutex
	tracked map[string]struct{}
	states  map[string]*assetState

	out chan Quote

	events    int64 // atomic
	forwarded int64 // atomic
}

// NewProcessor creates a quote processor with the given output buffer size.
func NewProcessor(bufferSize int, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:  logger,
		tracked: make(map[string]struct{}),
		states:  make(map[string]*assetState),
		out:     make(chan Quote, bufferSize),
	}
}

// Quotes returns the output channel.
func (p *Processor) Quotes() <-chan Quote {
	return p.out
}

// Close closes the output channel. Call only after the last Process call.
func (p *Processor) Close() {
	close(p.out)
}

// SetTracked replaces the tracked token set. State for tokens leaving the
// set is discarded; state for tokens staying is preserved, so a rollover of
// one market type never resets another type's quotes.
func (p *Processor) SetTracked(tokenIDs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.tracked = make(map[string]struct{}, len(tokenIDs))
	for _, id := range tokenIDs {
		p.tracked[id] = struct{}{}
	}
	for id := range p.states {
		if _, ok := p.tracked[id]; !ok {
			delete(p.states, id)
		}
	}
}

// Process applies one raw frame, emitting quotes for tokens whose mid price
// changed.
func (p *Processor) Process(msg feed.RawMessage) {
	tsMs := msg.ReceivedAt.UnixMilli()

	for _, ev := range ParseFrame(msg.Data) {
		atomic.AddInt64(&p.events, 1)
		p.apply(&ev, tsMs)
	}
}

// apply updates asset state from one event.
func (p *Processor) apply(ev *Event, tsMs int64) {
	switch ev.EventType {
	case EventBook:
		bid, ask := bestOfBook(ev)
		p.update(ev.AssetID, tsMs, func(st *assetState) {
			st.bid = bid
			st.ask = ask
		})

	case EventPriceChange:
		if len(ev.PriceChanges) > 0 {
			for _, change := range ev.PriceChanges {
				p.applyBest(change.AssetID, change.BestBid, change.BestAsk, tsMs)
			}
			return
		}
		p.applyBest(ev.AssetID, ev.BestBid, ev.BestAsk, tsMs)

	case EventBestBidAsk:
		p.applyBest(ev.AssetID, ev.BestBid, ev.BestAsk, tsMs)

	case EventLastTradePrice:
		price, ok := parsePrice(ev.Price)
		if !ok {
			return
		}
		p.update(ev.AssetID, tsMs, func(st *assetState) {
			st.lastTrade = price
		})

	default:
		// Unknown event types are dropped silently.
	}
}

// applyBest updates best bid/ask where present.
func (p *Processor) applyBest(assetID, bestBid, bestAsk string, tsMs int64) {
	bid, hasBid := parsePrice(bestBid)
	ask, hasAsk := parsePrice(bestAsk)
	if !hasBid && !hasAsk {
		return
	}
	p.update(assetID, tsMs, func(st *assetState) {
		if hasBid {
			st.bid = bid
		}
		if hasAsk {
			st.ask = ask
		}
	})
}

// update mutates the asset state and forwards a quote when the derived mid
// changed at 6-decimal precision. Untracked tokens are a silent no-op.
func (p *Processor) update(assetID string, tsMs int64, mutate func(*assetState)) {
	if assetID == "" {
		return
	}

	p.mu.Lock()
	if _, ok := p.tracked[assetID]; !ok {
		p.mu.Unlock()
		return
	}

	st, ok := p.states[assetID]
	if !ok {
		st = &assetState{}
		p.states[assetID] = st
	}
	mutate(st)

	mid, ok := st.mid()
	if !ok || (st.hasMid && mid == st.lastMid) {
		p.mu.Unlock()
		return
	}
	quote := Quote{
		TokenID:     assetID,
		Mid:         mid,
		Bid:         st.bid,
		Ask:         st.ask,
		TimestampMs: tsMs,
	}

	// lastMid is committed only when the quote is delivered, so a mid
	// dropped on a full buffer is re-emitted on the next event.
	select {
	case p.out <- quote:
		st.lastMid = mid
		st.hasMid = true
		p.mu.Unlock()
		atomic.AddInt64(&p.forwarded, 1)
	default:
		p.mu.Unlock()
		p.logger.Warn("quote buffer full, dropping quote", "token", assetID)
	}
}

// mid derives the mid price: (bid+ask)/2 when both sides are present,
// otherwise the last trade, otherwise absent.
func (st *assetState) mid() (float64, bool) {
	if st.bid > 0 && st.ask > 0 {
		return model.Round6((st.bid + st.ask) / 2), true
	}
	if st.lastTrade > 0 {
		return model.Round6(st.lastTrade), true
	}
	return 0, false
}

// Stats returns current counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	tracked := len(p.tracked)
	states := len(p.states)
	p.mu.Unlock()

	return Stats{
		Tracked:   tracked,
		States:    states,
		Events:    atomic.LoadInt64(&p.events),
		Forwarded: atomic.LoadInt64(&p.forwarded),
	}
}
