package journal

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avelik/polymarket-data/internal/model"
)

// AssemblerConfig holds pairing and filtering settings.
type AssemblerConfig struct {
	PairWindow    time.Duration // max spacing between the two sides of a row
	StaleAfter    time.Duration // pending quotes older than this are dropped
	OrderingSlack time.Duration // tolerated lateness behind the newest row
	MaxDeviation  float64       // max |up + down - 1|
	DedupSize     int           // price-pair dedup set capacity
	HistorySize   int           // price history ring capacity
}

// DefaultAssemblerConfig returns sensible defaults.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		PairWindow:    2000 * time.Millisecond,
		StaleAfter:    5000 * time.Millisecond,
		OrderingSlack: 1000 * time.Millisecond,
		MaxDeviation:  0.05,
		DedupSize:     100,
		HistorySize:   600,
	}
}

// Observation is one resolved quote for a market type side.
type Observation struct {
	Type        model.MarketType
	Outcome     string // "Up" or "Down"
	Mid         float64
	Bid         float64
	Ask         float64
	TimestampMs int64
}

// Sink receives completed journal rows.
type Sink interface {
	WriteRow(row model.JournalRow) error
}

// pendingHalf is one buffered side of a pair.
type pendingHalf struct {
	ts    int64
	price float64
	bid   float64
	ask   float64
	set   bool
}

// typeState is the pairing state for one market type.
type typeState struct {
	up   pendingHalf
	down pendingHalf

	dedup      map[string]struct{}
	dedupOrder []string

	markKeys map[string]struct{}

	lastWrittenTs int64
	history       *History
}

// AssemblerStats is a snapshot of assembler counters.
type AssemblerStats struct {
	Paired        int64
	DroppedStale  int64
	DroppedSpaced int64
	Filtered      int64
	Deduped       int64
	OutOfOrder    int64
}

// Assembler pairs per-side observations into journal rows.
type Assembler struct {
	cfg    AssemblerConfig
	sink   Sink
	logger *slog.Logger

	mu     sync.Mutex
	states map[model.MarketType]*typeState
	stats  AssemblerStats
}

// NewAssembler creates an assembler writing completed rows to sink.
func NewAssembler(cfg AssemblerConfig, sink Sink, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		states: make(map[model.MarketType]*typeState),
	}
}

// Observe feeds one side of a market type. A completed pair may produce a
// row; every drop path is non-fatal.
func (a *Assembler) Observe(obs Observation) {
	if !obs.Type.Valid() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.state(obs.Type)
	a.dropStaleLocked(st, obs.Type, obs.TimestampMs)

	half := pendingHalf{
		ts:    obs.TimestampMs,
		price: model.Round6(obs.Mid),
		bid:   obs.Bid,
		ask:   obs.Ask,
		set:   true,
	}
	if obs.Outcome == model.OutcomeUp {
		st.up = half
	} else {
		st.down = half
	}

	if !st.up.set || !st.down.set {
		return
	}

	spacing := absDelta(st.up.ts, st.down.ts)
	if spacing > a.cfg.PairWindow.Milliseconds() {
		// Too far apart: the older side can never pair again, drop it.
		a.stats.DroppedSpaced++
		if st.up.ts < st.down.ts {
			st.up = pendingHalf{}
		} else {
			st.down = pendingHalf{}
		}
		return
	}

	a.emitPairLocked(st, obs.Type)
}

// MarkWatch journals a watch mark. Marks with a key already seen for the
// type are ignored, making retried submissions idempotent; an empty key
// falls back to (timestamp, notes).
func (a *Assembler) MarkWatch(mt model.MarketType, key, notes string, tsMs int64) error {
	return a.mark(mt, model.EntryWatchMark, key, notes, tsMs)
}

// MarkPaper journals a paper-trade mark, idempotent by key.
func (a *Assembler) MarkPaper(mt model.MarketType, key, notes string, tsMs int64) error {
	return a.mark(mt, model.EntryPaperMark, key, notes, tsMs)
}

// HistoryFor returns the price history ring for mt.
func (a *Assembler) HistoryFor(mt model.MarketType) *History {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state(mt).history
}

// Stats returns current counters.
func (a *Assembler) Stats() AssemblerStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Assembler) state(mt model.MarketType) *typeState {
	st, ok := a.states[mt]
	if !ok {
		st = &typeState{
			dedup:    make(map[string]struct{}),
			markKeys: make(map[string]struct{}),
			history:  NewHistory(a.cfg.HistorySize),
		}
		a.states[mt] = st
	}
	return st
}

// dropStaleLocked clears pendings past the stale cutoff, regardless of what
// arrives next.
func (a *Assembler) dropStaleLocked(st *typeState, mt model.MarketType, nowMs int64) {
	cutoff := a.cfg.StaleAfter.Milliseconds()
	if st.up.set && nowMs-st.up.ts > cutoff {
		st.up = pendingHalf{}
		a.stats.DroppedStale++
		a.logger.Debug("stale pending dropped", "type", mt, "side", model.OutcomeUp)
	}
	if st.down.set && nowMs-st.down.ts > cutoff {
		st.down = pendingHalf{}
		a.stats.DroppedStale++
		a.logger.Debug("stale pending dropped", "type", mt, "side", model.OutcomeDown)
	}
}

// emitPairLocked runs the completed pair through the sanity filter, dedup
// set, and ordering guard, then writes the row.
func (a *Assembler) emitPairLocked(st *typeState, mt model.MarketType) {
	row := model.JournalRow{
		TimestampMs: maxInt64(st.up.ts, st.down.ts),
		Type:        mt,
		PriceUp:     st.up.price,
		PriceDown:   st.down.price,
		UpBid:       st.up.bid,
		UpAsk:       st.up.ask,
		DownBid:     st.down.bid,
		DownAsk:     st.down.ask,
		Kind:        model.EntryPrice,
	}
	st.up = pendingHalf{}
	st.down = pendingHalf{}

	if dev := row.Deviation(); dev > a.cfg.MaxDeviation {
		a.stats.Filtered++
		a.logger.Debug("price pair outside sanity band",
			"type", mt,
			"up", row.PriceUp,
			"down", row.PriceDown,
			"deviation", dev,
		)
		return
	}

	key := fmt.Sprintf("%d|%.6f|%.6f", row.TimestampMs, row.PriceUp, row.PriceDown)
	if _, seen := st.dedup[key]; seen {
		a.stats.Deduped++
		return
	}

	if row.TimestampMs < st.lastWrittenTs-a.cfg.OrderingSlack.Milliseconds() {
		a.stats.OutOfOrder++
		a.logger.Debug("row too far behind newest, dropped",
			"type", mt,
			"row_ts", row.TimestampMs,
			"newest_ts", st.lastWrittenTs,
		)
		return
	}

	// Rejected rows must not consume a dedup key.
	a.rememberLocked(st, key)
	a.writeLocked(st, row)
	st.history.Add(model.PricePoint{
		TimestampMs: row.TimestampMs,
		PriceUp:     row.PriceUp,
		PriceDown:   row.PriceDown,
	})
	a.stats.Paired++
}

// rememberLocked inserts a dedup key, halving the set when it is full.
func (a *Assembler) rememberLocked(st *typeState, key string) {
	if len(st.dedupOrder) >= a.cfg.DedupSize {
		half := len(st.dedupOrder) / 2
		for _, old := range st.dedupOrder[:half] {
			delete(st.dedup, old)
		}
		st.dedupOrder = append(st.dedupOrder[:0], st.dedupOrder[half:]...)
	}
	st.dedup[key] = struct{}{}
	st.dedupOrder = append(st.dedupOrder, key)
}

func (a *Assembler) mark(mt model.MarketType, kind model.EntryKind, key, notes string, tsMs int64) error {
	if !mt.Valid() {
		return fmt.Errorf("invalid market type %q", mt)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Without a caller-supplied key, fall back to (timestamp, notes) so a
	// retried identical mark is still written once.
	st := a.state(mt)
	if key == "" {
		key = fmt.Sprintf("%d|%s", tsMs, notes)
	}
	if _, seen := st.markKeys[key]; seen {
		return nil
	}
	st.markKeys[key] = struct{}{}

	// Marks reuse the latest known prices so they line up with price rows.
	row := model.JournalRow{
		TimestampMs: tsMs,
		Type:        mt,
		Kind:        kind,
		Notes:       notes,
	}
	if p, ok := st.history.Nearest(tsMs); ok {
		row.PriceUp = p.PriceUp
		row.PriceDown = p.PriceDown
	}

	// Marks bypass the ordering guard.
	a.writeLocked(st, row)
	return nil
}

func (a *Assembler) writeLocked(st *typeState, row model.JournalRow) {
	if err := a.sink.WriteRow(row); err != nil {
		a.logger.Error("journal write failed", "type", row.Type, "error", err)
		return
	}
	if row.TimestampMs > st.lastWrittenTs {
		st.lastWrittenTs = row.TimestampMs
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
