package rotation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avelik/polymarket-data/internal/model"
)

// SlotState is the lifecycle state of one market type's tracking slot.
type SlotState string

const (
	// StateNoMarket means no usable window is known for the type.
	StateNoMarket SlotState = "no-market"
	// StateDiscovered means a live window is being tracked.
	StateDiscovered SlotState = "discovered"
	// StateRotating means the tracked window is ending and a successor is
	// being brought in.
	StateRotating SlotState = "rotating"
)

// Discovery is the slice of the discovery service the scheduler drives.
type Discovery interface {
	Refresh(ctx context.Context) []model.MarketType
	Current() map[model.MarketType]model.MarketWindow
	TrackedTokenIDs() []string
}

// Feed receives the reconciled token subscription.
type Feed interface {
	SetAssets(tokenIDs []string) error
}

// TrackedSink receives the reconciled tracked set (the stream processor).
type TrackedSink interface {
	SetTracked(tokenIDs []string)
}

// Config holds scheduler settings.
type Config struct {
	PollInterval    time.Duration // how often windows are re-evaluated
	SwitchBuffer    time.Duration // rotate when remaining time drops below this
	MaxRefreshEvery time.Duration // forced refresh period
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:    10 * time.Second,
		SwitchBuffer:    60 * time.Second,
		MaxRefreshEvery: 5 * time.Minute,
	}
}

// Stats is a snapshot of scheduler state for the health endpoint.
type Stats struct {
	Slots       map[model.MarketType]SlotState
	Rotations   int64
	LastRefresh time.Time
}

// Scheduler drives discovery refreshes and keeps feed and stream aligned
// with the tracked token union.
type Scheduler struct {
	cfg    Config
	disc   Discovery
	feed   Feed
	sink   TrackedSink
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	slots       map[model.MarketType]SlotState
	lastAssets  []string
	lastRefresh time.Time
	rotations   int64
}

// New creates a rotation scheduler.
func New(cfg Config, disc Discovery, feed Feed, sink TrackedSink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	slots := make(map[model.MarketType]SlotState, len(model.AllMarketTypes()))
	for _, mt := range model.AllMarketTypes() {
		slots[mt] = StateNoMarket
	}

	return &Scheduler{
		cfg:    cfg,
		disc:   disc,
		feed:   feed,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		slots:  slots,
	}
}

// Start performs the initial discovery and begins the poll loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.refresh(s.ctx, "startup")

	s.wg.Add(1)
	go s.pollLoop()

	s.logger.Info("rotation scheduler started",
		"poll_interval", s.cfg.PollInterval,
		"switch_buffer", s.cfg.SwitchBuffer,
	)
	return nil
}

// Stop halts the poll loop, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("poll loop did not stop in time")
	}

	s.logger.Info("rotation scheduler stopped")
	return nil
}

// Stats returns a snapshot of slot states and counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := make(map[model.MarketType]SlotState, len(s.slots))
	for mt, st := range s.slots {
		slots[mt] = st
	}
	return Stats{
		Slots:       slots,
		Rotations:   s.rotations,
		LastRefresh: s.lastRefresh,
	}
}

func (s *Scheduler) pollLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Evaluate(s.ctx)
		}
	}
}

// Evaluate checks every slot and refreshes when any trigger fires. Exported
// so a forced evaluation can be requested between poll ticks.
func (s *Scheduler) Evaluate(ctx context.Context) {
	nowMs := s.now().UnixMilli()
	current := s.disc.Current()

	var reason string

	for _, mt := range model.AllMarketTypes() {
		w, ok := current[mt]
		if !ok {
			s.setSlot(mt, StateNoMarket)
			if reason == "" {
				reason = "no window for " + string(mt)
			}
			continue
		}

		switch {
		case w.Ended(nowMs):
			s.setSlot(mt, StateRotating)
			if reason == "" {
				reason = "window ended for " + string(mt)
			}

		case w.RemainingMs(nowMs) < s.cfg.SwitchBuffer.Milliseconds():
			s.setSlot(mt, StateRotating)
			if reason == "" {
				reason = "window ending for " + string(mt)
			}

		case w.RemainingMs(nowMs) > mt.Cadence().Duration().Milliseconds()+s.cfg.SwitchBuffer.Milliseconds():
			// Remaining time exceeds a whole window: the tracked window does
			// not belong to the current slot.
			s.setSlot(mt, StateRotating)
			if reason == "" {
				reason = "implausible window for " + string(mt)
			}

		default:
			s.setSlot(mt, StateDiscovered)
		}
	}

	if reason == "" {
		s.mu.Lock()
		due := s.now().Sub(s.lastRefresh) >= s.cfg.MaxRefreshEvery
		s.mu.Unlock()
		if due {
			reason = "max refresh interval elapsed"
		}
	}

	if reason != "" {
		s.refresh(ctx, reason)
	}
}

// refresh runs discovery and reconciles downstream consumers.
func (s *Scheduler) refresh(ctx context.Context, reason string) {
	s.logger.Info("discovery refresh", "reason", reason)

	missing := s.disc.Refresh(ctx)

	s.mu.Lock()
	s.lastRefresh = s.now()
	s.rotations++
	s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	current := s.disc.Current()
	for _, mt := range model.AllMarketTypes() {
		if w, ok := current[mt]; ok && !w.Ended(nowMs) {
			s.setSlot(mt, StateDiscovered)
		} else {
			s.setSlot(mt, StateNoMarket)
		}
	}
	if len(missing) > 0 {
		s.logger.Warn("types without a current window", "missing", missing)
	}

	s.reconcile()
}

// reconcile pushes the current token union to the feed and stream when it
// changed since the last push.
func (s *Scheduler) reconcile() {
	ids := s.disc.TrackedTokenIDs()
	sort.Strings(ids)

	s.mu.Lock()
	added, removed := diffSets(s.lastAssets, ids)
	if len(added) == 0 && len(removed) == 0 {
		s.mu.Unlock()
		s.logger.Debug("token set unchanged", "count", len(ids))
		return
	}
	s.lastAssets = ids
	s.mu.Unlock()

	s.logger.Info("token set reconciled",
		"added", len(added),
		"removed", len(removed),
		"total", len(ids),
	)

	if s.sink != nil {
		s.sink.SetTracked(ids)
	}
	if s.feed != nil {
		if err := s.feed.SetAssets(ids); err != nil {
			s.logger.Warn("feed subscription update failed", "error", err)
		}
	}
}

func (s *Scheduler) setSlot(mt model.MarketType, state SlotState) {
	s.mu.Lock()
	prev := s.slots[mt]
	s.slots[mt] = state
	s.mu.Unlock()

	if prev != state {
		s.logger.Debug("slot state change", "type", mt, "from", prev, "to", state)
	}
}

// diffSets returns elements only in b (added) and only in a (removed).
// Both inputs are sorted.
func diffSets(a, b []string) (added, removed []string) {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case a[i] < b[j]:
			removed = append(removed, a[i])
			i++
		default:
			added = append(added, b[j])
			j++
		}
	}
	removed = append(removed, a[i:]...)
	added = append(added, b[j:]...)
	return added, removed
}
