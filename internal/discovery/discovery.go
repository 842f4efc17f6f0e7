package discovery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/avelik/polymarket-data/internal/gamma"
	"github.com/avelik/polymarket-data/internal/model"
)

// Catalog is the slice of the Gamma client used by discovery.
type Catalog interface {
	QueryEvents(ctx context.Context, q gamma.EventQuery) ([]gamma.APIEvent, error)
}

// Config holds discovery settings.
type Config struct {
	TagSlug     string        // tag-based catalog selection
	Retries     int           // extra full passes when types are missing
	RetryDelay  time.Duration // fixed delay between passes
	StartBuffer time.Duration // tolerance for windows starting momentarily
	QueryLimit  int           // page size for tag/prefix queries
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TagSlug:     "crypto",
		Retries:     3,
		RetryDelay:  2 * time.Second,
		StartBuffer: 5 * time.Second,
		QueryLimit:  100,
	}
}

// TokenRef locates a token id inside its owning window.
type TokenRef struct {
	Window  model.MarketWindow
	Outcome string // "Up" or "Down"
}

// Service resolves and caches current/next market windows. One instance
// owns all discovery state; consumers hold a reference to it.
type Service struct {
	cfg     Config
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	current  map[model.MarketType]model.MarketWindow
	next     map[model.MarketType]model.MarketWindow
	tokens   map[string]TokenRef
	gridMark int64               // 15-minute grid start the fetched set belongs to
	fetched  map[string]struct{} // exact slugs already fetched this grid window
}

// New creates a discovery service.
func New(cfg Config, catalog Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:     cfg,
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
		current: make(map[model.MarketType]model.MarketWindow),
		next:    make(map[model.MarketType]model.MarketWindow),
		tokens:  make(map[string]TokenRef),
		fetched: make(map[string]struct{}),
	}
}

// Refresh runs discovery passes until all market types resolve or the retry
// budget is exhausted. It returns the types still missing; partial coverage
// is not an error and missing types are retried on the next Refresh.
func (s *Service) Refresh(ctx context.Context) []model.MarketType {
	var missing []model.MarketType

	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return missing
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		s.refreshOnce(ctx)

		missing = s.missingTypes()
		if len(missing) == 0 {
			return nil
		}
	}

	s.logger.Warn("discovery incomplete after retries",
		"missing", missing,
		"retries", s.cfg.Retries,
	)
	return missing
}

// Current returns a copy of the current window per market type.
func (s *Service) Current() map[model.MarketType]model.MarketWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyWindows(s.current)
}

// Next returns a copy of the upcoming window per market type.
func (s *Service) Next() map[model.MarketType]model.MarketWindow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyWindows(s.next)
}

// CurrentFor returns the current window for one market type.
func (s *Service) CurrentFor(mt model.MarketType) (model.MarketWindow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.current[mt]
	return w, ok
}

// TokenRef resolves a token id to its owning window and outcome side.
func (s *Service) TokenRef(tokenID string) (TokenRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.tokens[tokenID]
	return ref, ok
}

// TrackedTokenIDs returns the sorted union of current and next token ids.
// This is the asset set the feed subscribes to.
func (s *Service) TrackedTokenIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.tokens))
	for id := range s.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// refreshOnce runs a single discovery pass and merges results.
func (s *Service) refreshOnce(ctx context.Context) {
	nowMs := s.now().UnixMilli()
	s.invalidateFetched(nowMs)

	candidates := s.fetchAllCandidates(ctx, nowMs)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, mt := range model.AllMarketTypes() {
		current, next := s.resolveCurrentAndNext(mt, candidates[mt], nowMs)

		if current == nil {
			// Keep the previous window rather than unsetting the type;
			// staleness is handled by the rotation scheduler.
			s.logger.Debug("no current window resolved", "type", mt)
		} else {
			if prev, ok := s.current[mt]; ok && prev.ConditionID != current.ConditionID {
				s.logger.Info("window rollover",
					"type", mt,
					"old_slug", prev.Slug,
					"new_slug", current.Slug,
				)
			}
			s.current[mt] = *current
		}

		if next != nil {
			s.next[mt] = *next
		} else {
			delete(s.next, mt)
		}
	}

	s.rebuildTokenIndexLocked()
}

// missingTypes returns types with no usable current window.
func (s *Service) missingTypes() []model.MarketType {
	nowMs := s.now().UnixMilli()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var missing []model.MarketType
	for _, mt := range model.AllMarketTypes() {
		w, ok := s.current[mt]
		if !ok || w.Ended(nowMs) {
			missing = append(missing, mt)
		}
	}
	return missing
}

// invalidateFetched clears the fetched-slug set when the 15-minute grid
// window changes. Hour boundaries coincide with quarter boundaries, so one
// mark covers both.
func (s *Service) invalidateFetched(nowMs int64) {
	gridStart, _ := WindowBoundaries(nowMs, model.Cadence15Min)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gridMark != gridStart {
		s.gridMark = gridStart
		s.fetched = make(map[string]struct{})
	}
}

func (s *Service) alreadyFetched(slug string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.fetched[slug]
	return ok
}

func (s *Service) markFetched(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[slug] = struct{}{}
}

// rebuildTokenIndexLocked recomputes the token lookup from the current and
// next maps. Token ids of superseded windows drop out here; ids shared with
// a still-tracked window survive.
func (s *Service) rebuildTokenIndexLocked() {
	tokens := make(map[string]TokenRef, len(s.tokens))

	index := func(w model.MarketWindow) {
		for _, tok := range w.Tokens {
			tokens[tok.TokenID] = TokenRef{Window: w, Outcome: tok.Outcome}
		}
	}

	for _, w := range s.next {
		index(w)
	}
	// Current windows win when a token id appears in both maps.
	for _, w := range s.current {
		index(w)
	}

	s.tokens = tokens
}

func copyWindows(in map[model.MarketType]model.MarketWindow) map[model.MarketType]model.MarketWindow {
	out := make(map[model.MarketType]model.MarketWindow, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
