package discovery

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/avelik/polymarket-data/internal/gamma"
	"github.com/avelik/polymarket-data/internal/model"
)

// fakeCatalog serves canned events and records the queries it saw.
type fakeCatalog struct {
	mu      sync.Mutex
	events  []gamma.APIEvent
	err     error
	queries []gamma.EventQuery
}

func (f *fakeCatalog) QueryEvents(_ context.Context, q gamma.EventQuery) ([]gamma.APIEvent, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	var out []gamma.APIEvent
	for _, ev := range f.events {
		switch {
		case q.Slug != "":
			if ev.Slug == q.Slug {
				out = append(out, ev)
			}
		case q.SlugPrefix != "":
			if strings.HasPrefix(ev.Slug, q.SlugPrefix) {
				out = append(out, ev)
			}
		default:
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeCatalog) slugQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slugs []string
	for _, q := range f.queries {
		if q.Slug != "" {
			slugs = append(slugs, q.Slug)
		}
	}
	return slugs
}

func rfc3339(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// upDownEvent builds a single-market event with Up/Down outcomes.
func upDownEvent(slug, cond string, startMs, endMs int64) gamma.APIEvent {
	return gamma.APIEvent{
		ID:     "ev-" + cond,
		Slug:   slug,
		Closed: false,
		Active: true,
		Markets: []gamma.APIMarket{{
			ID:             "m-" + cond,
			ConditionID:    cond,
			Slug:           slug,
			Question:       "Up or Down?",
			EventStartTime: rfc3339(startMs),
			EndDate:        rfc3339(endMs),
			ClobTokenIDs:   gamma.StringArray{cond + "-up", cond + "-down"},
			Outcomes:       gamma.StringArray{"Up", "Down"},
			Active:         true,
		}},
	}
}

// gridEvent builds an event aligned to the market type's grid slot at startMs.
func gridEvent(mt model.MarketType, startMs int64, cond string) gamma.APIEvent {
	return upDownEvent(WindowSlug(mt, startMs), cond, startMs, startMs+mt.Cadence().Duration().Milliseconds())
}

func newTestService(t *testing.T, catalog Catalog, now time.Time) *Service {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Retries = 0
	cfg.RetryDelay = time.Millisecond
	s := New(cfg, catalog, nil)
	s.now = func() time.Time { return now }
	return s
}

// testNow is 2:05pm ET on Aug 30 2026 (EDT, UTC-4).
var testNow = time.Date(2026, time.August, 30, 18, 5, 0, 0, time.UTC)

func allTypeEvents(nowMs int64) []gamma.APIEvent {
	var events []gamma.APIEvent
	for _, mt := range model.AllMarketTypes() {
		start, _ := WindowBoundaries(nowMs, mt.Cadence())
		events = append(events, gridEvent(mt, start, string(mt)+"-cond"))
	}
	return events
}

func TestRefresh_ResolvesAllTypes(t *testing.T) {
	nowMs := testNow.UnixMilli()
	catalog := &fakeCatalog{events: allTypeEvents(nowMs)}
	s := newTestService(t, catalog, testNow)

	missing := s.Refresh(context.Background())
	if missing != nil {
		t.Fatalf("expected full resolution, missing %v", missing)
	}

	for _, mt := range model.AllMarketTypes() {
		w, ok := s.CurrentFor(mt)
		if !ok {
			t.Fatalf("no current window for %s", mt)
		}
		if !w.Active(nowMs) {
			t.Errorf("%s window [%d,%d) not active at %d", mt, w.StartMs, w.EndMs, nowMs)
		}
		if w.Type != mt {
			t.Errorf("window classified as %s, want %s", w.Type, mt)
		}
	}

	ids := s.TrackedTokenIDs()
	if len(ids) != 8 {
		t.Errorf("tracked token count = %d, want 8", len(ids))
	}
}

func TestRefresh_NextWindowResolved(t *testing.T) {
	nowMs := testNow.UnixMilli()
	start, end := WindowBoundaries(nowMs, model.Cadence15Min)

	catalog := &fakeCatalog{events: []gamma.APIEvent{
		gridEvent(model.BTC15Min, start, "btc-now"),
		gridEvent(model.BTC15Min, end, "btc-next"),
	}}
	s := newTestService(t, catalog, testNow)
	s.Refresh(context.Background())

	cur, ok := s.CurrentFor(model.BTC15Min)
	if !ok || cur.ConditionID != "btc-now" {
		t.Fatalf("current = %+v, want btc-now", cur)
	}
	next := s.Next()[model.BTC15Min]
	if next.ConditionID != "btc-next" {
		t.Fatalf("next = %q, want btc-next", next.ConditionID)
	}
	if _, ok := s.TokenRef("btc-next-up"); !ok {
		t.Error("next window tokens not indexed")
	}
}

func TestRefresh_FallsBackToFutureWindow(t *testing.T) {
	nowMs := testNow.UnixMilli()
	_, gridEnd := WindowBoundaries(nowMs, model.Cadence15Min)

	catalog := &fakeCatalog{events: []gamma.APIEvent{
		gridEvent(model.BTC15Min, gridEnd, "btc-future"),
	}}
	s := newTestService(t, catalog, testNow)
	s.Refresh(context.Background())

	w, ok := s.CurrentFor(model.BTC15Min)
	if !ok {
		t.Fatal("future window not adopted as current")
	}
	if w.ConditionID != "btc-future" || w.StartMs <= nowMs {
		t.Fatalf("current = %+v, want future btc-future window", w)
	}
}

func TestRefresh_ReportsMissingTypes(t *testing.T) {
	nowMs := testNow.UnixMilli()
	events := allTypeEvents(nowMs)
	// Drop the eth-1h event.
	var trimmed []gamma.APIEvent
	for _, ev := range events {
		if ev.Markets[0].ConditionID == string(model.ETH1Hour)+"-cond" {
			continue
		}
		trimmed = append(trimmed, ev)
	}

	catalog := &fakeCatalog{events: trimmed}
	s := newTestService(t, catalog, testNow)

	missing := s.Refresh(context.Background())
	if len(missing) != 1 || missing[0] != model.ETH1Hour {
		t.Fatalf("missing = %v, want [%s]", missing, model.ETH1Hour)
	}
	// The resolved types are still usable.
	if _, ok := s.CurrentFor(model.BTC15Min); !ok {
		t.Error("partial resolution lost btc-15m window")
	}
}

func TestRefresh_SlugSlotMismatchExcluded(t *testing.T) {
	nowMs := testNow.UnixMilli()
	gridStart, _ := WindowBoundaries(nowMs, model.Cadence15Min)

	// Times say the window is live now, but the slug names the previous slot.
	staleSlug := WindowSlug(model.ETH15Min, gridStart-15*60*1000)
	catalog := &fakeCatalog{events: []gamma.APIEvent{
		upDownEvent(staleSlug, "eth-stale", gridStart, gridStart+15*60*1000),
	}}
	s := newTestService(t, catalog, testNow)

	missing := s.Refresh(context.Background())
	found := false
	for _, mt := range missing {
		if mt == model.ETH15Min {
			found = true
		}
	}
	if !found {
		t.Fatalf("mismatched slug accepted as current, missing = %v", missing)
	}
}

func TestRefresh_KeepsPreviousWindowWhenUnresolved(t *testing.T) {
	nowMs := testNow.UnixMilli()
	start, _ := WindowBoundaries(nowMs, model.Cadence1Hour)

	catalog := &fakeCatalog{events: []gamma.APIEvent{
		gridEvent(model.BTC1Hour, start, "btc-hour"),
	}}
	s := newTestService(t, catalog, testNow)
	s.Refresh(context.Background())

	if _, ok := s.CurrentFor(model.BTC1Hour); !ok {
		t.Fatal("setup: btc-1h not resolved")
	}

	// Catalog goes dark; the cached window survives the next pass.
	catalog.mu.Lock()
	catalog.events = nil
	catalog.mu.Unlock()
	s.Refresh(context.Background())

	w, ok := s.CurrentFor(model.BTC1Hour)
	if !ok || w.ConditionID != "btc-hour" {
		t.Fatalf("cached window lost after empty pass: %+v ok=%v", w, ok)
	}
}

func TestRefresh_GridSlugsFetchedOncePerSlot(t *testing.T) {
	nowMs := testNow.UnixMilli()
	catalog := &fakeCatalog{events: allTypeEvents(nowMs)}
	s := newTestService(t, catalog, testNow)

	s.Refresh(context.Background())
	first := len(catalog.slugQueries())
	if first != 4 {
		t.Fatalf("first pass slug queries = %d, want 4", first)
	}

	s.Refresh(context.Background())
	if got := len(catalog.slugQueries()); got != first {
		t.Errorf("same-slot refresh re-fetched slugs: %d queries, want %d", got, first)
	}

	// Crossing the quarter boundary clears the fetched set.
	s.now = func() time.Time { return testNow.Add(15 * time.Minute) }
	s.Refresh(context.Background())
	if got := len(catalog.slugQueries()); got <= first {
		t.Errorf("new slot did not trigger slug fetches: %d queries", got)
	}
}

func TestRefresh_QueryFailureIsNonFatal(t *testing.T) {
	catalog := &fakeCatalog{err: context.DeadlineExceeded}
	s := newTestService(t, catalog, testNow)

	missing := s.Refresh(context.Background())
	if len(missing) != len(model.AllMarketTypes()) {
		t.Fatalf("missing = %v, want all types", missing)
	}
}
