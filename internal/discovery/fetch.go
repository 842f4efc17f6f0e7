package discovery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/avelik/polymarket-data/internal/gamma"
	"github.com/avelik/polymarket-data/internal/model"
)

// fifteenMinuteCeiling separates 15-minute windows from hourly ones when
// classifying a candidate by its duration.
const fifteenMinuteCeiling = 20 * time.Minute

// fetchAllCandidates gathers candidate windows from the catalog using three
// query shapes: the crypto tag listing, per-asset slug-prefix listings, and
// exact-slug lookups for the 15-minute grid slots. Query failures are logged
// and skipped; the pass continues with whatever it got.
func (s *Service) fetchAllCandidates(ctx context.Context, nowMs int64) map[model.MarketType][]model.MarketWindow {
	open := false
	var events []gamma.APIEvent

	tagEvents, err := s.catalog.QueryEvents(ctx, gamma.EventQuery{
		TagSlug: s.cfg.TagSlug,
		Closed:  &open,
		Limit:   s.cfg.QueryLimit,
	})
	if err != nil {
		s.logger.Warn("tag query failed", "tag", s.cfg.TagSlug, "error", err)
	} else {
		events = append(events, tagEvents...)
	}

	for _, prefix := range []string{SlugPrefix(model.BTC15Min), SlugPrefix(model.ETH15Min)} {
		prefixEvents, err := s.catalog.QueryEvents(ctx, gamma.EventQuery{
			SlugPrefix: prefix,
			Closed:     &open,
			Limit:      s.cfg.QueryLimit,
		})
		if err != nil {
			s.logger.Warn("slug prefix query failed", "prefix", prefix, "error", err)
			continue
		}
		events = append(events, prefixEvents...)
	}

	events = append(events, s.fetchGridSlugs(ctx, nowMs)...)

	candidates := make(map[model.MarketType][]model.MarketWindow)
	seen := make(map[model.MarketType]map[string]struct{})

	for i := range events {
		for j := range events[i].Markets {
			w, ok := s.candidateFromMarket(&events[i].Markets[j])
			if !ok {
				continue
			}
			if seen[w.Type] == nil {
				seen[w.Type] = make(map[string]struct{})
			}
			if _, dup := seen[w.Type][w.ConditionID]; dup {
				continue
			}
			seen[w.Type][w.ConditionID] = struct{}{}
			candidates[w.Type] = append(candidates[w.Type], w)
		}
	}

	for mt := range candidates {
		ws := candidates[mt]
		sort.Slice(ws, func(a, b int) bool { return ws[a].EndMs < ws[b].EndMs })
	}
	return candidates
}

// fetchGridSlugs looks up the exact slugs of the current and following
// 15-minute slots. Each slug is fetched at most once per grid window.
func (s *Service) fetchGridSlugs(ctx context.Context, nowMs int64) []gamma.APIEvent {
	gridStart, gridEnd := WindowBoundaries(nowMs, model.Cadence15Min)

	var events []gamma.APIEvent
	for _, mt := range []model.MarketType{model.BTC15Min, model.ETH15Min} {
		for _, startMs := range []int64{gridStart, gridEnd} {
			slug := WindowSlug(mt, startMs)
			if s.alreadyFetched(slug) {
				continue
			}
			slugEvents, err := s.catalog.QueryEvents(ctx, gamma.EventQuery{Slug: slug})
			if err != nil {
				s.logger.Warn("slug query failed", "slug", slug, "error", err)
				continue
			}
			s.markFetched(slug)
			events = append(events, slugEvents...)
		}
	}
	return events
}

// candidateFromMarket converts an API market into a typed window. The asset
// comes from the slug prefix; cadence is decided by window duration since
// hourly and 15-minute slugs share a prefix.
func (s *Service) candidateFromMarket(m *gamma.APIMarket) (model.MarketWindow, bool) {
	var mt model.MarketType
	switch {
	case strings.HasPrefix(m.Slug, SlugPrefix(model.BTC1Hour)):
		mt = model.BTC1Hour
	case strings.HasPrefix(m.Slug, SlugPrefix(model.ETH1Hour)):
		mt = model.ETH1Hour
	default:
		return model.MarketWindow{}, false
	}

	w, ok := m.ToWindow(mt)
	if !ok {
		return model.MarketWindow{}, false
	}

	if w.EndMs-w.StartMs <= fifteenMinuteCeiling.Milliseconds() {
		switch mt {
		case model.BTC1Hour:
			w.Type = model.BTC15Min
		case model.ETH1Hour:
			w.Type = model.ETH15Min
		}
	}
	return w, true
}

// resolveCurrentAndNext picks the active and upcoming window for one type
// from sorted candidates. For 15-minute types a candidate whose slug decodes
// to a different grid slot than now is excluded from primary selection; when
// nothing active matches, the nearest future window stands in so tracking
// starts the moment it opens.
func (s *Service) resolveCurrentAndNext(mt model.MarketType, ws []model.MarketWindow, nowMs int64) (current, next *model.MarketWindow) {
	bufferMs := s.cfg.StartBuffer.Milliseconds()
	gridStart, _ := WindowBoundaries(nowMs, mt.Cadence())

	for i := range ws {
		w := &ws[i]
		if w.Ended(nowMs) {
			continue
		}
		if w.StartMs > nowMs+bufferMs {
			continue
		}
		if mt.Cadence() == model.Cadence15Min {
			if slotMs, ok := ParseSlugTime(w.Slug, mt, nowMs); ok && slotMs != gridStart {
				continue
			}
		}
		if current == nil || w.StartMs > current.StartMs {
			current = w
		}
	}

	if current == nil {
		for i := range ws {
			w := &ws[i]
			if w.Ended(nowMs) || w.StartMs <= nowMs+bufferMs {
				continue
			}
			if current == nil || w.StartMs < current.StartMs {
				current = w
			}
		}
		if current != nil {
			s.logger.Warn("future window used as current",
				"type", mt,
				"slug", current.Slug,
				"starts_in_ms", current.StartMs-nowMs,
			)
		}
	}

	for i := range ws {
		w := &ws[i]
		if w.StartMs <= nowMs {
			continue
		}
		if current != nil && w.ConditionID == current.ConditionID {
			continue
		}
		if next == nil || w.StartMs < next.StartMs {
			next = w
		}
	}
	return current, next
}
