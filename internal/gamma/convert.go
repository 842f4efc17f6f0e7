package gamma

import (
	"strings"
	"time"

	"github.com/avelik/polymarket-data/internal/model"
)

// ToWindow converts an API market to a MarketWindow candidate for the given
// market type. Returns false when the market is unusable: missing condition
// id, unparseable times, fewer than two token ids, or outcomes that are not
// an Up/Down pair.
func (m *APIMarket) ToWindow(mt model.MarketType) (model.MarketWindow, bool) {
	if m.ConditionID == "" || bool(m.Closed) {
		return model.MarketWindow{}, false
	}

	startMs, ok := parseTimeMs(m.EventStartTime, m.StartTime)
	if !ok {
		return model.MarketWindow{}, false
	}
	endMs, ok := parseTimeMs(m.EndDate)
	if !ok || endMs <= startMs {
		return model.MarketWindow{}, false
	}

	if len(m.ClobTokenIDs) < 2 || len(m.Outcomes) < 2 {
		return model.MarketWindow{}, false
	}

	tokens := make([]model.OutcomeToken, 0, 2)
	for i, outcome := range m.Outcomes {
		if i >= len(m.ClobTokenIDs) {
			break
		}
		label, ok := normalizeOutcome(outcome)
		if !ok {
			continue
		}
		tokens = append(tokens, model.OutcomeToken{
			TokenID: m.ClobTokenIDs[i],
			Outcome: label,
		})
	}

	w := model.MarketWindow{
		Type:        mt,
		ConditionID: m.ConditionID,
		Slug:        m.Slug,
		Question:    m.Question,
		StartMs:     startMs,
		EndMs:       endMs,
		Tokens:      tokens,
	}

	if _, ok := w.UpToken(); !ok {
		return model.MarketWindow{}, false
	}
	if _, ok := w.DownToken(); !ok {
		return model.MarketWindow{}, false
	}

	return w, true
}

// normalizeOutcome maps an outcome label to the canonical Up/Down form.
func normalizeOutcome(outcome string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(outcome)) {
	case "up":
		return model.OutcomeUp, true
	case "down":
		return model.OutcomeDown, true
	}
	return "", false
}

// parseTimeMs parses the first non-empty RFC3339 timestamp into epoch ms.
func parseTimeMs(candidates ...string) (int64, bool) {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			continue
		}
		return t.UnixMilli(), true
	}
	return 0, false
}
