package gamma

import (
	"testing"

	"github.com/avelik/polymarket-data/internal/model"
)

func validMarket() APIMarket {
	return APIMarket{
		ID:             "512345",
		ConditionID:    "0xdeadbeef",
		Slug:           "bitcoin-up-or-down-august-30-3pm-et",
		Question:       "Bitcoin Up or Down - August 30, 3PM ET",
		EventStartTime: "2026-08-30T19:00:00Z",
		EndDate:        "2026-08-30T20:00:00Z",
		ClobTokenIDs:   StringArray{"111", "222"},
		Outcomes:       StringArray{"Up", "Down"},
	}
}

func TestAPIMarket_ToWindow(t *testing.T) {
	m := validMarket()

	w, ok := m.ToWindow(model.BTC1Hour)
	if !ok {
		t.Fatal("expected valid window")
	}

	if w.ConditionID != "0xdeadbeef" {
		t.Errorf("ConditionID = %q", w.ConditionID)
	}
	if w.Type != model.BTC1Hour {
		t.Errorf("Type = %q", w.Type)
	}

	up, _ := w.UpToken()
	if up.TokenID != "111" {
		t.Errorf("up token = %q, want 111", up.TokenID)
	}
	down, _ := w.DownToken()
	if down.TokenID != "222" {
		t.Errorf("down token = %q, want 222", down.TokenID)
	}

	if w.EndMs-w.StartMs != 3600_000 {
		t.Errorf("window length = %dms, want 3600000", w.EndMs-w.StartMs)
	}
}

func TestAPIMarket_ToWindow_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*APIMarket)
	}{
		{"missing condition id", func(m *APIMarket) { m.ConditionID = "" }},
		{"closed", func(m *APIMarket) { m.Closed = true }},
		{"bad start time", func(m *APIMarket) {
			m.EventStartTime = "not-a-time"
			m.StartTime = ""
		}},
		{"bad end date", func(m *APIMarket) { m.EndDate = "soon" }},
		{"end before start", func(m *APIMarket) { m.EndDate = "2026-08-30T18:00:00Z" }},
		{"single token id", func(m *APIMarket) { m.ClobTokenIDs = StringArray{"111"} }},
		{"yes/no outcomes", func(m *APIMarket) { m.Outcomes = StringArray{"Yes", "No"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validMarket()
			tt.mutate(&m)
			if _, ok := m.ToWindow(model.BTC1Hour); ok {
				t.Error("expected rejection")
			}
		})
	}
}

func TestAPIMarket_ToWindow_StartTimeFallback(t *testing.T) {
	m := validMarket()
	m.EventStartTime = ""
	m.StartTime = "2026-08-30T19:00:00Z"

	if _, ok := m.ToWindow(model.BTC1Hour); !ok {
		t.Error("expected startTime fallback to be used")
	}
}

func TestAPIMarket_ToWindow_CaseInsensitiveOutcomes(t *testing.T) {
	m := validMarket()
	m.Outcomes = StringArray{"UP", "down"}

	w, ok := m.ToWindow(model.ETH15Min)
	if !ok {
		t.Fatal("expected valid window")
	}
	if _, ok := w.UpToken(); !ok {
		t.Error("UP should normalize to Up")
	}
}
