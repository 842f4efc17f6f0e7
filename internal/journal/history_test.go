package journal

import (
	"testing"

	"github.com/avelik/polymarket-data/internal/model"
)

func point(ts int64, up float64) model.PricePoint {
	return model.PricePoint{TimestampMs: ts, PriceUp: up, PriceDown: 1 - up}
}

func TestHistory_AddAndLen(t *testing.T) {
	h := NewHistory(3)
	if h.Len() != 0 {
		t.Fatalf("empty len = %d", h.Len())
	}

	h.Add(point(1, 0.5))
	h.Add(point(2, 0.51))
	if h.Len() != 2 {
		t.Fatalf("len = %d, want 2", h.Len())
	}

	h.Add(point(3, 0.52))
	h.Add(point(4, 0.53))
	if h.Len() != 3 {
		t.Fatalf("len after wrap = %d, want 3", h.Len())
	}
}

func TestHistory_PointsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Add(point(i, 0.5))
	}

	pts := h.Points()
	if len(pts) != 3 {
		t.Fatalf("points = %d, want 3", len(pts))
	}
	for i, want := range []int64{3, 4, 5} {
		if pts[i].TimestampMs != want {
			t.Errorf("point %d ts = %d, want %d", i, pts[i].TimestampMs, want)
		}
	}
}

func TestHistory_Nearest(t *testing.T) {
	h := NewHistory(10)
	h.Add(point(1000, 0.50))
	h.Add(point(2000, 0.51))
	h.Add(point(3000, 0.52))

	tests := []struct {
		ts   int64
		want int64
	}{
		{900, 1000},
		{1400, 1000},
		{1600, 2000},
		{2600, 3000},
		{9999, 3000},
	}
	for _, tt := range tests {
		p, ok := h.Nearest(tt.ts)
		if !ok {
			t.Fatalf("Nearest(%d) found nothing", tt.ts)
		}
		if p.TimestampMs != tt.want {
			t.Errorf("Nearest(%d) = %d, want %d", tt.ts, p.TimestampMs, tt.want)
		}
	}
}

func TestHistory_NearestEmpty(t *testing.T) {
	h := NewHistory(5)
	if _, ok := h.Nearest(1000); ok {
		t.Error("Nearest on empty ring reported a point")
	}
}

func TestHistory_NearestAfterWrap(t *testing.T) {
	h := NewHistory(3)
	for i := int64(1); i <= 5; i++ {
		h.Add(point(i*1000, 0.5))
	}

	// Points 1000 and 2000 were overwritten.
	p, ok := h.Nearest(1000)
	if !ok || p.TimestampMs != 3000 {
		t.Errorf("Nearest(1000) = %v %v, want ts 3000", p.TimestampMs, ok)
	}
}

func TestHistory_MinimumCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Add(point(1, 0.5))
	h.Add(point(2, 0.6))
	if h.Len() != 1 {
		t.Fatalf("len = %d, want 1", h.Len())
	}
	p, _ := h.Nearest(0)
	if p.TimestampMs != 2 {
		t.Errorf("kept ts = %d, want 2 (newest)", p.TimestampMs)
	}
}
