package journal

import (
	"sync"

	"github.com/avelik/polymarket-data/internal/model"
)

// History is a fixed-capacity ring of price points for one market type.
// When full, the oldest point is overwritten.
type History struct {
	mu     sync.RWMutex
	points []model.PricePoint
	head   int // next write position
	full   bool
}

// NewHistory creates a ring holding up to capacity points.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{points: make([]model.PricePoint, capacity)}
}

// Add appends a point, overwriting the oldest when full.
func (h *History) Add(p model.PricePoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points[h.head] = p
	h.head++
	if h.head == len(h.points) {
		h.head = 0
		h.full = true
	}
}

// Len returns the number of stored points.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.full {
		return len(h.points)
	}
	return h.head
}

// Points returns the stored points oldest-first.
func (h *History) Points() []model.PricePoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]model.PricePoint, h.head)
		copy(out, h.points[:h.head])
		return out
	}

	out := make([]model.PricePoint, 0, len(h.points))
	out = append(out, h.points[h.head:]...)
	out = append(out, h.points[:h.head]...)
	return out
}

// Nearest returns the point whose timestamp is closest to tsMs, or false
// when the ring is empty.
func (h *History) Nearest(tsMs int64) (model.PricePoint, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.head
	if h.full {
		n = len(h.points)
	}
	if n == 0 {
		return model.PricePoint{}, false
	}

	best := h.points[0]
	bestDist := absDelta(best.TimestampMs, tsMs)
	for i := 1; i < n; i++ {
		if d := absDelta(h.points[i].TimestampMs, tsMs); d < bestDist {
			best = h.points[i]
			bestDist = d
		}
	}
	return best, true
}

func absDelta(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
