package discovery

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avelik/polymarket-data/internal/model"
)

// Market catalog slugs encode window start times as Eastern wall-clock,
// e.g. "bitcoin-up-or-down-august-30-3pm-et" (hourly) and
// "bitcoin-up-or-down-august-30-315pm-et" (15-minute).
const referenceZone = "America/New_York"

var easternOnce = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation(referenceZone)
	if err != nil {
		// Zone database is bundled with the toolchain; treat absence as
		// a broken build rather than a runtime condition.
		panic(fmt.Sprintf("load %s: %v", referenceZone, err))
	}
	return loc
})

func eastern() *time.Location {
	return easternOnce()
}

// WindowBoundaries returns the grid window containing nowMs for the given
// cadence: the enclosing quarter-hour for 15-minute markets, the enclosing
// hour for hourly markets. Boundaries are computed on the Eastern wall
// clock; both cadences divide the hour, so boundaries stay aligned across
// daylight-saving transitions.
func WindowBoundaries(nowMs int64, c model.Cadence) (startMs, endMs int64) {
	now := time.UnixMilli(nowMs).In(eastern())

	minute := 0
	if c == model.Cadence15Min {
		minute = now.Minute() - now.Minute()%15
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), minute, 0, 0, eastern())

	return start.UnixMilli(), start.Add(c.Duration()).UnixMilli()
}

// SlugPrefix returns the catalog slug prefix for a market type,
// e.g. "bitcoin-up-or-down".
func SlugPrefix(mt model.MarketType) string {
	return mt.Asset() + "-up-or-down"
}

// WindowSlug builds the exact catalog slug for the window starting at
// startMs, e.g. "ethereum-up-or-down-august-30-315pm-et".
func WindowSlug(mt model.MarketType, startMs int64) string {
	t := time.UnixMilli(startMs).In(eastern())

	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	ampm := "am"
	if t.Hour() >= 12 {
		ampm = "pm"
	}

	var clock string
	if t.Minute() == 0 {
		clock = fmt.Sprintf("%d%s", hour, ampm)
	} else {
		clock = fmt.Sprintf("%d%02d%s", hour, t.Minute(), ampm)
	}

	return fmt.Sprintf("%s-%s-%d-%s-et",
		SlugPrefix(mt),
		strings.ToLower(t.Month().String()),
		t.Day(),
		clock,
	)
}

// ParseSlugTime extracts the window start time embedded in a catalog slug.
// Slugs carry no year, so the year is resolved to whichever candidate lands
// nearest refMs. Returns false when the slug does not belong to the market
// type or its time portion does not parse onto the 15-minute grid.
func ParseSlugTime(slug string, mt model.MarketType, refMs int64) (int64, bool) {
	prefix := SlugPrefix(mt) + "-"
	if !strings.HasPrefix(slug, prefix) {
		return 0, false
	}
	tail, ok := strings.CutSuffix(slug[len(prefix):], "-et")
	if !ok {
		return 0, false
	}

	parts := strings.Split(tail, "-")
	if len(parts) != 3 {
		return 0, false
	}

	month, ok := parseMonth(parts[0])
	if !ok {
		return 0, false
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	hour24, minute, ok := parseClock(parts[2])
	if !ok {
		return 0, false
	}
	if minute%15 != 0 {
		return 0, false
	}

	// Pick the year that lands nearest the reference instant.
	refYear := time.UnixMilli(refMs).In(eastern()).Year()
	var best int64
	found := false
	for _, year := range []int{refYear - 1, refYear, refYear + 1} {
		t := time.Date(year, month, day, hour24, minute, 0, 0, eastern())
		ms := t.UnixMilli()
		if !found || abs64(ms-refMs) < abs64(best-refMs) {
			best = ms
			found = true
		}
	}
	return best, found
}

// parseClock parses "3pm", "315pm", "1145am" into 24-hour components.
func parseClock(s string) (hour24, minute int, ok bool) {
	var ampm string
	var digits string
	switch {
	case strings.HasSuffix(s, "am"):
		ampm = "am"
		digits = s[:len(s)-2]
	case strings.HasSuffix(s, "pm"):
		ampm = "pm"
		digits = s[:len(s)-2]
	default:
		return 0, 0, false
	}

	var hour12 int
	var err error
	switch len(digits) {
	case 1, 2:
		hour12, err = strconv.Atoi(digits)
		if err != nil {
			return 0, 0, false
		}
	case 3, 4:
		hour12, err = strconv.Atoi(digits[:len(digits)-2])
		if err != nil {
			return 0, 0, false
		}
		minute, err = strconv.Atoi(digits[len(digits)-2:])
		if err != nil {
			return 0, 0, false
		}
	default:
		return 0, 0, false
	}

	if hour12 < 1 || hour12 > 12 || minute < 0 || minute > 59 {
		return 0, 0, false
	}

	hour24 = hour12 % 12
	if ampm == "pm" {
		hour24 += 12
	}
	return hour24, minute, true
}

func parseMonth(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.ToLower(m.String()) == name {
			return m, true
		}
	}
	return 0, false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
