package stream

import (
	"testing"
	"time"

	"github.com/avelik/polymarket-data/internal/feed"
)

func rawMsg(data string) feed.RawMessage {
	return feed.RawMessage{Data: []byte(data), ReceivedAt: time.Now()}
}

func drainQuote(t *testing.T, p *Processor) Quote {
	t.Helper()
	select {
	case q := <-p.Quotes():
		return q
	default:
		t.Fatal("expected a quote, channel empty")
		return Quote{}
	}
}

func assertNoQuote(t *testing.T, p *Processor) {
	t.Helper()
	select {
	case q := <-p.Quotes():
		t.Fatalf("unexpected quote: %+v", q)
	default:
	}
}

func TestParseFrame_ObjectAndArray(t *testing.T) {
	single := ParseFrame([]byte(`{"event_type":"book","asset_id":"tok"}`))
	if len(single) != 1 || single[0].EventType != "book" {
		t.Fatalf("single = %+v", single)
	}

	multi := ParseFrame([]byte(`[{"event_type":"book","asset_id":"a"},{"event_type":"price_change","asset_id":"b"}]`))
	if len(multi) != 2 || multi[1].AssetID != "b" {
		t.Fatalf("multi = %+v", multi)
	}

	if got := ParseFrame([]byte(`not json`)); got != nil {
		t.Errorf("garbage frame = %+v, want nil", got)
	}
	if got := ParseFrame(nil); got != nil {
		t.Errorf("empty frame = %+v, want nil", got)
	}
}

func TestBestOfBook(t *testing.T) {
	ev := Event{
		Buys: []OrderLevel{
			{Price: "0.40", Size: "10"},
			{Price: "0.45", Size: "5"},
			{Price: "0.30", Size: "100"},
		},
		Sells: []OrderLevel{
			{Price: "0.55", Size: "10"},
			{Price: "0.50", Size: "2"},
		},
	}
	bid, ask := bestOfBook(&ev)
	if bid != 0.45 {
		t.Errorf("bid = %v, want 0.45", bid)
	}
	if ask != 0.50 {
		t.Errorf("ask = %v, want 0.50", ask)
	}
}

func TestBestOfBook_BidsAsksAliases(t *testing.T) {
	ev := Event{
		Bids: []OrderLevel{{Price: "0.42", Size: "1"}},
		Asks: []OrderLevel{{Price: "0.48", Size: "1"}},
	}
	bid, ask := bestOfBook(&ev)
	if bid != 0.42 || ask != 0.48 {
		t.Errorf("bid/ask = %v/%v, want 0.42/0.48", bid, ask)
	}
}

func TestProcessor_BookProducesMid(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	p.Process(rawMsg(`{"event_type":"book","asset_id":"tok","buys":[{"price":"0.40","size":"1"}],"sells":[{"price":"0.50","size":"1"}]}`))

	q := drainQuote(t, p)
	if q.Mid != 0.45 {
		t.Errorf("mid = %v, want 0.45", q.Mid)
	}
	if q.Bid != 0.40 || q.Ask != 0.50 {
		t.Errorf("bid/ask = %v/%v", q.Bid, q.Ask)
	}
	if q.TimestampMs == 0 {
		t.Error("quote timestamp unset")
	}
}

func TestProcessor_DedupAt6Decimals(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	frame := `{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.40","best_ask":"0.50"}`
	p.Process(rawMsg(frame))
	drainQuote(t, p)

	// Identical mid: suppressed.
	p.Process(rawMsg(frame))
	assertNoQuote(t, p)

	// Change below 6-decimal resolution: suppressed.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.4000000004","best_ask":"0.50"}`))
	assertNoQuote(t, p)

	// Change at 6-decimal resolution: forwarded.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.400002","best_ask":"0.50"}`))
	q := drainQuote(t, p)
	if q.Mid != 0.450001 {
		t.Errorf("mid = %v, want 0.450001", q.Mid)
	}
}

func TestProcessor_LastTradeFallback(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	// No book yet: last trade is the mid.
	p.Process(rawMsg(`{"event_type":"last_trade_price","asset_id":"tok","price":"0.62"}`))
	q := drainQuote(t, p)
	if q.Mid != 0.62 {
		t.Errorf("mid = %v, want 0.62", q.Mid)
	}

	// Both book sides arrive: they take precedence over the trade.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.40","best_ask":"0.50"}`))
	q = drainQuote(t, p)
	if q.Mid != 0.45 {
		t.Errorf("mid = %v, want 0.45", q.Mid)
	}

	// A later trade no longer moves the mid while both sides are known.
	p.Process(rawMsg(`{"event_type":"last_trade_price","asset_id":"tok","price":"0.99"}`))
	assertNoQuote(t, p)
}

func TestProcessor_OneSidedBookNoMid(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.40"}`))
	assertNoQuote(t, p)
}

func TestProcessor_UntrackedTokenIgnored(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"other","best_bid":"0.40","best_ask":"0.50"}`))
	assertNoQuote(t, p)

	if st := p.Stats(); st.States != 0 {
		t.Errorf("states = %d, want 0", st.States)
	}
}

func TestProcessor_BatchedPriceChanges(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"a", "b"})

	p.Process(rawMsg(`{"event_type":"price_change","price_changes":[` +
		`{"asset_id":"a","best_bid":"0.40","best_ask":"0.50"},` +
		`{"asset_id":"b","best_bid":"0.20","best_ask":"0.30"}]}`))

	first := drainQuote(t, p)
	second := drainQuote(t, p)
	if first.TokenID != "a" || first.Mid != 0.45 {
		t.Errorf("first quote = %+v", first)
	}
	if second.TokenID != "b" || second.Mid != 0.25 {
		t.Errorf("second quote = %+v", second)
	}
}

func TestProcessor_SetTrackedPrunesStates(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"a", "b"})

	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"a","best_bid":"0.40","best_ask":"0.50"}`))
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"b","best_bid":"0.20","best_ask":"0.30"}`))
	drainQuote(t, p)
	drainQuote(t, p)

	// b rolls out of the tracked set; a's state survives.
	p.SetTracked([]string{"a"})

	if st := p.Stats(); st.States != 1 {
		t.Errorf("states = %d, want 1", st.States)
	}

	// a still dedupes against its preserved state.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"a","best_bid":"0.40","best_ask":"0.50"}`))
	assertNoQuote(t, p)
}

func TestProcessor_UnknownEventTypeIgnored(t *testing.T) {
	p := NewProcessor(10, nil)
	p.SetTracked([]string{"tok"})

	p.Process(rawMsg(`{"event_type":"tick_size_change","asset_id":"tok","old_tick_size":"0.01","new_tick_size":"0.001"}`))
	assertNoQuote(t, p)
}

func TestProcessor_DroppedQuoteReemitted(t *testing.T) {
	p := NewProcessor(1, nil)
	p.SetTracked([]string{"tok"})

	// First quote fills the one-slot buffer.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.50","best_ask":"0.52"}`))

	// Buffer full: this mid is dropped, not remembered as emitted.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.52","best_ask":"0.54"}`))

	if q := drainQuote(t, p); q.Mid != 0.51 {
		t.Fatalf("mid = %v, want 0.51", q.Mid)
	}

	// The same mid arrives again with buffer space: forwarded.
	p.Process(rawMsg(`{"event_type":"best_bid_ask","asset_id":"tok","best_bid":"0.52","best_ask":"0.54"}`))
	if q := drainQuote(t, p); q.Mid != 0.53 {
		t.Fatalf("mid = %v, want 0.53", q.Mid)
	}
}
