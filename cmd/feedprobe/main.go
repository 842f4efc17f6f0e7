// feedprobe connects to the Polymarket CLOB market feed and prints
// incoming events to the console. Token ids come from --tokens, or are
// discovered from the Gamma catalog when the flag is empty.
//
// Usage: go run ./cmd/feedprobe --tokens <id>,<id> --verbose
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/avelik/polymarket-data/internal/config"
	"github.com/avelik/polymarket-data/internal/discovery"
	"github.com/avelik/polymarket-data/internal/feed"
	"github.com/avelik/polymarket-data/internal/gamma"
	"github.com/avelik/polymarket-data/internal/stream"
)

func main() {
	feedURL := flag.String("url", config.DefaultFeedURL, "market feed WebSocket URL")
	gammaURL := flag.String("gamma", config.DefaultGammaURL, "Gamma catalog base URL")
	tokens := flag.String("tokens", "", "comma-separated token ids (discovered when empty)")
	verbose := flag.Bool("verbose", false, "print raw frame JSON")
	duration := flag.Duration("duration", 0, "stop after this long (0 = run until interrupted)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	tokenIDs := splitTokens(*tokens)
	if len(tokenIDs) == 0 {
		logger.Info("no tokens given, discovering current windows", "gamma", *gammaURL)

		catalog := gamma.NewClient(*gammaURL, gamma.WithLogger(logger))
		disc := discovery.New(discovery.DefaultConfig(), catalog, logger)
		if missing := disc.Refresh(ctx); len(missing) > 0 {
			logger.Warn("some market types unresolved", "missing", missing)
		}
		for mt, win := range disc.Current() {
			logger.Info("tracking window", "type", mt, "slug", win.Slug, "remaining", time.Duration(win.RemainingMs(time.Now().UnixMilli()))*time.Millisecond)
		}
		tokenIDs = disc.TrackedTokenIDs()
	}
	if len(tokenIDs) == 0 {
		logger.Error("no token ids to subscribe")
		os.Exit(1)
	}

	mgrCfg := feed.DefaultManagerConfig()
	mgrCfg.URL = *feedURL
	mgr := feed.NewManager(mgrCfg, logger)

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}
	if err := mgr.SetAssets(tokenIDs); err != nil {
		logger.Error("failed to subscribe", "error", err)
	}
	logger.Info("subscribed", "tokens", len(tokenIDs), "url", *feedURL)

	count := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case msg, ok := <-mgr.Messages():
			if !ok {
				break loop
			}
			count++
			if *verbose {
				fmt.Printf("%s %s\n", msg.ReceivedAt.Format("15:04:05.000"), msg.Data)
				continue
			}
			for _, ev := range stream.ParseFrame(msg.Data) {
				printEvent(msg.ReceivedAt, &ev)
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mgr.Stop(shutdownCtx)

	stats := mgr.Stats()
	logger.Info("done", "frames", count, "messages", stats.Messages, "reconnects", stats.Reconnects)
}

func splitTokens(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func printEvent(at time.Time, ev *stream.Event) {
	ts := at.Format("15:04:05.000")
	switch ev.EventType {
	case stream.EventBook:
		fmt.Printf("%s book           asset=%s buys=%d sells=%d\n", ts, short(ev.AssetID), len(ev.Buys)+len(ev.Bids), len(ev.Sells)+len(ev.Asks))
	case stream.EventPriceChange:
		if len(ev.PriceChanges) > 0 {
			for _, pc := range ev.PriceChanges {
				fmt.Printf("%s price_change   asset=%s bid=%s ask=%s\n", ts, short(pc.AssetID), pc.BestBid, pc.BestAsk)
			}
			return
		}
		fmt.Printf("%s price_change   asset=%s bid=%s ask=%s\n", ts, short(ev.AssetID), ev.BestBid, ev.BestAsk)
	case stream.EventLastTradePrice:
		fmt.Printf("%s last_trade     asset=%s price=%s side=%s\n", ts, short(ev.AssetID), ev.Price, ev.Side)
	case stream.EventBestBidAsk:
		fmt.Printf("%s best_bid_ask   asset=%s bid=%s ask=%s\n", ts, short(ev.AssetID), ev.BestBid, ev.BestAsk)
	default:
		fmt.Printf("%s %-14s asset=%s\n", ts, ev.EventType, short(ev.AssetID))
	}
}

// short truncates long token ids for console output.
func short(id string) string {
	if len(id) > 12 {
		return id[:12] + "…"
	}
	return id
}
