// Package stream turns raw market-channel frames into per-token quotes.
// It keeps one state per tracked token (best bid, best ask, last trade),
// derives a mid price from whichever of those is available, and forwards a
// quote only when the mid changes at 6-decimal precision. Frames for tokens
// outside the tracked set are dropped without logging.
package stream
