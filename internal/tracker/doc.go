// Package tracker wires discovery, the WebSocket feed, the stream
// processor, the journal, and the rotation scheduler into one service.
// It owns the event path: raw feed frames flow through the processor
// into per-token quotes, which are resolved against the discovered
// windows and paired into journal rows.
package tracker
