// Package feed maintains the single multiplexed WebSocket connection to the
// CLOB market channel. One connection carries every tracked token; asset-set
// changes are applied by re-sending the subscription in place when the
// connection is healthy, and folded into the next connect otherwise.
// Connection loss triggers reconnection with exponential backoff, retried
// indefinitely.
package feed
