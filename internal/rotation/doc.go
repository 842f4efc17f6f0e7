// Package rotation keeps the tracked windows fresh. A poll loop watches the
// current window of every market type and triggers a discovery refresh when
// a window nears its end, has ended, looks implausibly long for its cadence,
// or when the periodic forced refresh comes due. After each refresh the feed
// subscription and the stream tracked set are reconciled to the new token
// union.
package rotation
