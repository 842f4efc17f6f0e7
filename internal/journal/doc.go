// Package journal assembles Up/Down quote pairs into rows and persists them
// as per-market-type CSV files under a run-scoped directory.
//
// Pairing holds at most one pending quote per side. Two sides within the
// pair window form a row; further apart, the older side is dropped. A sanity
// filter rejects rows whose prices stray too far from summing to 1, a
// bounded dedup set suppresses rows repeating a (timestamp, prices) key,
// and an ordering guard drops rows that arrive too far behind the newest
// written row. Watch and paper marks bypass the guard and are idempotent
// by a caller key, or by (timestamp, notes) when none is given.
package journal
