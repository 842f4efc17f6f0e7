// Package store mirrors journal rows into Postgres. Rows are absorbed into
// an in-memory queue that grows under pressure, then batch-inserted with
// ON CONFLICT DO NOTHING so a retried batch never duplicates rows. The
// mirror is optional; when disabled the CSV journal is the only sink.
package store
