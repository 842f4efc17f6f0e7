// Package database builds the connection pool for the optional Postgres
// mirror of journal rows.
package database
