// Package gamma provides the Polymarket Gamma REST catalog client.
//
// Endpoint: https://gamma-api.polymarket.com
//
// The tracker uses /events queries selected by tag slug, slug prefix, or
// exact slug. Market fields that arrive as JSON-encoded strings
// (clobTokenIds, outcomes) are parsed defensively; a market whose embedded
// fields fail to parse is skipped, never propagated half-populated.
package gamma
