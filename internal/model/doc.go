// Package model defines shared data types for the Polymarket Up/Down tracker.
//
// Conventions:
//   - Prices: float64 probabilities in [0, 1], compared at 6-decimal rounding
//   - Timestamps: int64 milliseconds since Unix epoch
//   - IDs: strings for CLOB token ids and condition ids
package model
