// Package tiebreak resolves ambiguous pairing candidates through a chat
// model judge. It is invoked only when the decision engine's thresholds do
// not produce a clear winner.
package tiebreak
