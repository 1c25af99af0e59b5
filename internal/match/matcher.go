// Package match implements transaction-to-member matching. A local heuristic
// ladder is the default scorer; a remote scoring service can be substituted
// behind the same contract.
package match

import (
	"context"

	"github.com/mchanga/chamaflow/internal/model"
)

// Matcher scores transactions against the member set. Implementations must be
// deterministic: identical inputs always yield identical results, and batch
// output preserves input order with exactly one result per transaction.
type Matcher interface {
	MatchTransaction(ctx context.Context, txn model.Transaction, members []model.Member) (model.MatchResult, error)
	MatchBatch(ctx context.Context, txns []model.Transaction, members []model.Member) ([]model.MatchResult, error)
}

// Thresholds holds the confidence constants of the matching ladder. The
// values are empirically tuned; changing them changes auto-assignment
// behavior materially, so they are configuration rather than code.
type Thresholds struct {
	ExactPhone      float64
	CodeContainment float64
	FuzzyNameCap    float64
	FuzzyNameMin    float64
	PhoneSuffix     float64
	AutoAssign      float64
}

// DefaultThresholds returns the tuned production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ExactPhone:      0.98,
		CodeContainment: 0.90,
		FuzzyNameCap:    0.85,
		FuzzyNameMin:    0.6,
		PhoneSuffix:     0.75,
		AutoAssign:      0.75,
	}
}

// NoMatchReason is the reason string reported when no strategy produced a
// candidate.
const NoMatchReason = "No match found"
