package model

// MatchResult is the outcome of scoring one transaction against the member
// set. It is transient: persistence of the decision lives on the transaction.
type MatchResult struct {
	CandidateMemberID *int64
	Reason            string
	MatchedTokens     []string
	Confidence        float64
}

// Matched reports whether a candidate member was found.
func (r MatchResult) Matched() bool {
	return r.CandidateMemberID != nil
}
