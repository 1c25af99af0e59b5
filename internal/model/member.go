package model

// Member is the canonical matching target for incoming credits.
// Members are read-only from the reconciliation pipeline's perspective.
type Member struct {
	Name       string
	Phone      string
	MemberCode string
	ID         int64
	Active     bool
}
