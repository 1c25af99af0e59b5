package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ManualContribution is a credit entered by an administrator rather than
// extracted from a statement. It feeds the same allocation path.
type ManualContribution struct {
	ContributedAt time.Time
	ID            string
	Source        string
	Amount        decimal.Decimal
	MemberID      int64
}
