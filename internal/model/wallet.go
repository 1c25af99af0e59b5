package model

import "github.com/shopspring/decimal"

// Wallet holds a member's unallocated credit. Exactly one wallet exists per
// member; Balance is never negative.
type Wallet struct {
	Balance       decimal.Decimal
	LockedBalance decimal.Decimal
	ID            int64
	MemberID      int64
}
