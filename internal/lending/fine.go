package lending

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// OverdueDays returns the number of whole days asOf lies past dueDate.
// Partial days are not charged.
func OverdueDays(dueDate, asOf time.Time) int64 {
	if !asOf.After(dueDate) {
		return 0
	}
	return int64(asOf.Sub(dueDate) / day)
}

// ComputeFine is the single source of truth for overdue fines. Both the return
// path and the overdue sweep call it, always recomputing from the due date so
// repeated sweeps never double count.
func ComputeFine(dueDate, asOf time.Time, finePerDay decimal.Decimal) decimal.Decimal {
	days := OverdueDays(dueDate, asOf)
	if days == 0 {
		return decimal.Zero
	}
	return finePerDay.Mul(decimal.NewFromInt(days))
}
