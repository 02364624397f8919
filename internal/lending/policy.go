package lending

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriodDays = 30
	DefaultMaxRenewals    = 2
)

// DefaultFinePerDay is charged for every whole day a loan is past due.
var DefaultFinePerDay = decimal.NewFromInt(1)

// Policy holds the lending rules applied by the Engine.
type Policy struct {
	LoanPeriodDays int
	MaxRenewals    int
	FinePerDay     decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		MaxRenewals:    DefaultMaxRenewals,
		FinePerDay:     DefaultFinePerDay,
	}
}

var (
	ErrInvalidLoanPeriod = errors.New("loan period must be at least one day")
	ErrInvalidRenewals   = errors.New("max renewals must not be negative")
	ErrInvalidFineRate   = errors.New("fine per day must not be negative")
)

func (p Policy) Validate() error {
	if p.LoanPeriodDays < 1 {
		return ErrInvalidLoanPeriod
	}
	if p.MaxRenewals < 0 {
		return ErrInvalidRenewals
	}
	if p.FinePerDay.IsNegative() {
		return ErrInvalidFineRate
	}
	return nil
}

// LoanPeriod is the length of one loan, and of each renewal.
func (p Policy) LoanPeriod() time.Duration {
	return time.Duration(p.LoanPeriodDays) * 24 * time.Hour
}

func (p Policy) String() string {
	return fmt.Sprintf("loan=%dd renewals=%d fine/day=%s", p.LoanPeriodDays, p.MaxRenewals, p.FinePerDay.StringFixed(2))
}
