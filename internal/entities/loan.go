package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BorrowStatus is the lifecycle state of a single loan.
type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "BORROWED"
	BorrowStatusOverdue  BorrowStatus = "OVERDUE"
	BorrowStatusReturned BorrowStatus = "RETURNED" // terminal
)

// ParseBorrowStatus converts user input into a BorrowStatus.
func ParseBorrowStatus(s string) (BorrowStatus, error) {
	switch status := BorrowStatus(s); status {
	case BorrowStatusBorrowed, BorrowStatusOverdue, BorrowStatusReturned:
		return status, nil
	default:
		return "", fmt.Errorf("unknown borrow status %q", s)
	}
}

// IsOutstanding reports whether the copy is still with the borrower.
func (s BorrowStatus) IsOutstanding() bool {
	return s == BorrowStatusBorrowed || s == BorrowStatusOverdue
}

// CanTransitionTo lists every legal edge of the loan state machine.
// OVERDUE -> OVERDUE is the sweep refreshing an accrued fine.
func (s BorrowStatus) CanTransitionTo(next BorrowStatus) bool {
	switch s {
	case BorrowStatusBorrowed:
		return next == BorrowStatusOverdue || next == BorrowStatusReturned
	case BorrowStatusOverdue:
		return next == BorrowStatusOverdue || next == BorrowStatusReturned
	case BorrowStatusReturned:
		return false
	default:
		return false
	}
}

// OutstandingStatuses are the statuses counted against the one-loan-per-book rule.
var OutstandingStatuses = []BorrowStatus{BorrowStatusBorrowed, BorrowStatusOverdue}

// BorrowRecord is one loan of one copy of a book to one user. Records are never deleted.
type BorrowRecord struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	UserID     uint            `gorm:"index;not null" json:"user_id"`
	BookID     uint            `gorm:"index;not null" json:"book_id"`
	BorrowDate time.Time       `gorm:"not null" json:"borrow_date"`
	DueDate    time.Time       `gorm:"index;not null" json:"due_date"`
	ReturnDate *time.Time      `json:"return_date,omitempty"`
	RenewCount int             `gorm:"not null;default:0" json:"renew_count"`
	Status     BorrowStatus    `gorm:"index;size:20;not null" json:"status"`
	FineAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"fine_amount"`

	// Revision is bumped on every conditional update so a stale snapshot can never overwrite a newer one.
	Revision int `gorm:"not null;default:0" json:"-"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BorrowRecord) TableName() string {
	return "borrow_records"
}

// NewBorrowRecord builds a fresh loan starting at borrowedAt.
func NewBorrowRecord(userID, bookID uint, borrowedAt time.Time, loanPeriod time.Duration) *BorrowRecord {
	return &BorrowRecord{
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(loanPeriod),
		RenewCount: 0,
		Status:     BorrowStatusBorrowed,
		FineAmount: decimal.Zero,
	}
}

// IsPastDue reports whether the loan is logically overdue at asOf, whether or not a sweep has marked it.
func (r *BorrowRecord) IsPastDue(asOf time.Time) bool {
	return r.Status.IsOutstanding() && r.DueDate.Before(asOf)
}
