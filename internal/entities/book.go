package entities

import (
	"time"
)

type BookStatus string

const (
	BookStatusListed   BookStatus = "listed"
	BookStatusUnlisted BookStatus = "unlisted" // withdrawn from circulation, cannot be borrowed
)

// Book is a catalogue title whose copies are tracked as aggregate counters.
// AvailableCopies + BorrowedCopies == TotalCopies after every committed write.
type Book struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Title           string     `gorm:"index;size:512;not null" json:"title"`
	Author          string     `gorm:"index;size:256" json:"author"`
	ISBN            string     `gorm:"index;size:20" json:"isbn,omitempty"`
	Category        string     `gorm:"size:100" json:"category,omitempty"`
	Status          BookStatus `gorm:"size:20;default:'listed'" json:"status"`
	TotalCopies     int        `gorm:"not null;check:chk_books_copy_balance,available_copies + borrowed_copies = total_copies" json:"total_copies"`
	AvailableCopies int        `gorm:"not null;check:available_copies >= 0" json:"available_copies"`
	BorrowedCopies  int        `gorm:"not null;default:0;check:borrowed_copies >= 0" json:"borrowed_copies"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// IsActive reports whether the book may be lent out at all.
func (b *Book) IsActive() bool {
	return b.Status == BookStatusListed
}

// CountersBalanced reports whether the copy counters satisfy the inventory invariant.
func (b *Book) CountersBalanced() bool {
	return b.AvailableCopies >= 0 &&
		b.BorrowedCopies >= 0 &&
		b.AvailableCopies+b.BorrowedCopies == b.TotalCopies
}

func ValidBookStatus(s BookStatus) bool {
	switch s {
	case BookStatusListed, BookStatusUnlisted:
		return true
	default:
		return false
	}
}
