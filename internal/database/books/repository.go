// Package books provides database operations for the book catalogue and its
// copy counters.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.AdjustCopies(ctx, bookID, -1, 1)
package books

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

var _ lending.BookStore = (*Repository)(nil)

var (
	ErrInvalidCopyCount   = errors.New("total copies must not be negative")
	ErrTotalBelowBorrowed = errors.New("total copies cannot drop below the number of borrowed copies")
	ErrInvalidStatus      = errors.New("invalid book status")
	ErrTitleRequired      = errors.New("title is required")
)

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateBook inserts a book with every copy on the shelf.
func (r *Repository) CreateBook(ctx context.Context, book *entities.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return ErrTitleRequired
	}
	if book.TotalCopies < 0 {
		return ErrInvalidCopyCount
	}
	if book.Status == "" {
		book.Status = entities.BookStatusListed
	}
	if !entities.ValidBookStatus(book.Status) {
		return ErrInvalidStatus
	}
	book.AvailableCopies = book.TotalCopies
	book.BorrowedCopies = 0

	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// GetBook returns lending.ErrNotFound when no book has the given id.
func (r *Repository) GetBook(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).First(&book, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book %d: %w", id, lending.ErrNotFound)
		}
		return nil, err
	}
	return &book, nil
}

// ListFilter narrows ListBooks. Zero values match everything.
type ListFilter struct {
	Query         string // matched against title, author and ISBN
	Category      string
	Status        entities.BookStatus
	AvailableOnly bool
	Limit         int
	Offset        int
}

// ListBooks returns one page of books ordered by title, plus the total match count.
func (r *Repository) ListBooks(ctx context.Context, filter ListFilter) ([]entities.Book, int64, error) {
	var books []entities.Book
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Book{})
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("title LIKE ? OR author LIKE ? OR isbn LIKE ?", like, like, like)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.AvailableOnly {
		query = query.Where("available_copies > 0")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	err := query.Order("title ASC, id ASC").Limit(filter.Limit).Offset(filter.Offset).Find(&books).Error
	return books, total, err
}

// AdjustCopies shifts copies between the available and borrowed counters in a
// single conditional UPDATE. The WHERE clause carries the bounds, so a racing
// writer can never push a counter outside [0, total_copies].
func (r *Repository) AdjustCopies(ctx context.Context, bookID uint, availableDelta, borrowedDelta int) (*entities.Book, error) {
	db := r.db.WithContext(ctx)

	result := db.Model(&entities.Book{}).
		Where("id = ?", bookID).
		Where("available_copies + ? >= 0 AND available_copies + ? <= total_copies", availableDelta, availableDelta).
		Where("borrowed_copies + ? >= 0 AND borrowed_copies + ? <= total_copies", borrowedDelta, borrowedDelta).
		Updates(map[string]interface{}{
			"available_copies": gorm.Expr("available_copies + ?", availableDelta),
			"borrowed_copies":  gorm.Expr("borrowed_copies + ?", borrowedDelta),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to adjust copies of book %d: %w", bookID, result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetBook(ctx, bookID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("book %d (available %+d, borrowed %+d): %w",
			bookID, availableDelta, borrowedDelta, lending.ErrCopyBounds)
	}

	return r.GetBook(ctx, bookID)
}

// SetTotalCopies changes the copy count and re-normalizes available copies to
// total - borrowed. Copies currently on loan are never written off.
func (r *Repository) SetTotalCopies(ctx context.Context, bookID uint, total int) (*entities.Book, error) {
	if total < 0 {
		return nil, ErrInvalidCopyCount
	}

	result := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ? AND borrowed_copies <= ?", bookID, total).
		Updates(map[string]interface{}{
			"total_copies":     total,
			"available_copies": gorm.Expr("? - borrowed_copies", total),
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to set copies of book %d: %w", bookID, result.Error)
	}

	if result.RowsAffected == 0 {
		if _, err := r.GetBook(ctx, bookID); err != nil {
			return nil, err
		}
		return nil, ErrTotalBelowBorrowed
	}

	return r.GetBook(ctx, bookID)
}

// SetStatus lists or unlists a book. Unlisting leaves outstanding loans untouched.
func (r *Repository) SetStatus(ctx context.Context, bookID uint, status entities.BookStatus) (*entities.Book, error) {
	if !entities.ValidBookStatus(status) {
		return nil, ErrInvalidStatus
	}

	result := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ?", bookID).
		Update("status", status)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update status of book %d: %w", bookID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("book %d: %w", bookID, lending.ErrNotFound)
	}

	return r.GetBook(ctx, bookID)
}
