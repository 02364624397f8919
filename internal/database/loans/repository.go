// Package loans provides database operations for borrow records.
//
// Records are only ever inserted and conditionally updated, never deleted.
// Every update is guarded by the status and revision the caller read, so two
// writers racing on the same record cannot both win.
package loans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

var _ lending.RecordStore = (*Repository)(nil)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateRecord inserts a new loan. A hit on the active-loan unique index is
// reported as lending.ErrDuplicateActiveLoan.
func (r *Repository) CreateRecord(ctx context.Context, record *entities.BorrowRecord) error {
	err := r.db.WithContext(ctx).Omit("User", "Book").Create(record).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %d, book %d: %w", record.UserID, record.BookID, lending.ErrDuplicateActiveLoan)
		}
		return fmt.Errorf("failed to insert borrow record: %w", err)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id uint) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("borrow record %d: %w", id, lending.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

// UpdateRecord writes the mutable fields of record if the stored row still has
// status expectedPrior and the same revision. On success record.Revision is
// advanced; otherwise lending.ErrStaleRecord is returned and nothing is written.
func (r *Repository) UpdateRecord(ctx context.Context, record *entities.BorrowRecord, expectedPrior entities.BorrowStatus) error {
	if record.Status != expectedPrior && !expectedPrior.CanTransitionTo(record.Status) {
		return fmt.Errorf("illegal transition %s -> %s for record %d: %w",
			expectedPrior, record.Status, record.ID, lending.ErrStaleRecord)
	}

	result := r.db.WithContext(ctx).Model(&entities.BorrowRecord{}).
		Where("id = ? AND status = ? AND revision = ?", record.ID, expectedPrior, record.Revision).
		Updates(map[string]interface{}{
			"due_date":    record.DueDate,
			"return_date": record.ReturnDate,
			"renew_count": record.RenewCount,
			"status":      record.Status,
			"fine_amount": record.FineAmount,
			"revision":    gorm.Expr("revision + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update borrow record %d: %w", record.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("borrow record %d (expected %s, revision %d): %w",
			record.ID, expectedPrior, record.Revision, lending.ErrStaleRecord)
	}

	record.Revision++
	return nil
}

// FindActiveByUserAndBook returns the outstanding loan of bookID held by
// userID, or lending.ErrNotFound.
func (r *Repository) FindActiveByUserAndBook(ctx context.Context, userID, bookID uint) (*entities.BorrowRecord, error) {
	var record entities.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ? AND status IN ?", userID, bookID, entities.OutstandingStatuses).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("active loan of book %d by user %d: %w", bookID, userID, lending.ErrNotFound)
		}
		return nil, err
	}
	return &record, nil
}

func (r *Repository) FindOverdueCandidates(ctx context.Context, now time.Time) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("status IN ? AND due_date < ?", entities.OutstandingStatuses, now.UTC()).
		Order("due_date ASC, id ASC").
		Find(&records).Error
	return records, err
}

// ListFilter narrows ListRecords. Zero values match everything.
type ListFilter struct {
	UserID uint
	BookID uint
	Status entities.BorrowStatus
	Limit  int
	Offset int
}

// ListRecords returns one page of records, newest first, with their books loaded.
func (r *Repository) ListRecords(ctx context.Context, filter ListFilter) ([]entities.BorrowRecord, int64, error) {
	var records []entities.BorrowRecord
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.BorrowRecord{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.BookID > 0 {
		query = query.Where("book_id = ?", filter.BookID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
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

	err := query.Preload("Book").
		Order("borrow_date DESC, id DESC").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&records).Error
	return records, total, err
}

// ListOverdue returns loans that are overdue at now, whether or not a sweep
// has marked them yet.
func (r *Repository) ListOverdue(ctx context.Context, now time.Time) ([]entities.BorrowRecord, error) {
	var records []entities.BorrowRecord
	err := r.db.WithContext(ctx).
		Preload("User").Preload("Book").
		Where("status = ? OR (status = ? AND due_date < ?)",
			entities.BorrowStatusOverdue, entities.BorrowStatusBorrowed, now.UTC()).
		Order("due_date ASC, id ASC").
		Find(&records).Error
	return records, err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
