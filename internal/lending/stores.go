package lending

import (
	"context"
	"time"

	"github.com/mrlokans/lending/internal/entities"
)

// BookStore gives the Engine access to book inventory.
type BookStore interface {
	GetBook(ctx context.Context, id uint) (*entities.Book, error)

	// AdjustCopies applies both deltas in one atomic conditional update and
	// returns the updated book. It returns ErrCopyBounds without writing when
	// either counter would leave [0, TotalCopies].
	AdjustCopies(ctx context.Context, bookID uint, availableDelta, borrowedDelta int) (*entities.Book, error)
}

type UserStore interface {
	GetUser(ctx context.Context, id uint) (*entities.User, error)
}

// RecordStore persists borrow records.
type RecordStore interface {
	// CreateRecord returns ErrDuplicateActiveLoan when the pair already has an outstanding loan.
	CreateRecord(ctx context.Context, record *entities.BorrowRecord) error
	GetRecord(ctx context.Context, id uint) (*entities.BorrowRecord, error)

	// UpdateRecord writes record only if the stored row still has expectedPrior
	// status and the record's revision; otherwise it returns ErrStaleRecord.
	UpdateRecord(ctx context.Context, record *entities.BorrowRecord, expectedPrior entities.BorrowStatus) error

	FindActiveByUserAndBook(ctx context.Context, userID, bookID uint) (*entities.BorrowRecord, error)

	// FindOverdueCandidates lists outstanding records due strictly before now.
	FindOverdueCandidates(ctx context.Context, now time.Time) ([]entities.BorrowRecord, error)
}

// Stores bundles the stores bound to one transaction.
type Stores struct {
	Books   BookStore
	Users   UserStore
	Records RecordStore
}

// Transactor runs fn with stores bound to a single transaction. A non-nil
// error from fn rolls the transaction back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
