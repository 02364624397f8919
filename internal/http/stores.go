package http

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
	"github.com/mrlokans/lending/internal/reports"
)

// Each controller depends on the narrow interface it uses. The concrete
// implementations live in internal/lending, internal/database/* and
// internal/reports.

// Lender runs the borrowing lifecycle operations.
type Lender interface {
	Borrow(ctx context.Context, userID, bookID uint) (*entities.BorrowRecord, error)
	Return(ctx context.Context, recordID uint, callerID *uint) (*entities.BorrowRecord, error)
	Renew(ctx context.Context, recordID uint, callerID *uint) (*entities.BorrowRecord, error)
}

// LoanReader lists borrow records.
type LoanReader interface {
	ListRecords(ctx context.Context, filter loans.ListFilter) ([]entities.BorrowRecord, int64, error)
	ListOverdue(ctx context.Context, now time.Time) ([]entities.BorrowRecord, error)
}

// SweepTrigger starts an overdue sweep outside the schedule.
type SweepTrigger interface {
	RunSweepNow(ctx context.Context) (string, *lending.SweepResult, error)
}

// BookStore manages the catalogue.
type BookStore interface {
	CreateBook(ctx context.Context, book *entities.Book) error
	GetBook(ctx context.Context, id uint) (*entities.Book, error)
	ListBooks(ctx context.Context, filter books.ListFilter) ([]entities.Book, int64, error)
	SetTotalCopies(ctx context.Context, bookID uint, total int) (*entities.Book, error)
	SetStatus(ctx context.Context, bookID uint, status entities.BookStatus) (*entities.Book, error)
}

// UserStore reads and enables/disables accounts.
type UserStore interface {
	GetUser(ctx context.Context, id uint) (*entities.User, error)
	SetStatus(ctx context.Context, userID uint, status entities.UserStatus) (*entities.User, error)
}

// ReportSource provides the read-only lending reports.
type ReportSource interface {
	Overview(ctx context.Context, now time.Time) (*reports.Overview, error)
	PopularBooks(ctx context.Context, limit int) ([]reports.PopularBook, error)
	DueSoon(ctx context.Context, now time.Time, within time.Duration) ([]reports.DueSoonLoan, error)
}

// AuditReader lists audit events.
type AuditReader interface {
	GetEvents(ctx context.Context, filter audit.Filter) ([]entities.AuditEvent, int64, error)
}

// AdminAuditor records administrative and authentication actions.
type AdminAuditor interface {
	LogAdmin(actorID uint, action, entityType string, entityID uint, description string, err error)
	LogAuth(userID uint, action, ipAddr string, success bool)
}

// TaskQueue enqueues background tasks and reports their status.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

type nopAuditor struct{}

func (nopAuditor) LogAdmin(uint, string, string, uint, string, error) {}
func (nopAuditor) LogAuth(uint, string, string, bool)                {}
