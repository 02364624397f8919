// Package reports runs read-only aggregate queries over the lending tables.
//
// Queries are built with goqu and executed through sqlx on the same *sql.DB
// the ORM uses, so they share its single connection and never observe a
// half-applied transaction.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // dialect registration
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mrlokans/lending/internal/entities"
)

const (
	dialectSQLite = "sqlite3"

	DefaultDueSoonWindow = 72 * time.Hour
	DefaultPopularLimit  = 10
	maxPopularLimit      = 100
)

type Reporter struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewReporter(sqlDB *sql.DB) *Reporter {
	return &Reporter{
		db:      sqlx.NewDb(sqlDB, dialectSQLite),
		dialect: goqu.Dialect(dialectSQLite),
	}
}

type InventoryTotals struct {
	Titles          int64 `db:"titles" json:"titles"`
	TotalCopies     int64 `db:"total_copies" json:"total_copies"`
	AvailableCopies int64 `db:"available_copies" json:"available_copies"`
	BorrowedCopies  int64 `db:"borrowed_copies" json:"borrowed_copies"`
}

// Overview is the dashboard summary of the library.
type Overview struct {
	GeneratedAt      time.Time                       `json:"generated_at"`
	LoansByStatus    map[entities.BorrowStatus]int64 `json:"loans_by_status"`
	OverdueNow       int64                           `json:"overdue_now"`
	OutstandingFines decimal.Decimal                 `json:"outstanding_fines"`
	FinesAssessed    decimal.Decimal                 `json:"fines_assessed"`
	Inventory        InventoryTotals                 `json:"inventory"`
	ActiveUsers      int64                           `json:"active_users"`
}

type statusCount struct {
	Status entities.BorrowStatus `db:"status"`
	Count  int64                 `db:"count"`
}

func (r *Reporter) Overview(ctx context.Context, now time.Time) (*Overview, error) {
	now = now.UTC()
	overview := &Overview{
		GeneratedAt: now,
		LoansByStatus: map[entities.BorrowStatus]int64{
			entities.BorrowStatusBorrowed: 0,
			entities.BorrowStatusOverdue:  0,
			entities.BorrowStatusReturned: 0,
		},
	}

	var counts []statusCount
	byStatus := r.dialect.From("borrow_records").
		Select(goqu.C("status"), goqu.COUNT("*").As("count")).
		GroupBy(goqu.C("status"))
	if err := r.selectAll(ctx, &counts, byStatus); err != nil {
		return nil, fmt.Errorf("failed to count loans by status: %w", err)
	}
	for _, c := range counts {
		overview.LoansByStatus[c.Status] = c.Count
	}

	overdue := r.dialect.From("borrow_records").
		Select(goqu.COUNT("*")).
		Where(goqu.Or(
			goqu.C("status").Eq(entities.BorrowStatusOverdue),
			goqu.And(
				goqu.C("status").Eq(entities.BorrowStatusBorrowed),
				goqu.C("due_date").Lt(now),
			),
		))
	if err := r.get(ctx, &overview.OverdueNow, overdue); err != nil {
		return nil, fmt.Errorf("failed to count overdue loans: %w", err)
	}

	var err error
	overview.OutstandingFines, err = r.sumFines(ctx, entities.BorrowStatusOverdue)
	if err != nil {
		return nil, err
	}
	overview.FinesAssessed, err = r.sumFines(ctx, entities.BorrowStatusReturned)
	if err != nil {
		return nil, err
	}

	inventory := r.dialect.From("books").Select(
		goqu.COUNT("*").As("titles"),
		goqu.COALESCE(goqu.SUM("total_copies"), 0).As("total_copies"),
		goqu.COALESCE(goqu.SUM("available_copies"), 0).As("available_copies"),
		goqu.COALESCE(goqu.SUM("borrowed_copies"), 0).As("borrowed_copies"),
	)
	if err := r.get(ctx, &overview.Inventory, inventory); err != nil {
		return nil, fmt.Errorf("failed to total inventory: %w", err)
	}

	activeUsers := r.dialect.From("users").
		Select(goqu.COUNT("*")).
		Where(goqu.C("status").Eq(entities.UserStatusActive))
	if err := r.get(ctx, &overview.ActiveUsers, activeUsers); err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}

	return overview, nil
}

func (r *Reporter) sumFines(ctx context.Context, status entities.BorrowStatus) (decimal.Decimal, error) {
	var total decimal.Decimal
	ds := r.dialect.From("borrow_records").
		Select(goqu.COALESCE(goqu.SUM("fine_amount"), 0)).
		Where(goqu.C("status").Eq(status))
	if err := r.get(ctx, &total, ds); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum %s fines: %w", status, err)
	}
	return total, nil
}

// PopularBook is a title ranked by how often it has been borrowed.
type PopularBook struct {
	BookID uint   `db:"book_id" json:"book_id"`
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
	Loans  int64  `db:"loans" json:"loans"`
}

// PopularBooks ranks books by total number of loans, ever.
func (r *Reporter) PopularBooks(ctx context.Context, limit int) ([]PopularBook, error) {
	if limit <= 0 {
		limit = DefaultPopularLimit
	}
	if limit > maxPopularLimit {
		limit = maxPopularLimit
	}

	ds := r.dialect.From(goqu.T("borrow_records").As("r")).
		InnerJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		Select(
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.COUNT(goqu.I("r.id")).As("loans"),
		).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.C("loans").Desc(), goqu.I("b.id").Asc()).
		Limit(uint(limit))

	books := make([]PopularBook, 0, limit)
	if err := r.selectAll(ctx, &books, ds); err != nil {
		return nil, fmt.Errorf("failed to rank popular books: %w", err)
	}
	return books, nil
}

// DueSoonLoan is an outstanding loan that falls due within the report window.
type DueSoonLoan struct {
	RecordID uint      `db:"record_id" json:"record_id"`
	UserID   uint      `db:"user_id" json:"user_id"`
	Username string    `db:"username" json:"username"`
	BookID   uint      `db:"book_id" json:"book_id"`
	Title    string    `db:"title" json:"title"`
	DueDate  time.Time `db:"due_date" json:"due_date"`
}

// DueSoon lists BORROWED loans due in [now, now+within], earliest first.
func (r *Reporter) DueSoon(ctx context.Context, now time.Time, within time.Duration) ([]DueSoonLoan, error) {
	if within <= 0 {
		within = DefaultDueSoonWindow
	}
	now = now.UTC()

	ds := r.dialect.From(goqu.T("borrow_records").As("r")).
		InnerJoin(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("r.book_id")))).
		InnerJoin(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Select(
			goqu.I("r.id").As("record_id"),
			goqu.I("r.user_id").As("user_id"),
			goqu.I("u.username").As("username"),
			goqu.I("r.book_id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("r.due_date").As("due_date"),
		).
		Where(
			goqu.I("r.status").Eq(entities.BorrowStatusBorrowed),
			goqu.I("r.due_date").Gte(now),
			goqu.I("r.due_date").Lte(now.Add(within)),
		).
		Order(goqu.I("r.due_date").Asc(), goqu.I("r.id").Asc())

	loans := []DueSoonLoan{}
	if err := r.selectAll(ctx, &loans, ds); err != nil {
		return nil, fmt.Errorf("failed to list loans due soon: %w", err)
	}
	return loans, nil
}

func (r *Reporter) selectAll(ctx context.Context, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}

func (r *Reporter) get(ctx context.Context, dest interface{}, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}
