package lending

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/lending/internal/entities"
)

const DefaultOperationTimeout = 10 * time.Second

// Engine runs borrow, return, renew and sweep operations against a Transactor.
type Engine struct {
	tx       Transactor
	policy   Policy
	now      func() time.Time
	observer Observer
	timeout  time.Duration
}

type Option func(*Engine)

// WithClock overrides the time source. Returned times are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// WithOperationTimeout bounds every transaction. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

func NewEngine(tx Transactor, policy Policy, opts ...Option) (*Engine, error) {
	if tx == nil {
		return nil, errors.New("lending engine requires a transactor")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid lending policy: %w", err)
	}

	e := &Engine{
		tx:       tx,
		policy:   policy,
		now:      time.Now,
		observer: nopObserver{},
		timeout:  DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Policy() Policy {
	return e.policy
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

func (e *Engine) within(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	return e.tx.WithinTx(ctx, fn)
}

// Borrow lends one copy of bookID to userID.
func (e *Engine) Borrow(ctx context.Context, userID, bookID uint) (*entities.BorrowRecord, error) {
	now := e.clock()
	var record *entities.BorrowRecord

	err := e.within(ctx, func(ctx context.Context, s Stores) error {
		user, err := s.Users.GetUser(ctx, userID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return decline(ReasonUserNotFound, "user %d does not exist", userID)
			}
			return fmt.Errorf("failed to load user %d: %w", userID, err)
		}
		if !user.IsActive() {
			return decline(ReasonUserInactive, "user %d is not active", userID)
		}

		book, err := s.Books.GetBook(ctx, bookID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return decline(ReasonBookNotFound, "book %d does not exist", bookID)
			}
			return fmt.Errorf("failed to load book %d: %w", bookID, err)
		}
		if !book.IsActive() {
			return decline(ReasonBookInactive, "book %d is not available for lending", bookID)
		}
		if book.AvailableCopies <= 0 {
			return decline(ReasonNoAvailableCopies, "no copies of book %d are available", bookID)
		}

		existing, err := s.Records.FindActiveByUserAndBook(ctx, userID, bookID)
		switch {
		case err == nil:
			return decline(ReasonDuplicateLoan, "user %d already holds book %d under record %d", userID, bookID, existing.ID)
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("failed to check active loans: %w", err)
		}

		updated, err := s.Books.AdjustCopies(ctx, bookID, -1, 1)
		if err != nil {
			switch {
			case errors.Is(err, ErrCopyBounds):
				return decline(ReasonNoAvailableCopies, "no copies of book %d are available", bookID)
			case errors.Is(err, ErrNotFound):
				return decline(ReasonBookNotFound, "book %d does not exist", bookID)
			}
			return fmt.Errorf("failed to reserve a copy of book %d: %w", bookID, err)
		}
		if !updated.CountersBalanced() {
			return e.consistencyFault("borrowing book %d: available=%d borrowed=%d total=%d",
				bookID, updated.AvailableCopies, updated.BorrowedCopies, updated.TotalCopies)
		}

		rec := entities.NewBorrowRecord(userID, bookID, now, e.policy.LoanPeriod())
		if err := s.Records.CreateRecord(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicateActiveLoan) {
				return decline(ReasonDuplicateLoan, "user %d already holds book %d", userID, bookID)
			}
			return fmt.Errorf("failed to create borrow record: %w", err)
		}
		record = rec
		return nil
	})

	e.observer.ObserveLending(Event{Action: ActionBorrow, UserID: userID, BookID: bookID, RecordID: recordID(record), Record: record, Err: err})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Return closes an outstanding loan. When callerID is set it must own the record.
func (e *Engine) Return(ctx context.Context, recordID uint, callerID *uint) (*entities.BorrowRecord, error) {
	now := e.clock()
	var record *entities.BorrowRecord

	err := e.within(ctx, func(ctx context.Context, s Stores) error {
		rec, err := e.loadOwnedRecord(ctx, s, recordID, callerID)
		if err != nil {
			return err
		}
		if !rec.Status.CanTransitionTo(entities.BorrowStatusReturned) {
			return decline(ReasonInvalidStatus, "record %d is %s and cannot be returned", recordID, rec.Status)
		}

		prior := rec.Status
		returnedAt := now
		rec.ReturnDate = &returnedAt
		rec.Status = entities.BorrowStatusReturned
		rec.FineAmount = ComputeFine(rec.DueDate, now, e.policy.FinePerDay)

		if err := s.Records.UpdateRecord(ctx, rec, prior); err != nil {
			if errors.Is(err, ErrStaleRecord) {
				return decline(ReasonInvalidStatus, "record %d was modified concurrently", recordID)
			}
			return fmt.Errorf("failed to update record %d: %w", recordID, err)
		}

		updated, err := s.Books.AdjustCopies(ctx, rec.BookID, 1, -1)
		if err != nil {
			if errors.Is(err, ErrCopyBounds) || errors.Is(err, ErrNotFound) {
				return e.consistencyFault("returning record %d to book %d: %v", recordID, rec.BookID, err)
			}
			return fmt.Errorf("failed to release copy of book %d: %w", rec.BookID, err)
		}
		if !updated.CountersBalanced() {
			return e.consistencyFault("returning record %d to book %d: available=%d borrowed=%d total=%d",
				recordID, rec.BookID, updated.AvailableCopies, updated.BorrowedCopies, updated.TotalCopies)
		}

		record = rec
		return nil
	})

	e.observer.ObserveLending(e.recordEvent(ActionReturn, recordID, record, err))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Renew extends the due date of a loan that is not yet overdue.
func (e *Engine) Renew(ctx context.Context, recordID uint, callerID *uint) (*entities.BorrowRecord, error) {
	now := e.clock()
	var record *entities.BorrowRecord

	err := e.within(ctx, func(ctx context.Context, s Stores) error {
		rec, err := e.loadOwnedRecord(ctx, s, recordID, callerID)
		if err != nil {
			return err
		}

		switch {
		case rec.Status == entities.BorrowStatusReturned:
			return decline(ReasonInvalidStatus, "record %d is already returned", recordID)
		case rec.Status == entities.BorrowStatusOverdue, rec.IsPastDue(now):
			return decline(ReasonLoanOverdue, "record %d is overdue and cannot be renewed", recordID)
		case rec.Status != entities.BorrowStatusBorrowed:
			return decline(ReasonInvalidStatus, "record %d is %s and cannot be renewed", recordID, rec.Status)
		case rec.RenewCount >= e.policy.MaxRenewals:
			return decline(ReasonRenewalLimit, "record %d has reached the limit of %d renewals", recordID, e.policy.MaxRenewals)
		}

		rec.DueDate = rec.DueDate.Add(e.policy.LoanPeriod())
		rec.RenewCount++

		if err := s.Records.UpdateRecord(ctx, rec, entities.BorrowStatusBorrowed); err != nil {
			if errors.Is(err, ErrStaleRecord) {
				return decline(ReasonInvalidStatus, "record %d was modified concurrently", recordID)
			}
			return fmt.Errorf("failed to update record %d: %w", recordID, err)
		}

		record = rec
		return nil
	})

	e.observer.ObserveLending(e.recordEvent(ActionRenew, recordID, record, err))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SweepResult summarizes one overdue sweep.
type SweepResult struct {
	RunID        string    `json:"run_id"`
	AsOf         time.Time `json:"as_of"`
	Candidates   int       `json:"candidates"`
	Transitioned int       `json:"transitioned"`
	Refreshed    int       `json:"refreshed"`
	Skipped      int       `json:"skipped"`
}

// SweepOverdue marks past-due loans OVERDUE and refreshes the fines of loans
// already marked. A zero now means the engine clock. Each record is claimed in
// its own transaction; records changed since the scan are skipped.
func (e *Engine) SweepOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	if now.IsZero() {
		now = e.clock()
	}
	result := SweepResult{RunID: uuid.NewString(), AsOf: now.UTC()}

	var candidates []entities.BorrowRecord
	err := e.within(ctx, func(ctx context.Context, s Stores) error {
		var err error
		candidates, err = s.Records.FindOverdueCandidates(ctx, now)
		return err
	})
	if err != nil {
		err = fmt.Errorf("failed to scan overdue candidates: %w", err)
		e.observer.ObserveLending(Event{Action: ActionSweep, Sweep: &result, Err: err})
		return result, err
	}
	result.Candidates = len(candidates)

	for i := range candidates {
		if err := ctx.Err(); err != nil {
			e.observer.ObserveLending(Event{Action: ActionSweep, Sweep: &result, Err: err})
			return result, err
		}

		rec := candidates[i]
		prior := rec.Status
		if !prior.CanTransitionTo(entities.BorrowStatusOverdue) {
			result.Skipped++
			continue
		}
		rec.Status = entities.BorrowStatusOverdue
		rec.FineAmount = ComputeFine(rec.DueDate, now, e.policy.FinePerDay)

		err := e.within(ctx, func(ctx context.Context, s Stores) error {
			return s.Records.UpdateRecord(ctx, &rec, prior)
		})
		switch {
		case errors.Is(err, ErrStaleRecord):
			result.Skipped++
		case err != nil:
			err = fmt.Errorf("failed to mark record %d overdue: %w", rec.ID, err)
			e.observer.ObserveLending(Event{Action: ActionSweep, Sweep: &result, Err: err})
			return result, err
		case prior == entities.BorrowStatusBorrowed:
			result.Transitioned++
		default:
			result.Refreshed++
		}
	}

	log.Printf("Overdue sweep %s: %d candidates, %d transitioned, %d refreshed, %d skipped",
		result.RunID, result.Candidates, result.Transitioned, result.Refreshed, result.Skipped)
	e.observer.ObserveLending(Event{Action: ActionSweep, Sweep: &result})
	return result, nil
}

func (e *Engine) loadOwnedRecord(ctx context.Context, s Stores, recordID uint, callerID *uint) (*entities.BorrowRecord, error) {
	rec, err := s.Records.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, decline(ReasonRecordNotFound, "borrow record %d does not exist", recordID)
		}
		return nil, fmt.Errorf("failed to load record %d: %w", recordID, err)
	}
	if callerID != nil && *callerID != rec.UserID {
		return nil, decline(ReasonNotOwner, "borrow record %d belongs to another user", recordID)
	}
	return rec, nil
}

func (e *Engine) consistencyFault(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	log.Printf("Lending: CONSISTENCY FAULT %s, rolling back", msg)
	return fmt.Errorf("%w: %s", ErrConsistencyFault, msg)
}

func (e *Engine) recordEvent(action Action, id uint, record *entities.BorrowRecord, err error) Event {
	ev := Event{Action: action, RecordID: id, Record: record, Err: err}
	if record != nil {
		ev.UserID = record.UserID
		ev.BookID = record.BookID
	}
	return ev
}

func recordID(record *entities.BorrowRecord) uint {
	if record == nil {
		return 0
	}
	return record.ID
}
