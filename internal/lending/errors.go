package lending

import (
	"errors"
	"fmt"
)

// Store-level sentinels. Implementations of the store interfaces must return
// (or wrap) these so the Engine can classify failures.
var (
	ErrNotFound            = errors.New("not found")
	ErrCopyBounds          = errors.New("copy counters out of bounds")
	ErrStaleRecord         = errors.New("borrow record changed concurrently")
	ErrDuplicateActiveLoan = errors.New("user already holds an active loan of this book")
)

// ErrConsistencyFault signals a defect: the inventory invariant would be violated.
var ErrConsistencyFault = errors.New("inventory consistency fault")

// DeclineReason is a machine-readable code for a declined operation.
type DeclineReason string

const (
	ReasonUserNotFound      DeclineReason = "USER_NOT_FOUND"
	ReasonUserInactive      DeclineReason = "USER_INACTIVE"
	ReasonBookNotFound      DeclineReason = "BOOK_NOT_FOUND"
	ReasonBookInactive      DeclineReason = "BOOK_INACTIVE"
	ReasonNoAvailableCopies DeclineReason = "NO_AVAILABLE_COPIES"
	ReasonDuplicateLoan     DeclineReason = "DUPLICATE_LOAN"
	ReasonRecordNotFound    DeclineReason = "RECORD_NOT_FOUND"
	ReasonNotOwner          DeclineReason = "NOT_OWNER"
	ReasonInvalidStatus     DeclineReason = "INVALID_STATUS"
	ReasonLoanOverdue       DeclineReason = "LOAN_OVERDUE"
	ReasonRenewalLimit      DeclineReason = "RENEWAL_LIMIT"
)

// DeclinedError is an expected business outcome, not a fault.
type DeclinedError struct {
	Reason  DeclineReason
	Message string
}

func (e *DeclinedError) Error() string {
	return fmt.Sprintf("declined (%s): %s", e.Reason, e.Message)
}

func decline(reason DeclineReason, format string, args ...any) error {
	return &DeclinedError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsDeclined reports whether err is (or wraps) a DeclinedError.
func IsDeclined(err error) bool {
	var de *DeclinedError
	return errors.As(err, &de)
}

// ReasonOf returns the decline reason carried by err, or "" if err was not a decline.
func ReasonOf(err error) DeclineReason {
	var de *DeclinedError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
