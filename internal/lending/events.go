package lending

import (
	"github.com/mrlokans/lending/internal/entities"
)

type Action string

const (
	ActionBorrow Action = "borrow"
	ActionReturn Action = "return"
	ActionRenew  Action = "renew"
	ActionSweep  Action = "sweep"
)

// Event describes the outcome of one Engine operation.
type Event struct {
	Action   Action
	UserID   uint
	BookID   uint
	RecordID uint
	Record   *entities.BorrowRecord // nil when the operation failed
	Sweep    *SweepResult           // only for ActionSweep
	Err      error
}

// Observer receives an Event after every operation, outside the transaction.
type Observer interface {
	ObserveLending(Event)
}

type nopObserver struct{}

func (nopObserver) ObserveLending(Event) {}
