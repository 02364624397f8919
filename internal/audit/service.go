package audit

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/entities"
	"github.com/mrlokans/lending/internal/lending"
)

const (
	writeTimeout = 5 * time.Second
	maxErrorLen  = 500

	entityBorrowRecord = "borrow_record"
	entityBook         = "book"
	entityUser         = "user"
)

var _ lending.Observer = (*Service)(nil)

// Service provides high-level audit logging functionality.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.repo.LogEvent(ctx, event); err != nil {
			log.Printf("Failed to log audit event %s: %v", event.Action, err)
		}
	}()
}

// Wait blocks until every pending asynchronous write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// ObserveLending turns an engine outcome into an audit event.
func (s *Service) ObserveLending(ev lending.Event) {
	if ev.Action == lending.ActionSweep {
		s.logSweep(ev)
		return
	}

	event := &entities.AuditEvent{
		UserID:     ev.UserID,
		EntityType: entityBorrowRecord,
		Status:     entities.AuditStatusSuccess,
	}
	if ev.RecordID != 0 {
		id := ev.RecordID
		event.EntityID = &id
	}

	metadata := map[string]any{}
	if ev.BookID != 0 {
		metadata["book_id"] = ev.BookID
	}

	switch ev.Action {
	case lending.ActionBorrow:
		event.EventType = entities.AuditEventBorrow
		event.Action = "book_borrow"
		event.Description = fmt.Sprintf("Borrow of book %d", ev.BookID)
	case lending.ActionReturn:
		event.EventType = entities.AuditEventReturn
		event.Action = "book_return"
		event.Description = fmt.Sprintf("Return of record %d", ev.RecordID)
	case lending.ActionRenew:
		event.EventType = entities.AuditEventRenew
		event.Action = "loan_renew"
		event.Description = fmt.Sprintf("Renewal of record %d", ev.RecordID)
	default:
		log.Printf("Audit: ignoring unknown lending action %q", ev.Action)
		return
	}

	if rec := ev.Record; rec != nil {
		metadata["due_date"] = rec.DueDate.Format(time.RFC3339)
		metadata["renew_count"] = rec.RenewCount
		metadata["status"] = rec.Status
		if !rec.FineAmount.IsZero() {
			metadata["fine_amount"] = rec.FineAmount.StringFixed(2)
		}
	}

	applyOutcome(event, metadata, ev.Err)
	event.Metadata = encodeMetadata(metadata)
	s.LogAsync(event)
}

func (s *Service) logSweep(ev lending.Event) {
	event := &entities.AuditEvent{
		EventType:  entities.AuditEventSweep,
		Action:     "overdue_sweep",
		EntityType: entityBorrowRecord,
		Status:     entities.AuditStatusSuccess,
	}
	metadata := map[string]any{}
	if r := ev.Sweep; r != nil {
		event.Description = fmt.Sprintf("Overdue sweep: %d transitioned, %d refreshed, %d skipped",
			r.Transitioned, r.Refreshed, r.Skipped)
		metadata["run_id"] = r.RunID
		metadata["as_of"] = r.AsOf.Format(time.RFC3339)
		metadata["candidates"] = r.Candidates
		metadata["transitioned"] = r.Transitioned
		metadata["refreshed"] = r.Refreshed
		metadata["skipped"] = r.Skipped
	}
	applyOutcome(event, metadata, ev.Err)
	event.Metadata = encodeMetadata(metadata)
	s.LogAsync(event)
}

func applyOutcome(event *entities.AuditEvent, metadata map[string]any, err error) {
	if err == nil {
		return
	}
	if reason := lending.ReasonOf(err); reason != "" {
		event.Status = entities.AuditStatusDeclined
		metadata["reason"] = reason
	} else {
		event.Status = entities.AuditStatusFailed
		if errors.Is(err, lending.ErrConsistencyFault) {
			metadata["consistency_fault"] = true
		}
	}
	event.ErrorMsg = truncate(err.Error(), maxErrorLen)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(userID uint, action, ipAddr string, success bool) {
	event := &entities.AuditEvent{
		UserID:     userID,
		EventType:  entities.AuditEventAuth,
		Action:     action,
		EntityType: entityUser,
		Status:     entities.AuditStatusSuccess,
		Metadata:   encodeMetadata(map[string]any{"ip": ipAddr}),
	}
	if userID != 0 {
		id := userID
		event.EntityID = &id
	}
	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogAdmin records an administrative change to a book or user.
func (s *Service) LogAdmin(actorID uint, action, entityType string, entityID uint, description string, err error) {
	eventType := entities.AuditEventAdmin
	if entityType == entityBook {
		eventType = entities.AuditEventInventory
	}

	event := &entities.AuditEvent{
		UserID:      actorID,
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, maxErrorLen),
		EntityType:  entityType,
		EntityID:    &entityID,
		Status:      entities.AuditStatusSuccess,
	}
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), maxErrorLen)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, filter audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, filter)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func encodeMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	data, err := jsoniter.ConfigFastest.Marshal(metadata)
	if err != nil {
		log.Printf("Audit: failed to encode metadata: %v", err)
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
