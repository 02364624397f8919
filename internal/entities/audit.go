package entities

import "time"

type AuditEventType string

const (
	AuditEventBorrow    AuditEventType = "borrow"
	AuditEventReturn    AuditEventType = "return"
	AuditEventRenew     AuditEventType = "renew"
	AuditEventSweep     AuditEventType = "sweep"
	AuditEventInventory AuditEventType = "inventory"
	AuditEventAuth      AuditEventType = "auth"
	AuditEventAdmin     AuditEventType = "admin"
)

type AuditStatus string

const (
	AuditStatusSuccess  AuditStatus = "success"
	AuditStatusDeclined AuditStatus = "declined"
	AuditStatusFailed   AuditStatus = "failed"
)

type AuditEvent struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	EventType   AuditEventType `gorm:"index;size:50" json:"event_type"`
	Action      string         `gorm:"size:100" json:"action"` // e.g. "book_borrow", "overdue_sweep"
	Description string         `gorm:"size:500" json:"description"`
	EntityType  string         `gorm:"size:50" json:"entity_type"` // "borrow_record", "book", "user"
	EntityID    *uint          `gorm:"index" json:"entity_id,omitempty"`
	Metadata    string         `gorm:"type:text" json:"metadata,omitempty"` // JSON for extra data
	Status      AuditStatus    `gorm:"size:20" json:"status"`
	ErrorMsg    string         `gorm:"size:500" json:"error_msg,omitempty"`
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}
