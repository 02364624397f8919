package http

import (
	"database/sql"

	"github.com/mrlokans/lending/internal/auth"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. Optional dependencies left nil disable
// their routes.
type RouterConfig struct {
	// Core dependencies
	Lender  Lender
	Loans   LoanReader
	Books   BookStore
	Users   UserStore
	Reports ReportSource

	// Authentication
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	LoginLimiter   *auth.LoginLimiter

	// Audit trail (optional)
	AuditReader AuditReader
	Auditor     AdminAuditor

	// Maintenance (optional)
	Sweeper            SweepTrigger
	TaskQueue          TaskQueue
	AuditRetentionDays int

	// Health checks
	DB      *sql.DB
	TasksDB *sql.DB

	// Application info
	Version string
}
