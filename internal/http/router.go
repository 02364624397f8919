package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/entities"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(auth.SecurityHeadersMiddleware())

	enforced := false
	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
		enforced = cfg.AuthMiddleware.Enforced()
	} else {
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyUserID, auth.DefaultUserID)
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	admin := requireAdmin(cfg.AuthMiddleware)

	health := NewHealthController(cfg.DB, cfg.TasksDB, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", Ping)

	api := router.Group("/api")

	// Token endpoints only make sense when tokens are checked
	if cfg.AuthService != nil && cfg.AuthService.IsAuthEnabled() {
		tokens := NewTokenController(cfg.AuthService, cfg.LoginLimiter, cfg.Auditor)
		api.POST("/auth/token", tokens.Issue)
		api.DELETE("/auth/token", tokens.Revoke)
	}

	loans := NewLoansController(cfg.Lender, cfg.Loans, cfg.Sweeper, enforced)
	api.POST("/loans", loans.Borrow)
	api.GET("/loans/mine", loans.Mine)
	api.POST("/loans/:id/return", loans.Return)
	api.POST("/loans/:id/renew", loans.Renew)
	api.GET("/loans", admin, loans.List)
	api.GET("/loans/overdue", admin, loans.Overdue)
	api.POST("/loans/sweep", admin, loans.Sweep)

	books := NewBooksController(cfg.Books, cfg.Auditor)
	api.GET("/books", books.List)
	api.GET("/books/:id", books.Get)
	api.POST("/books", admin, books.Create)
	api.PATCH("/books/:id/copies", admin, books.SetCopies)
	api.PATCH("/books/:id/status", admin, books.SetStatus)

	if cfg.AuthService != nil {
		users := NewUsersController(cfg.AuthService, cfg.Users, cfg.Auditor)
		api.POST("/users", admin, users.Create)
		api.GET("/users/:id", users.Get)
		api.PATCH("/users/:id/status", admin, users.SetStatus)
	}

	if cfg.Reports != nil {
		reports := NewReportsController(cfg.Reports)
		api.GET("/reports/overview", admin, reports.Overview)
		api.GET("/reports/popular-books", reports.PopularBooks)
		api.GET("/reports/due-soon", admin, reports.DueSoon)
	}

	if cfg.AuditReader != nil {
		audit := NewAuditController(cfg.AuditReader)
		api.GET("/audit", admin, audit.List)
	}

	if cfg.TaskQueue != nil {
		tasks := NewTasksController(cfg.TaskQueue, cfg.AuditRetentionDays)
		api.GET("/tasks/types", admin, tasks.ListTaskTypes)
		api.GET("/tasks/:id", admin, tasks.GetTaskStatus)
		api.POST("/tasks/:type/run", admin, tasks.RunTask)
	}

	return router
}

func requireAdmin(m *auth.Middleware) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return m.RequireRole(entities.UserRoleAdmin)
}
