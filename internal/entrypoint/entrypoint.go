package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/auth"
	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database"
	auditrepo "github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	http_controllers "github.com/mrlokans/lending/internal/http"
	"github.com/mrlokans/lending/internal/lending"
	"github.com/mrlokans/lending/internal/reports"
	"github.com/mrlokans/lending/internal/scheduler"
	"github.com/mrlokans/lending/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// SIGKILL cannot be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests before the background workers go away.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting lending service v%s", version)

	policy, err := cfg.Lending.Policy()
	if err != nil {
		log.Fatalf("Invalid lending policy: %v", err)
	}
	log.Printf("Lending policy: %d day loans, %d renewals, %s per overdue day",
		policy.LoanPeriodDays, policy.MaxRenewals, policy.FinePerDay.StringFixed(2))

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	sqlDB, err := db.SQLDB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB: %v", err)
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Wait()

	engine, err := lending.NewEngine(db, policy,
		lending.WithObserver(auditService),
		lending.WithOperationTimeout(cfg.Lending.OperationTimeout),
	)
	if err != nil {
		log.Fatalf("Failed to initialize lending engine: %v", err)
	}

	userRepo := users.NewRepository(db.DB)
	authService := auth.NewService(userRepo, cfg.Auth)
	authMiddleware := auth.NewMiddleware(authService, cfg.Auth)

	var loginLimiter *auth.LoginLimiter
	if cfg.Auth.Mode == config.AuthModeToken {
		log.Printf("Authentication mode: token")
		loginLimiter = auth.NewLoginLimiter(auth.DefaultLimiterConfig())

		hasUsers, err := userRepo.HasUsers(context.Background())
		if err != nil {
			log.Printf("WARNING: could not check for existing users: %v", err)
		} else if !hasUsers {
			log.Printf("No users found. Run '%s create-user -role admin' to bootstrap an administrator.", os.Args[0])
		}
	} else {
		log.Printf("Authentication mode: none (callers identify themselves by user_id)")
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.RegisterMaintenance(engine, auditService)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	var schedOpts []scheduler.Option
	if taskClient != nil {
		schedOpts = append(schedOpts, scheduler.WithQueue(taskClient))
	}
	maintenance := scheduler.NewMaintenanceScheduler(engine, auditService,
		scheduler.ConfigFrom(cfg.Sweep, cfg.Audit), schedOpts...)
	if err := maintenance.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start maintenance scheduler: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Lender:             engine,
		Loans:              loans.NewRepository(db.DB),
		Books:              books.NewRepository(db.DB),
		Users:              userRepo,
		Reports:            reports.NewReporter(sqlDB),
		AuthService:        authService,
		AuthMiddleware:     authMiddleware,
		LoginLimiter:       loginLimiter,
		AuditReader:        auditService,
		Auditor:            auditService,
		Sweeper:            maintenance,
		AuditRetentionDays: cfg.Audit.RetentionDays,
		DB:                 sqlDB,
		Version:            version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
		routerCfg.TasksDB = taskClient.DB()
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		maintenance.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
