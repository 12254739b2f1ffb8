package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/frozoai/escalatesafe/internal/application"
	appruns "github.com/frozoai/escalatesafe/internal/application/runs"
	"github.com/frozoai/escalatesafe/internal/config"
	auditdom "github.com/frozoai/escalatesafe/internal/domain/audit"
	exportsdom "github.com/frozoai/escalatesafe/internal/domain/exports"
	domain "github.com/frozoai/escalatesafe/internal/domain/runs"
	mysqlp "github.com/frozoai/escalatesafe/internal/infra/db/mysql"
	postgresp "github.com/frozoai/escalatesafe/internal/infra/db/postgres"
	"github.com/frozoai/escalatesafe/internal/infra/httpserver"
	"github.com/frozoai/escalatesafe/internal/infra/notify/slack"
	minioStore "github.com/frozoai/escalatesafe/internal/infra/storage"
	"github.com/frozoai/escalatesafe/internal/infra/ticket/zendesk"
	"github.com/frozoai/escalatesafe/internal/infra/tracker/jira"
	"github.com/frozoai/escalatesafe/internal/middleware"
	"github.com/frozoai/escalatesafe/internal/redaction"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()

	// connect database (mysql or postgres, same schema)
	var (
		db         *sql.DB
		runRepo    domain.Repository
		configRepo httpserver.RedactionConfigStore
		exportRepo exportsdom.Repository
		auditRepo  auditdom.Repository
	)
	switch cfg.Database.Driver {
	case "mysql":
		db, err = mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		runRepo = mysqlp.NewRunRepository(db)
		configRepo = mysqlp.NewConfigRepository(db)
		exportRepo = mysqlp.NewExportRepository(db)
		auditRepo = mysqlp.NewAuditRepository(db)
	case "postgres":
		db, err = postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		runRepo = postgresp.NewRunRepository(db)
		configRepo = postgresp.NewConfigRepository(db)
		exportRepo = postgresp.NewExportRepository(db)
		auditRepo = postgresp.NewAuditRepository(db)
	default:
		log.Fatalf("unsupported database driver: %s", cfg.Database.Driver)
	}
	defer db.Close()

	// init artifact store (optional)
	var artifacts domain.ArtifactStore
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		artifacts = store
	}

	// init notifier (optional)
	var notifier domain.NotifySink
	if cfg.Slack.WebhookURL != "" {
		if err := middleware.ValidateWebhookURL(cfg.Slack.WebhookURL); err != nil {
			log.Fatalf("slack webhook config error: %v", err)
		}
		notifier = slack.NewWebhook(cfg.Slack.WebhookURL)
	}

	if err := middleware.ValidateProjectKey(cfg.Jira.ProjectKey); err != nil {
		log.Fatalf("jira config error: %v", err)
	}

	// init service
	svc := &appruns.Service{
		Repo:      runRepo,
		Tickets:   zendesk.NewClient(cfg.Zendesk.Email, cfg.Zendesk.APIToken),
		Tracker:   jira.NewClient(cfg.Jira.ServerURL, cfg.Jira.Email, cfg.Jira.APIToken, cfg.Jira.ProjectKey),
		Notifier:  notifier,
		Artifacts: artifacts,
		Config:    configRepo,
		Exports:   exportRepo,
		Audit:     auditRepo,
		Detector:  redaction.NewDetector(redaction.DefaultRegistry()),
		Redactor:  redaction.NewRedactor(),
		Clock:     application.SystemClock{},
	}

	// init router + middleware chain
	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(limiter))

	mux.Get("/ready", middleware.HealthHandler(&middleware.DatabaseHealthChecker{DB: db}))
	mux.Get("/live", middleware.LivenessHandler())
	mux.Mount("/", httpserver.NewRouter(svc, configRepo, exportRepo, auditRepo))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
