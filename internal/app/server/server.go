package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"letterdesk/internal/domain/audit"
	"letterdesk/internal/domain/docgen"
	"letterdesk/internal/domain/employee"
	"letterdesk/internal/domain/esign"
	"letterdesk/internal/domain/letters"
	"letterdesk/internal/domain/notify"
	"letterdesk/internal/domain/settings"
	"letterdesk/internal/domain/templates"
	"letterdesk/internal/platform/config"
	"letterdesk/internal/platform/db"
	"letterdesk/internal/platform/email"
	"letterdesk/internal/platform/metrics"
	audithandler "letterdesk/internal/transport/http/handlers/audit"
	authhandler "letterdesk/internal/transport/http/handlers/auth"
	employeehandler "letterdesk/internal/transport/http/handlers/employees"
	esignhandler "letterdesk/internal/transport/http/handlers/esign"
	letterhandler "letterdesk/internal/transport/http/handlers/letters"
	settingshandler "letterdesk/internal/transport/http/handlers/settings"
	templatehandler "letterdesk/internal/transport/http/handlers/templates"
	"letterdesk/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
}

// New wires the application together without starting the listener, so
// tests can drive the router directly.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		migrationsDir := cfg.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = "migrations"
		}
		if err := db.Migrate(ctx, pool, migrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	collector := metrics.New()

	mail := email.New(cfg)
	settingsStore := settings.NewStore(pool)
	var smtpSettings email.Settings
	if err := settingsStore.GetInto(ctx, settings.KeySMTP, &smtpSettings); err == nil && smtpSettings.Host != "" {
		mail.Configure(smtpSettings)
	}

	employeeStore := employee.NewStore(pool)
	templateStore := templates.NewStore(pool)
	letterStore := letters.NewStore(pool)
	auditSvc := audit.New(pool)
	notifier := notify.New(mail, cfg.EmailFrom)
	registry := docgen.NewRegistry(cfg.TemplateDir)
	sessions := esign.NewRegistry(cfg.ESign.SessionTTL, cfg.ESign.SessionLimit)
	signer := esign.NewClient(cfg.ESign, sessions)

	letterSvc := letters.NewService(letterStore, templateStore, employeeStore, registry, signer, notifier, collector, cfg.GeneratedDir)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(employeeStore, notifier, auditSvc, cfg.JWTSecret).RegisterRoutes(r)
		employeehandler.NewHandler(employeeStore, auditSvc).RegisterRoutes(r)
		letterhandler.NewHandler(letterSvc, auditSvc).RegisterRoutes(r)
		templatehandler.NewHandler(templateStore, auditSvc).RegisterRoutes(r)
		settingshandler.NewHandler(settingsStore, mail, auditSvc).RegisterRoutes(r)
		esignhandler.NewHandler(signer, auditSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, collector, cfg.MetricsEnabled).RegisterRoutes(r)
	})

	router.Mount("/", spaHandler{staticPath: cfg.FrontendDir, indexPath: "index.html"})

	return &App{Config: cfg, DB: pool, Router: router}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

func Run() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	log.Printf("letterdesk server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

type spaHandler struct {
	staticPath string
	indexPath  string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.staticPath, r.URL.Path)
	_, err := os.Stat(path)
	if err == nil {
		http.FileServer(http.Dir(h.staticPath)).ServeHTTP(w, r)
		return
	}

	if os.IsNotExist(err) {
		http.ServeFile(w, r, filepath.Join(h.staticPath, h.indexPath))
		return
	}

	http.NotFound(w, r)
}
