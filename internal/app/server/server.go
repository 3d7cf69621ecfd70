package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"payrun/internal/domain/audit"
	"payrun/internal/domain/auth"
	"payrun/internal/domain/compensation"
	"payrun/internal/domain/ledger"
	"payrun/internal/domain/notifications"
	"payrun/internal/domain/payperiod"
	"payrun/internal/domain/payroll"
	"payrun/internal/domain/tax"
	"payrun/internal/platform/config"
	cryptoutil "payrun/internal/platform/crypto"
	"payrun/internal/platform/db"
	"payrun/internal/platform/email"
	"payrun/internal/platform/jobs"
	"payrun/internal/platform/metrics"
	adminhandler "payrun/internal/transport/http/handlers/admin"
	audithandler "payrun/internal/transport/http/handlers/audit"
	authhandler "payrun/internal/transport/http/handlers/auth"
	compensationhandler "payrun/internal/transport/http/handlers/compensation"
	ledgerhandler "payrun/internal/transport/http/handlers/ledger"
	notificationshandler "payrun/internal/transport/http/handlers/notifications"
	payperiodhandler "payrun/internal/transport/http/handlers/payperiod"
	payrollhandler "payrun/internal/transport/http/handlers/payroll"
	taxhandler "payrun/internal/transport/http/handlers/tax"
	"payrun/internal/transport/http/middleware"
)

// App holds everything a running server needs. Tests build one directly
// against a scratch database and drive the router without a listener.
type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	cryptoSvc, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	mailer := email.New(cfg)
	collector := metrics.New()

	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore)
	auditService := audit.New(pool)
	notifyService := notifications.New(notifications.NewStore(pool), mailer)
	periodStore := payperiod.NewStore(pool)
	periodService := payperiod.NewService(periodStore)
	compStore := compensation.NewStore(pool, cryptoSvc)
	compService := compensation.NewService(compStore, cfg.DefaultCurrency)
	taxStore := tax.NewStore(pool)
	taxService := tax.NewService(taxStore)
	ledgerStore := ledger.NewStore(pool)
	idemStore := middleware.NewIdempotencyStore(pool)

	runStore := payroll.NewStore(pool)
	runService := payroll.NewService(
		runStore,
		periodStore,
		compStore,
		taxStore,
		authStore,
		notifyService,
		collector,
		payroll.AnomalyPolicy{NetDeltaThresholdPct: decimal.NewFromInt(int64(cfg.NetDeltaThresholdPct))},
		cfg.CalcStaleAfter,
		cfg.DefaultCurrency,
	)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))
	if cfg.MetricsEnabled {
		router.Use(middleware.Metrics(collector))
	}
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
		authHandler := authhandler.NewHandler(authService, cfg.JWTSecret, cryptoSvc, mailer, cfg.EmailFrom, cfg.FrontendBaseURL, cfg.PasswordResetTTL, auditService)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)
		r.Post("/auth/refresh", authHandler.HandleRefresh)
		r.Post("/auth/request-reset", authHandler.HandleRequestReset)
		r.Post("/auth/reset", authHandler.HandleResetPassword)
		r.Post("/auth/mfa/setup", authHandler.HandleMFASetup)
		r.Post("/auth/mfa/enable", authHandler.HandleMFAEnable)
		r.Post("/auth/mfa/disable", authHandler.HandleMFADisable)

		payperiodhandler.NewHandler(periodService, authStore, auditService).RegisterRoutes(r)
		compensationhandler.NewHandler(compService, authStore, auditService).RegisterRoutes(r)
		taxhandler.NewHandler(taxService, authStore, auditService).RegisterRoutes(r)
		payrollhandler.NewHandler(runService, ledgerStore, authStore, idemStore, auditService).RegisterRoutes(r)
		ledgerhandler.NewHandler(ledgerStore, authStore).RegisterRoutes(r)
		audithandler.NewHandler(auditService, authStore).RegisterRoutes(r)
		notificationshandler.NewHandler(notifyService, authStore).RegisterRoutes(r)
		adminhandler.NewHandler(collector, authStore).RegisterRoutes(r)
	})

	app := &App{
		Config:  cfg,
		DB:      pool,
		Router:  router,
		Metrics: collector,
	}

	if cfg.JobsEnabled {
		app.Jobs = jobs.New(pool, cfg)
		app.Jobs.Start(ctx)
	}

	return app, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run builds the app from the environment and serves until the process exits.
func Run() {
	cfg := config.Load()
	ctx := context.Background()

	app, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		return
	}
	defer app.Close()

	slog.Info("payroll engine listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		slog.Error("server failed", "err", err)
	}
}
