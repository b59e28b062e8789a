// Command dutyleak is the DutyLeak server binary.
//
// Subcommands:
//
//	serve    — HTTP server + embedded worker pool (default for production)
//	worker   — standalone worker pool only (scaled deployments)
//	migrate  — run pending database migrations and exit
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	// Embeds the IANA timezone database in the binary so that
	// time.LoadLocation works inside distroless containers that have no
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/Milo6x/dutyleak/internal/api"
	"github.com/Milo6x/dutyleak/internal/classify"
	"github.com/Milo6x/dutyleak/internal/config"
	"github.com/Milo6x/dutyleak/internal/customs"
	"github.com/Milo6x/dutyleak/internal/notify"
	"github.com/Milo6x/dutyleak/internal/store"
	"github.com/Milo6x/dutyleak/internal/worker"
	"github.com/Milo6x/dutyleak/migrations"
)

func main() {
	root := &cobra.Command{
		Use:   "dutyleak",
		Short: "DutyLeak — import duty optimization and landed cost",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and embedded worker pool",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := newPool(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st := store.New(db)

	// Embedded worker pool. Runs until ctx is cancelled, at which point
	// in-flight jobs complete and the goroutines exit. Fire-and-forget: the
	// pool drains on ctx cancellation, before or alongside HTTP shutdown.
	pool, err := newWorkerPool(st, cfg)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	go pool.Start(ctx) //nolint:contextcheck // ctx is the process-lifetime context
	go scheduleRateRefresh(ctx, st, cfg.DutyRateTTL)

	srvImpl, err := api.NewServer(st, cfg)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	// Explicit timeouts to prevent Slowloris attacks. WriteTimeout omitted:
	// batch imports may legitimately take longer than a fixed write window.
	srv := &http.Server{ //nolint:exhaustruct
		Addr:              cfg.ListenAddr,
		Handler:           srvImpl.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server started", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		stop() // release signal notification
	}

	slog.Info("shutting down", "timeout_seconds", cfg.ShutdownTimeoutSeconds)
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// ── worker ────────────────────────────────────────────────────────────────────

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Start the standalone worker pool (no HTTP server)",
		RunE:  runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	db, err := newPool(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st := store.New(db)
	pool, err := newWorkerPool(st, cfg)
	if err != nil {
		return fmt.Errorf("worker pool: %w", err)
	}
	go scheduleRateRefresh(ctx, st, cfg.DutyRateTTL)

	slog.Info("worker started")
	pool.Start(ctx) // blocks until ctx cancelled, then drains in-flight jobs
	return nil
}

// newWorkerPool builds the pool with all queue handlers registered.
func newWorkerPool(st *store.Store, cfg *config.Config) (*worker.Pool, error) {
	primary := classify.NewProvider(nil, cfg.ClassifierBaseURL, cfg.ClassifierAPIKey, cfg.ClassifierModel)
	var fallback *classify.Provider
	if cfg.FallbackBaseURL != "" {
		fallback = classify.NewProvider(nil, cfg.FallbackBaseURL, cfg.FallbackAPIKey, cfg.FallbackModel)
	}
	classifier := classify.NewEngine(primary, fallback, cfg.ClassifierMinConfidence)
	tariff := customs.New(nil, cfg.TariffAPIBaseURL, cfg.TariffAPIKey)
	smtp := notify.SmtpConfig{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort, From: cfg.SMTPFrom,
		Username: cfg.SMTPUsername, Password: cfg.SMTPPassword, TLS: cfg.SMTPTLS,
	}
	webhookClient, err := notify.BuildSafeClient()
	if err != nil {
		return nil, fmt.Errorf("webhook client: %w", err)
	}

	pool := worker.New(st)
	pool.Register(store.QueueClassifyBatch,
		worker.NewClassifyBatchHandler(st, classifier, smtp, webhookClient, cfg.BatchMaxProducts))
	pool.Register(store.QueueRefreshRates,
		worker.NewRefreshRatesHandler(st, tariff, cfg.DutyRateTTL))
	return pool, nil
}

// scheduleRateRefresh periodically enqueues a refresh_rates job. The job's
// lock key keeps concurrent refreshes from running even when several
// instances schedule at once.
func scheduleRateRefresh(ctx context.Context, st *store.Store, rateTTL time.Duration) {
	interval := rateTTL / 4
	if interval < time.Hour {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lockKey := store.QueueRefreshRates
			if _, err := st.EnqueueJob(ctx, store.QueueRefreshRates, 0,
				json.RawMessage(`{}`), &lockKey, 3, nil); err != nil {
				slog.Error("enqueue rate refresh", "error", err)
			}
		}
	}
}

// ── migrate ───────────────────────────────────────────────────────────────────

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations and exit",
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.Info("running migrations")

	// Source: embedded SQL files from the migrations package.
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}

	// golang-migrate requires a *sql.DB. Use pgx's stdlib adapter so the same
	// driver is used project-wide. No pooling needed here — this is a one-shot
	// migration run.
	connCfg, err := pgx.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse db url: %w", err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close() //nolint:errcheck

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, _, _ := m.Version() //nolint:errcheck
	slog.Info("migrations complete", "version", version)
	return nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newPool creates and validates a pgxpool: PgBouncer compatibility, statement
// timeout, and pool sizing from config.
//
// Retries up to 10 times with linear backoff to handle the container startup
// race where Postgres is not immediately ready.
func newPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// PgBouncer transaction-pooling compatibility.
	if cfg.DBQueryExecMode == "simple_protocol" {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	// Global per-query statement timeout prevents runaway queries from holding
	// connections indefinitely.
	poolCfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.Itoa(cfg.DBStatementTimeoutMS)

	// Pool sizing: DB_MAX_CONNS × instances must stay under the server's
	// max_connections with headroom.
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MaxConnIdleTime = cfg.DBMaxConnIdleTime

	var (
		db      *pgxpool.Pool
		connErr error
	)
	for attempt := 1; attempt <= 10; attempt++ {
		db, connErr = pgxpool.NewWithConfig(ctx, poolCfg)
		if connErr == nil {
			if connErr = db.Ping(ctx); connErr == nil {
				break
			}
			db.Close()
		}
		slog.Warn("database not ready, retrying",
			"attempt", attempt,
			"error", connErr,
		)
		// time.NewTimer (not time.After) to avoid leaking the timer if ctx
		// is cancelled before the timer fires.
		timer := time.NewTimer(time.Duration(attempt) * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if connErr != nil {
		return nil, fmt.Errorf("database unavailable after retries: %w", connErr)
	}

	// Warn if DB_MAX_CONNS is dangerously close to the server-side
	// max_connections limit shared by all instances.
	var pgMaxConnsStr string
	if err := db.QueryRow(ctx, "SHOW max_connections").Scan(&pgMaxConnsStr); err == nil {
		if pgMaxConns, err := strconv.Atoi(pgMaxConnsStr); err == nil {
			if int(cfg.DBMaxConns) > int(float64(pgMaxConns)*0.8) {
				slog.Warn("DB_MAX_CONNS exceeds 80% of Postgres max_connections",
					"db_max_conns", cfg.DBMaxConns,
					"postgres_max_connections", pgMaxConns,
				)
			}
		}
	}

	// Advisory schema version check: warn when the applied schema version does
	// not match what this binary was compiled for, which usually means
	// `dutyleak migrate` has not been run.
	var schemaVersion int
	err = db.QueryRow(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&schemaVersion)
	if err == nil && schemaVersion != expectedSchemaVersion {
		slog.Warn("schema version mismatch — run `dutyleak migrate`",
			"applied_version", schemaVersion,
			"expected_version", expectedSchemaVersion,
		)
	}

	return db, nil
}

// expectedSchemaVersion is the database migration version this binary requires.
// Update this constant when new migrations are added.
const expectedSchemaVersion = 4

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
