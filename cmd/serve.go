package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/secondvote/trends/internal/adapters/http/api"
	"github.com/secondvote/trends/internal/adapters/http/swagger"
	"github.com/secondvote/trends/internal/adapters/repository"
	service "github.com/secondvote/trends/internal/app"
	"github.com/secondvote/trends/internal/config"
	"github.com/secondvote/trends/internal/domain/dataset"
	"github.com/secondvote/trends/pkg/logger"
	"github.com/secondvote/trends/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

type serveFlags struct {
	addr        string
	logLevel    string
	databaseURL string
	open        bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(ctx, cmd, f)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg, f.open)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "HTTP listen address (overrides addr)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides log_level)")
	cmd.Flags().StringVar(&f.databaseURL, "database-url", "", "store DSN (overrides database_url)")
	cmd.Flags().BoolVar(&f.open, "open", false, "open the API docs in a browser once listening")
	return cmd
}

// loadConfig layers the command flags over the loaded configuration.
func loadConfig(ctx context.Context, cmd *cobra.Command, f serveFlags) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = f.addr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runServe blocks until ctx is cancelled or the listener fails.
func runServe(ctx context.Context, cfg *config.Config, open bool) error {
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithFile(cfg.LogFile)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	log.Info(ctx, "secondvote trends starting",
		logger.String("version", Version),
		logger.String("commit", Commit),
		logger.String("buildDate", BuildDate))

	svc, db, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				log.Error(ctx, "failed to close store", logger.Error(err))
			}
		}()
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if open {
		docs := docsURL(cfg.Addr)
		if err := browser.OpenURL(docs); err != nil {
			log.Warn(ctx, "failed to open browser", logger.String("url", docs), logger.Error(err))
		}
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildService wires the store, loader and service from cfg. Without a
// database URL the service runs with no loader and the returned db is nil.
// An unreachable store is logged, not fatal: reloads report it per request.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, *sql.DB, error) {
	opts := []service.Option{
		service.WithLogger(log.Named("service")),
		service.WithMaxSessions(cfg.MaxSessions),
		service.WithIdleTTL(cfg.SessionIdleTTL()),
		service.WithSweepInterval(cfg.SweepInterval()),
	}
	if cfg.DatabaseURL == "" {
		log.Warn(ctx, "no database_url configured; reloads will report the store as unavailable")
		return service.New(opts...), nil, nil
	}

	db, err := repository.Open(repository.DBConfig{
		Driver:       cfg.DatabaseDriver,
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	if err := repository.Ping(ctx, db, cfg.ConnectTimeout()); err != nil {
		log.Warn(ctx, "store not reachable at startup", logger.String("driver", cfg.DatabaseDriver), logger.Error(err))
	}

	store := repository.NewSQLStore(db, repository.WithQueryTimeout(cfg.QueryTimeout()))
	loader := dataset.NewLoader(store, dataset.WithLogger(log.Named("dataset")))
	return service.New(append(opts, service.WithLoader(loader))...), db, nil
}

// newMux registers the documentation and API routes.
func newMux(ctx context.Context, svc *service.Service) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, api.WithLogger(logger.Get().Named("http"))).Register(ctx, mux)
	return mux
}

// docsURL turns a listen address into a local URL for the API docs.
func docsURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/api-docs"
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
