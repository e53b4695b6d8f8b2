package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/amp/internal/auth"
	"github.com/hitoshi/amp/internal/config"
	"github.com/hitoshi/amp/internal/database"
	"github.com/hitoshi/amp/internal/handler"
	"github.com/hitoshi/amp/internal/logger"
	"github.com/hitoshi/amp/internal/metrics"
	"github.com/hitoshi/amp/internal/repository"
	"github.com/hitoshi/amp/internal/security"
	"github.com/hitoshi/amp/internal/token"
	"github.com/hitoshi/amp/internal/worker/cleanup"
)

// Init installs the JSON logger and loads Config from the environment.
// Logs go to w, or os.Stdout when w is nil.
func Init(w io.Writer) (*config.Config, error) {
	// Logging first so config errors are reported as JSON.
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	logger.SetupDefaultWithLevel(w, level)

	return cfg, nil
}

// Run is the process entry point. args is os.Args[1:].
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck skips full initialization.
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// newAuthService wires the credential store, password hasher and token issuer.
func newAuthService(cfg *config.Config, userRepo repository.UserRepository, rec auth.MetricsRecorder) (*auth.Service, error) {
	issuer, err := token.NewIssuer(
		token.KeyConfig{Secret: []byte(cfg.JWTAccessSecret), TTL: cfg.AccessTTL()},
		token.KeyConfig{Secret: []byte(cfg.JWTRefreshSecret), TTL: cfg.RefreshTTL()},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build token issuer: %w", err)
	}

	hasher := security.NewPasswordHasher(cfg.BcryptRounds)
	if hasher.Cost() != cfg.BcryptRounds {
		slog.Warn("BCRYPT_ROUNDS out of range, clamped",
			slog.Int("requested", cfg.BcryptRounds),
			slog.Int("effective", hasher.Cost()),
		)
	}

	return auth.NewService(userRepo, hasher, issuer, rec), nil
}

// runServe starts the API server and shuts it down gracefully on SIGINT or SIGTERM.
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	userRepo := repository.NewPostgresUserRepo(db)
	authService, err := newAuthService(cfg, userRepo, collector)
	if err != nil {
		return err
	}

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Logger:            slog.Default(),
		StatusRecorder:    collector,
		HealthChecker:     db,
		MetricsGatherer:   reg,
		AuthService:       authService,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker runs the refresh-token sweep until SIGINT or SIGTERM.
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	sweep := cleanup.NewRefreshTokenSweep(db, slog.Default(), collector)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker metrics listen error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(ctx)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.RefreshSweepInterval),
		slog.String("metrics_addr", metricsServer.Addr),
	)

	sweep.Start(ctx, cfg.RefreshSweepInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate applies every pending migration.
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck probes /health on the local server, for container health checks
// in images without a shell.
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL hides the credentials in a database URL.
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
