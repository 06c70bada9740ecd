package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/strokecare/strokecare/internal/config"
	"github.com/strokecare/strokecare/internal/domain/account"
	"github.com/strokecare/strokecare/internal/domain/patient"
	"github.com/strokecare/strokecare/internal/platform/auth"
	"github.com/strokecare/strokecare/internal/platform/db"
	"github.com/strokecare/strokecare/internal/platform/docstore"
	"github.com/strokecare/strokecare/internal/platform/middleware"
	"github.com/strokecare/strokecare/internal/platform/telemetry"
	"github.com/strokecare/strokecare/internal/platform/web"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stroke-server",
		Short: "Stroke prediction patient records server",
	}

	rootCmd.AddCommand(setupCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"run"},
		Short:   "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func setupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the account store schema and the patient store indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			statusOnly, _ := cmd.Flags().GetBool("status")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			store, err := openAccountStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.close()

			if statusOnly {
				return printMigrationStatus(ctx, cmd.OutOrStdout(), store.migrator)
			}

			count, err := store.migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account store ready: applied %d migration(s).\n", count)

			docs, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Patient store not reachable, indexes not created: %v\n", err)
				fmt.Fprintln(cmd.OutOrStdout(), "Start MongoDB and run setup again before loading the dataset.")
				return nil
			}
			defer docs.Close()
			if err := docs.EnsureIndexes(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Patient store indexes ready.")
			return nil
		},
	}
	cmd.Flags().Bool("status", false, "Only show the migration status")
	return cmd
}

func printMigrationStatus(ctx context.Context, w io.Writer, m *db.Migrator) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
	return nil
}

// accountStore is the opened relational account store, SQLite or PostgreSQL.
type accountStore struct {
	users    account.UserRepository
	migrator *db.Migrator
	check    db.Check
	close    func()
}

func openAccountStore(ctx context.Context, cfg *config.Config) (*accountStore, error) {
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &accountStore{
			users:    account.NewUserRepoPG(pool),
			migrator: db.NewPostgresMigrator(pool),
			check:    db.PostgresCheck("accounts", pool),
			close:    pool.Close,
		}, nil
	}

	sqlDB, err := db.OpenSQLite(ctx, cfg.SQLiteDSN())
	if err != nil {
		return nil, err
	}
	return &accountStore{
		users:    account.NewUserRepoSQLite(sqlDB),
		migrator: db.NewSQLiteMigrator(sqlDB),
		check:    db.SQLCheck("accounts", sqlDB),
		close:    func() { sqlDB.Close() },
	}, nil
}

// revocationStore is a RevocationStore that holds resources.
type revocationStore interface {
	auth.RevocationStore
	io.Closer
}

func openRevocationStore(ctx context.Context, cfg *config.Config) (revocationStore, error) {
	if cfg.RedisURL == "" {
		return auth.NewMemoryRevocationStore(), nil
	}
	return auth.NewRedisRevocationStore(ctx, cfg.RedisURL)
}

func newLogger(cfg *config.Config) (zerolog.Logger, io.Closer, error) {
	var out io.Writer = os.Stdout
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	var closer io.Closer = io.NopCloser(nil)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
		closer = f
	}

	level := zerolog.InfoLevel
	if cfg.IsDev() {
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), closer, nil
}

// server holds everything the HTTP layer is built from.
type server struct {
	cfg         *config.Config
	logger      zerolog.Logger
	accounts    *account.Service
	patients    *patient.Service
	sessions    *auth.SessionManager
	metrics     *telemetry.Provider
	storeChecks []db.Check
}

func (s *server) echo() (*echo.Echo, error) {
	renderer, err := web.NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.HTTPErrorHandler = web.HTTPErrorHandler(s.logger)

	// Global middleware
	e.Use(middleware.Recovery(s.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(s.logger))
	e.Use(middleware.SecurityHeaders(s.cfg.IsProduction()))
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.RequestTimeout(s.cfg.RequestTimeout, "/load_dataset"))
	e.Use(echomw.CSRFWithConfig(echomw.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			return !s.cfg.CSRFEnabled || auth.IsPublicPath(c.Path())
		},
		TokenLookup:    "form:csrf_token",
		ContextKey:     web.CSRFContextKey,
		CookieName:     "_csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   s.cfg.SessionCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))
	e.Use(auth.SessionMiddleware(s.sessions, s.logger))
	e.Use(middleware.Audit(s.logger))

	// Operational endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(s.storeChecks...))
	e.GET("/metrics", s.metrics.PrometheusHandler())

	account.NewHandler(s.accounts, s.sessions, s.logger).
		RegisterRoutes(e, middleware.RateLimit(middleware.CredentialRateLimitConfig()))
	patient.NewHandler(s.patients, s.cfg.DatasetPath, s.logger).RegisterRoutes(e)

	return e, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Logger
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()

	// Account store
	accounts, err := openAccountStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open account store")
	}
	defer accounts.close()
	logger.Info().Bool("postgres", cfg.UsesPostgres()).Msg("connected to account store")

	// Patient store
	docs, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to patient store")
	}
	defer docs.Close()
	if err := docs.EnsureIndexes(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure patient store indexes")
	}
	logger.Info().Str("db", cfg.MongoDBName).Msg("connected to patient store")

	// Sessions
	revocations, err := openRevocationStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session revocation store")
	}
	defer revocations.Close()
	sessions := auth.NewSessionManager(auth.SessionConfig{
		SigningKey: []byte(cfg.SecretKey),
		Lifetime:   cfg.SessionLifetime,
		Secure:     cfg.SessionCookieSecure,
	}, revocations)

	metrics := telemetry.NewProvider()

	srv := &server{
		cfg:      cfg,
		logger:   logger,
		accounts: account.NewService(accounts.users, metrics, logger),
		patients: patient.NewService(patient.NewPatientRepoMongo(docs), metrics, logger),
		sessions: sessions,
		metrics:  metrics,
		storeChecks: []db.Check{
			accounts.check,
			{Name: "patients", Ping: docs.Ping},
		},
	}
	e, err := srv.echo()
	if err != nil {
		return err
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
