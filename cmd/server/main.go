/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the Artsia HR portal server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Configure the global zerolog logger
  3. Open the SQLite store and ensure the bootstrap admin exists
  4. Build push/email senders when configured
  5. Wire the notify, absence and auth services
  6. Configure the HTTP router and the maintenance scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides ARTSIA_PORT)
  -db      SQLite database path (overrides ARTSIA_DB_PATH)
           Use ":memory:" for in-memory database
  -env     dotenv file to load (default: .env)
  -seed    Load demo employees and absences into an empty database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/artsia.db"

  # Run in memory with demo data
  ./server -db=":memory:" -seed

ENVIRONMENT:
  See config/config.go for the ARTSIA_* variables.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/api"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/calendar"
	"github.com/artsia/hr-portal/config"
	"github.com/artsia/hr-portal/logging"
	"github.com/artsia/hr-portal/metrics"
	"github.com/artsia/hr-portal/notify"
	"github.com/artsia/hr-portal/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	envFile := flag.String("env", ".env", "dotenv file")
	seed := flag.Bool("seed", false, "load demo data into an empty database")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg, *seed, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg config.Config, seed bool, logger zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Notification transports
	notifyDeps := notify.Deps{Store: store, Logger: &logger, Metrics: m}
	pushCfg := notify.WebPushConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
		Timeout:    cfg.PushTimeout,
	}
	if cfg.PushEnabled() {
		notifyDeps.Sender = notify.NewWebPush(pushCfg)
	} else {
		logger.Warn().Msg("VAPID keys not configured, push delivery disabled")
	}
	if cfg.EmailEnabled() {
		mailer, err := newSESMailer(ctx, cfg)
		if err != nil {
			return err
		}
		notifyDeps.Mailer = mailer
	}
	notifier := notify.NewService(notifyDeps)

	// Domain services
	cal := calendar.NewItalian()
	absences := absence.NewService(absence.Deps{
		Store:    store,
		Notifier: notifier,
		Calendar: cal,
		Logger:   &logger,
		Metrics:  m,
	})
	authSvc := auth.NewService(store, cfg.SessionTTL)

	if err := ensureAdmin(ctx, store, authSvc, cfg, logger); err != nil {
		return err
	}

	// Initialize handler
	handler := api.NewHandler(store, absences, authSvc, notifier, cal)
	handler.VAPIDPublicKey = cfg.VAPIDPublicKey

	if seed {
		loaded, err := handler.Seed(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed demo data: %w", err)
		}
		if loaded {
			logger.Info().Str("password", api.DemoPassword).Msg("demo data loaded")
		}
	}

	// Start maintenance scheduler
	scheduler := api.NewMaintenanceScheduler(store)
	scheduler.CheckInterval = cfg.MaintenanceInterval
	scheduler.PushRetention = cfg.PushRetention
	scheduler.Logger = logger.With().Str("component", "scheduler").Logger()
	scheduler.Start()
	defer scheduler.Stop()

	// Setup router
	router := api.NewRouter(handler, api.RouterConfig{
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     m,
	})

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewServerHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
		close(done)
	}()

	logger.Info().Int("port", cfg.Port).Str("db", cfg.DBPath).Msg("Artsia HR server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	<-done
	logger.Info().Msg("server stopped")
	return nil
}

// newSESMailer builds the SES client from the default AWS credential chain.
// AWSEndpoint points it at LocalStack in development.
func newSESMailer(ctx context.Context, cfg config.Config) (*notify.SESMailer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := ses.NewFromConfig(awsCfg, func(o *ses.Options) {
		if cfg.AWSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpoint)
		}
	})
	return notify.NewSESMailer(client, cfg.EmailSender), nil
}

// ensureAdmin creates the bootstrap admin when ARTSIA_ADMIN_EMAIL is set and
// no employee has that email yet.
func ensureAdmin(ctx context.Context, store *sqlite.Store, authSvc *auth.Service, cfg config.Config, logger zerolog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	existing, err := store.GetEmployeeByEmail(ctx, cfg.AdminEmail)
	if err != nil {
		return fmt.Errorf("failed to look up admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := authSvc.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	admin, err := store.CreateEmployee(ctx, absence.Employee{
		Name:         cfg.AdminName,
		Email:        cfg.AdminEmail,
		Team:         absence.TeamAmministrazione,
		Role:         absence.RoleAdmin,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	logger.Info().Int64("employee_id", admin.ID).Str("email", admin.Email).Msg("bootstrap admin created")
	return nil
}
