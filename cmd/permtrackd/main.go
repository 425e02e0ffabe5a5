package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/permtrackhq/permtrack/internal/app"
	"github.com/permtrackhq/permtrack/internal/app/schedule"
	"github.com/permtrackhq/permtrack/internal/database"
	"github.com/permtrackhq/permtrack/internal/monitoring"
	"github.com/permtrackhq/permtrack/internal/notify"
	"github.com/permtrackhq/permtrack/internal/services"
	"github.com/permtrackhq/permtrack/pkg/logger"
	"github.com/permtrackhq/permtrack/pkg/mail"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("permtrackd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	var once bool
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.BoolVar(&once, "once", false, "Run all jobs once and exit instead of scheduling")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel, cfg.Server.LogEncoding); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return fmt.Errorf("initialise mailer: %w", err)
	}

	push, err := notify.NewPushClient(cfg.Push.PushClientConfig())
	if err != nil {
		return fmt.Errorf("initialise push client: %w", err)
	}
	if push != nil {
		log.Info("web push enabled", zap.String("subscriber", cfg.Push.Subscriber))
	}

	caseSvc, err := services.NewCaseService(db)
	if err != nil {
		return fmt.Errorf("initialise case service: %w", err)
	}
	prefSvc, err := services.NewPreferenceService(db)
	if err != nil {
		return fmt.Errorf("initialise preference service: %w", err)
	}
	notificationSvc, err := services.NewNotificationService(db)
	if err != nil {
		return fmt.Errorf("initialise notification service: %w", err)
	}
	dispatcher, err := services.NewDispatcher(db, notificationSvc, mailer, push)
	if err != nil {
		return fmt.Errorf("initialise dispatcher: %w", err)
	}
	reminderSvc, err := services.NewReminderService(caseSvc, prefSvc, notificationSvc, dispatcher)
	if err != nil {
		return fmt.Errorf("initialise reminder service: %w", err)
	}
	digestSvc, err := services.NewDigestService(caseSvc, prefSvc, mailer)
	if err != nil {
		return fmt.Errorf("initialise digest service: %w", err)
	}

	runner := schedule.NewRunner(reminderSvc, digestSvc, notificationSvc,
		schedule.WithReminderSchedule(cfg.Schedule.Reminders),
		schedule.WithDigestSchedule(cfg.Schedule.Digest),
		schedule.WithRetentionSchedule(cfg.Schedule.Retention),
		schedule.WithRetention(cfg.Retention.Days, cfg.Retention.BatchSize),
	)

	if once {
		return runner.RunOnce(ctx)
	}

	if err := runner.Start(); err != nil {
		return fmt.Errorf("start scheduled jobs: %w", err)
	}
	defer func() {
		<-runner.Stop().Done()
	}()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: monitoring.NewRouter(db),
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("monitoring server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("monitoring server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("monitoring server error: %w", err)
	}

	log.Info("engine stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("could not access database handle for close", zap.Error(err))
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("database close failed", zap.Error(err))
	}
}
