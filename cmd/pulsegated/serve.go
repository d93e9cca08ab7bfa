package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pulsegate/pulsegate/internal/cooldown"
	"github.com/pulsegate/pulsegate/internal/crypto/credcrypto"
	"github.com/pulsegate/pulsegate/internal/metrics"
	"github.com/pulsegate/pulsegate/internal/migrate"
	"github.com/pulsegate/pulsegate/internal/notify"
	"github.com/pulsegate/pulsegate/internal/repository/postgres"
	"github.com/pulsegate/pulsegate/internal/server/httpapi"
	"github.com/pulsegate/pulsegate/internal/service"
	"github.com/pulsegate/pulsegate/internal/shockapi"
	"github.com/pulsegate/pulsegate/internal/trigger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations, the HTTP API, and the reminder scheduler",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dsn := viper.GetString("db.dsn")
	jwtKey := viper.GetString("auth.jwt_key")
	masterKey := viper.GetString("crypto.master_key")
	addr := viper.GetString("http.addr")
	if dsn == "" {
		return errors.New("db.dsn is required")
	}
	if jwtKey == "" {
		return errors.New("auth.jwt_key is required")
	}
	if masterKey == "" {
		return errors.New("crypto.master_key is required")
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", addr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, dsn); err != nil {
		logger.Error("migrate up", zap.Error(err))
		return err
	}

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		logger.Error("connect postgres", zap.Error(err))
		return err
	}
	defer db.Close()

	keeper, err := credcrypto.New(masterKey)
	if err != nil {
		logger.Error("init credential keeper", zap.Error(err))
		return err
	}

	// Repositories
	regRepo := postgres.NewRegistrationRepo(db)
	deviceRepo := postgres.NewDeviceRepo(db)
	consentRepo := postgres.NewConsentRepo(db)
	triggerRepo := postgres.NewTriggerRepo(db)
	reminderRepo := postgres.NewReminderRepo(db)
	auditRepo := postgres.NewAuditRepo(db)
	prefRepo := postgres.NewPrefRepo(db)

	tracker := cooldown.NewPGWithQuerier(db.Pool, nil)
	m := metrics.New()
	api := shockapi.New()
	matcher := trigger.NewMatcher(triggerRepo, logger)

	// Services
	dispatcher := service.NewDispatcher(regRepo, deviceRepo, consentRepo, auditRepo,
		prefRepo, tracker, keeper, api, m, logger)
	consentSvc := service.NewConsentService(regRepo, consentRepo)
	regSvc := service.NewRegistrationService(regRepo, deviceRepo, keeper, api)
	triggerSvc := service.NewTriggerService(regRepo, triggerRepo, matcher, tracker, dispatcher, m, logger)
	reminderSvc := service.NewReminderService(reminderRepo, consentSvc)
	prefSvc := service.NewPreferenceService(prefRepo)

	runner := service.NewRunner(reminderRepo, dispatcher, notify.Nop{}, m, logger,
		viper.GetDuration("scheduler.interval"))
	go runner.Run(ctx)

	if days := viper.GetInt("audit.retention_days"); days > 0 {
		go pruneAudit(ctx, auditRepo, days, logger)
	}

	handler := &httpapi.Handler{
		Registrations: regSvc,
		Consent:       consentSvc,
		Triggers:      triggerSvc,
		Reminders:     reminderSvc,
		Prefs:         prefSvc,
		Dispatcher:    dispatcher,
		Audit:         auditRepo,
		Tracker:       tracker,
	}
	router := httpapi.NewRouter(handler, []byte(jwtKey), logger, m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("serve", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
		return err
	}
	logger.Info("stopped")
	return nil
}

// pruneAudit deletes expired audit rows once a day.
func pruneAudit(ctx context.Context, repo *postgres.AuditRepo, days int, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteOlderThan(ctx, days)
			if err != nil {
				logger.Error("audit prune", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("audit pruned", zap.Int64("rows", n))
			}
		}
	}
}
