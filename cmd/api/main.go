package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferrybook/internal/api"
	"ferrybook/internal/bot"
	"ferrybook/internal/config"
	"ferrybook/internal/database"
	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/logging"
	"ferrybook/internal/metrics"
	"ferrybook/internal/payment"
	"ferrybook/internal/repository"
	"ferrybook/internal/service"
	"ferrybook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	var locker domain.Locker = repository.NewMemoryLocker()
	if redisClient != nil {
		locker = repository.NewFailoverLocker(repository.NewRedisLocker(redisClient), locker, &logger)
	}

	eventBus := events.NewEventBus()
	access := service.NewRouteAccessService(db, 5*time.Minute, &logger)

	svc := api.Services{
		Bookings:  service.NewBookingService(db, access, eventBus, cfg.Booking.MaxBookingDays, cfg.Booking.PaymentExpiry, &logger),
		Payments:  service.NewPaymentService(db, initGateway(cfg, &logger), access, eventBus, &logger),
		Refunds:   service.NewRefundService(db, access, eventBus, &logger),
		Schedules: service.NewScheduleService(db, access, eventBus, &logger),
		Sweeps:    service.NewSweepService(db, locker, eventBus, cfg.Sweeps.LockTTL, &logger),
		Access:    access,
	}

	if err := svc.Refunds.SyncPolicies(ctx, cfg.RefundPolicies); err != nil {
		logger.Error().Err(err).Msg("sync refund policies")
		return err
	}

	startMetrics(ctx, cfg, &logger)
	startWorkers(ctx, cfg, db, svc, eventBus, redisClient, &logger)

	ready := map[string]api.ReadinessCheck{"database": db.PingContext}
	if redisClient != nil {
		ready["redis"] = func(ctx context.Context) error { return repository.Ping(ctx, redisClient) }
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, ready, &logger)

	return serve(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	fleetPath := os.Getenv("FLEET_PATH")
	if fleetPath == "" {
		fleetPath = "configs/fleet.yaml"
	}
	fleet, err := config.LoadFleet(fleetPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn().Str("fleet_path", fleetPath).Msg("fleet file not found, keeping stored reference data")
		return db, nil
	case err != nil:
		_ = db.Close()
		logger.Error().Err(err).Str("fleet_path", fleetPath).Msg("load fleet")
		return nil, err
	}

	if err := db.SyncFleet(ctx, fleet); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("sync fleet")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initGateway returns a nil interface when payments are not configured;
// checkout then answers with ErrPaymentUnavailable.
func initGateway(cfg *config.Config, logger *zerolog.Logger) domain.PaymentGateway {
	if !cfg.Payment.Enabled() {
		logger.Warn().Msg("payment gateway is not configured")
		return nil
	}
	return payment.NewMidtransGateway(cfg.Payment, logger)
}

func startWorkers(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	svc api.Services,
	eventBus *events.EventBus,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) {
	go database.NewBackupService(db, cfg.Backup, logger).Start(ctx)

	if cfg.Sweeps.Enabled {
		runner := worker.NewSweepRunner(svc.Sweeps, cfg.Sweeps.Interval, logging.Component(logger, "sweeper"))
		go runner.Start(ctx)
	}

	if cfg.Telegram.BotToken == "" {
		return
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return
	}
	botAPI.Debug = cfg.Telegram.Debug

	if cfg.Telegram.Enabled() {
		notifier := worker.NewTelegramNotifier(
			service.NewTelegramService(botAPI),
			cfg.Telegram.OperatorChatID,
			redisClient,
			worker.RetryPolicy{},
			logging.Component(logger, "notifier"),
		)
		notifier.Subscribe(eventBus)
		go notifier.Start(ctx)
		logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram notifications enabled")
	}

	if cfg.Telegram.Commands {
		operatorBot, err := bot.NewBot(bot.NewBotWrapper(botAPI), cfg.Telegram.Staff, bot.Services{
			Bookings:  svc.Bookings,
			Schedules: svc.Schedules,
			Sweeps:    svc.Sweeps,
		}, logging.Component(logger, "bot"))
		if err != nil {
			logger.Warn().Err(err).Msg("operator bot init failed")
			return
		}
		go operatorBot.Start(ctx)
		go func() {
			<-ctx.Done()
			operatorBot.Stop()
		}()
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	timeout := cfg.API.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
