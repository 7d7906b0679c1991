package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusres/internal/advisory"
	"campusres/internal/api"
	"campusres/internal/bot"
	"campusres/internal/config"
	"campusres/internal/domain"
	"campusres/internal/events"
	"campusres/internal/export"
	"campusres/internal/google"
	"campusres/internal/ledger"
	"campusres/internal/logging"
	"campusres/internal/metrics"
	"campusres/internal/notify"
	"campusres/internal/repository"
	"campusres/internal/service"
	"campusres/internal/worker"

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
		defer func() { _ = closer.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStorage(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.Storage.Driver).Msg("open storage")
		return err
	}
	defer st.close()

	catalog, err := config.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		logger.Warn().Err(err).Str("catalog_path", cfg.CatalogPath).Msg("catalog not loaded, starting empty")
	} else if err := seed(ctx, st, catalog, &logger); err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	tg := initTelegram(cfg, &logger)
	notifier, closeNotifiers := initNotifiers(cfg, tg, st.users, &logger)
	defer closeNotifiers()

	eventBus := events.NewEventBus(&logger)
	l := ledger.New(st.reservations, ledger.Options{RecheckOnApprove: cfg.Ledger.RecheckOnApprove},
		logging.Component(&logger, "ledger"))

	users := service.NewUserService(st.users, &logger)
	catalogSvc := service.NewCatalogService(st.catalog, &logger)
	reservations := service.NewReservationService(l, catalogSvc, users, notifier, eventBus, &logger)
	defer reservations.PublishChanges()()
	reports := service.NewReportService(st.reports, notifier, eventBus, &logger)

	startSheetsSync(ctx, cfg, l, reservations, redisClient, &logger)

	advisor, advisoryWorker := initAdvisory(ctx, cfg, redisClient, &logger)

	dashboard := service.NewDashboardService(l, catalogSvc, reports, &logger)

	if tg != nil && cfg.Notify.Telegram.Commands {
		chat := bot.New(bot.NewAPIClient(tg), reservations, users, dashboard, cfg.Notify.Telegram.PageSize,
			logging.Component(&logger, "telegram-bot"))
		go chat.Start(ctx)
	}

	httpServer := api.NewServer(cfg.API, api.Services{
		Users:        users,
		Catalog:      catalogSvc,
		Reservations: reservations,
		Reports:      reports,
		Dashboard:    dashboard,
		Exporter:     export.NewExporter(cfg.Exports.Path, &logger),
		Advisor:      advisor,
		Advisory:     advisoryWorker,
	}, logging.Component(&logger, "http"))

	startMetrics(ctx, cfg, &logger)

	err = serve(ctx, httpServer, &logger)
	stop()
	advisoryWorker.Wait()
	return err
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
	return cfg, *logging.Component(baseLogger, "api-main"), closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *tgbotapi.BotAPI {
	if cfg.Notify.Telegram.BotToken == "" {
		return nil
	}
	tg, err := tgbotapi.NewBotAPI(cfg.Notify.Telegram.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram disabled")
		return nil
	}
	tg.Debug = cfg.Notify.Telegram.Debug
	logger.Info().Str("bot", tg.Self.UserName).Msg("telegram bot authorized")
	return tg
}

// initNotifiers combines every configured channel. A channel that fails to
// start is skipped.
func initNotifiers(cfg *config.Config, tg *tgbotapi.BotAPI, users domain.UserRepository, logger *zerolog.Logger) (domain.Notifier, func()) {
	var (
		channels []notify.Channel
		closers  []func()
	)

	if cfg.Notify.Log {
		channels = append(channels, notify.Channel{Name: "log", Notifier: notify.NewLogNotifier(logger)})
	}

	if cfg.Notify.AMQP.URL != "" {
		n, err := notify.DialAMQP(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Queue, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp notifier disabled")
		} else {
			channels = append(channels, notify.Channel{Name: "amqp", Notifier: n})
			closers = append(closers, func() { _ = n.Close() })
		}
	}

	if tg != nil {
		channels = append(channels, notify.Channel{Name: "telegram", Notifier: notify.NewTelegramNotifier(tg, users, logger)})
	}

	multi := notify.NewMulti(logger, channels...)
	logger.Info().Int("channels", multi.Len()).Msg("notifiers configured")
	return multi, func() {
		for _, c := range closers {
			c()
		}
	}
}

func startSheetsSync(ctx context.Context, cfg *config.Config, l *ledger.Ledger, names worker.NameResolver,
	redisClient *redis.Client, logger *zerolog.Logger,
) {
	if !cfg.Google.Enabled() {
		return
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.ReservationsSheetID, cfg.Google.ReservationsSheetTab)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return
	}
	if err := sheets.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	sheetsWorker := worker.NewSheetsWorker(sheets, names, redisClient, worker.RetryPolicy{}, logging.Component(logger, "sheets-worker"))
	sheetsWorker.Follow(l)
	go sheetsWorker.Start(ctx)
	logger.Info().Msg("google sheets sync enabled")
}

func initAdvisory(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger,
) (*advisory.Advisor, *worker.AdvisoryWorker) {
	var cache domain.AdvisoryCache = repository.NewMemoryAdvisoryCache()
	if redisClient != nil {
		cache = repository.NewFailoverAdvisoryCache(repository.NewRedisAdvisoryCache(redisClient), cache, logger)
	}

	var gen advisory.Generator
	if cfg.Advisory.Enabled {
		g, err := advisory.NewGeminiGenerator(ctx, cfg.Advisory.APIKey, cfg.Advisory.Model, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("advisory disabled")
		} else {
			gen = g
		}
	}

	aw := worker.NewAdvisoryWorker(cache, worker.AdvisoryWorkerConfig{
		Workers:       cfg.Advisory.Workers,
		Timeout:       cfg.Advisory.Timeout,
		CacheTTL:      cfg.Advisory.CacheTTL,
		UserRateLimit: cfg.Advisory.UserRateLimit,
		RateWindow:    cfg.Advisory.RateWindow,
		Retry:         worker.RetryPolicy{MaxRetries: cfg.Advisory.MaxRetries},
	}, logging.Component(logger, "advisory-worker"))
	aw.Start(ctx)
	return advisory.NewAdvisor(gen, logger), aw
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
