package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"clinicbook/internal/bot"
	"clinicbook/internal/config"
	"clinicbook/internal/database"
	"clinicbook/internal/events"
	"clinicbook/internal/logging"
	"clinicbook/internal/metrics"
	"clinicbook/internal/models"
	"clinicbook/internal/platform"
	"clinicbook/internal/repository"
	"clinicbook/internal/wizard"
	"clinicbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, slots, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Error().Err(err).Msg("Database initialization failed")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessions := initSessions(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	client := initPlatformClient(cfg, redisClient, logger)

	eventBus := events.NewEventBus()
	subscribeAppointmentEvents(eventBus, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startOpsServer(ctx, cfg.Monitoring.PrometheusPort, db, redisClient, &logger)
	}

	if cfg.Catalog.RefreshMinutes > 0 {
		retryPolicy := worker.RetryPolicy{MaxRetries: cfg.Catalog.MaxRetries, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		catalogWorker := worker.NewCatalogWorker(client, time.Duration(cfg.Catalog.RefreshMinutes)*time.Minute, retryPolicy, eventBus, &logger)
		go catalogWorker.Start(ctx)
	}

	machine := wizard.NewMachine(client, db, wizard.NewStaticSlots(slots), &logger,
		wizard.WithAppointmentLog(db),
		wizard.WithEventPublisher(eventBus),
	)

	return startBot(ctx, cfg, machine, client, sessions, db, eventBus, &logger)
}

func loadConfigAndLogger() (*config.Config, []string, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	slots, err := loadSlots(&logger)
	if err != nil {
		return nil, nil, zerolog.Logger{}, closer, err
	}

	return cfg, slots, logger, closer, nil
}

// loadSlots reads the slot grid from slots.yaml; a missing file falls back
// to the built-in default grid.
func loadSlots(logger *zerolog.Logger) ([]string, error) {
	slotsPath := os.Getenv("SLOTS_PATH")
	if slotsPath == "" {
		slotsPath = "configs/slots.yaml"
	}

	data, err := os.ReadFile(slotsPath)
	if os.IsNotExist(err) {
		logger.Info().Str("path", slotsPath).Msg("No slots file, using default slot grid")
		return models.DefaultSlots, nil
	}
	if err != nil {
		logger.Error().Err(err).Msgf("Failed reading %s", slotsPath)
		return nil, err
	}

	var slotsConfig struct {
		Slots []string `yaml:"slots"`
	}
	if err := yaml.Unmarshal(data, &slotsConfig); err != nil {
		logger.Error().Err(err).Msg("Failed parsing slots.yaml")
		return nil, err
	}
	if len(slotsConfig.Slots) == 0 {
		return models.DefaultSlots, nil
	}
	return slotsConfig.Slots, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create export directory")
		return err
	}
	return nil
}

func initSessions(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverSessionRepository) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable, sessions start on the in-memory fallback")
		}
	}

	primary := repository.NewRedisSessionRepository(redisClient, time.Duration(models.DefaultSessionTTL)*time.Second)
	fallback := repository.NewMemorySessionRepository()
	return redisClient, repository.NewFailoverSessionRepository(primary, fallback, logger)
}

func initPlatformClient(cfg *config.Config, redisClient *redis.Client, logger zerolog.Logger) *platform.Client {
	opts := []platform.Option{
		platform.WithLogger(logger),
	}
	if cfg.Platform.RPS > 0 {
		opts = append(opts, platform.WithRateLimit(cfg.Platform.RPS, cfg.Platform.Burst))
	}
	if redisClient != nil && cfg.Platform.CacheTTL > 0 {
		opts = append(opts, platform.WithCache(redisClient, time.Duration(cfg.Platform.CacheTTL)*time.Second))
	}
	return platform.NewClient(cfg.Platform.BaseURL, cfg.Platform.Timeout(), opts...)
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	machine *wizard.Machine,
	client *platform.Client,
	sessions *repository.FailoverSessionRepository,
	db *database.DB,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	telegramBot, err := bot.NewBot(
		bot.NewTelegramClient(botAPI), cfg, machine, client,
		sessions, db, db, eventBus, logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create bot")
		return err
	}

	logger.Info().Msg("Bot started")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

// subscribeAppointmentEvents wires audit logging of wizard outcomes.
func subscribeAppointmentEvents(bus *events.EventBus, logger *zerolog.Logger) {
	decode := func(ev *events.Event) (events.AppointmentEventPayload, error) {
		var payload events.AppointmentEventPayload
		err := json.Unmarshal(ev.Payload, &payload)
		return payload, err
	}

	bus.Subscribe(models.EventAppointmentSubmitted, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Info().
			Str("request_id", payload.RequestID).
			Int64("user_id", payload.UserID).
			Str("clinic", payload.ClinicName).
			Str("doctor", payload.DoctorName).
			Str("date", payload.Date).
			Str("slot", payload.Slot).
			Msg("Appointment submitted")
		return nil
	})

	bus.Subscribe(models.EventAppointmentRejected, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Warn().
			Int64("user_id", payload.UserID).
			Str("doctor", payload.DoctorName).
			Str("reason", payload.Reason).
			Msg("Appointment rejected by platform")
		return nil
	})
}

func startOpsServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	if port == 0 {
		port = 9090
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("ops server error")
	}
}
