// Package main - точка входа для Telegram-бота English Profesor Expert.
//
// Один процесс обслуживает обе поверхности: long polling Telegram и REST API
// веб-панели. Все зависимости собираются здесь и передаются явно.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/englishprofesor/tutor-bot/config"
	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/application/query"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/auth"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/external/openai"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/external/speech"
	tgclient "github.com/englishprofesor/tutor-bot/internal/infrastructure/external/telegram"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/persistence/postgres"
	"github.com/englishprofesor/tutor-bot/internal/infrastructure/persistence/redis"
	httpserver "github.com/englishprofesor/tutor-bot/internal/interface/http"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram"
	"github.com/englishprofesor/tutor-bot/pkg/circuitbreaker"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
	"github.com/englishprofesor/tutor-bot/pkg/timeutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Environment: string(cfg.App.Environment),
		Debug:       cfg.App.Debug,
		Level:       cfg.App.LogLevel,
		Service:     "bot",
	})
	log.Info("starting English tutor bot",
		"version", version,
		"env", cfg.App.Environment,
		"timezone", cfg.App.Timezone,
		"tts", cfg.Speech.TTSProvider,
		"stt", cfg.Speech.STTProvider,
	)
	clock := timeutil.NewSystemClock(cfg.App.Location)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES + МИГРАЦИИ + КАТАЛОГ
	// ─────────────────────────────────────────────────────────────────────────
	db, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.PoolOptions{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := postgres.NewMigrator(db).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations applied")
	}

	cat, err := catalog.Load(ctx, postgres.NewCatalogRepository(db))
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (история диалогов и кеш статистики)
	// ─────────────────────────────────────────────────────────────────────────
	cache, err := redis.NewCache(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer cache.Close()

	stats := redis.NewStatsCache(cache)
	threads := redis.NewConversationStore(cache)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ
	// ─────────────────────────────────────────────────────────────────────────
	students := postgres.NewStudentRepository(db)
	lessons := postgres.NewLessonRepository(db)
	analytics := postgres.NewAnalyticsRepository(db)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ВНЕШНИЕ СЕРВИСЫ: LLM, TTS, STT
	// ─────────────────────────────────────────────────────────────────────────
	onBreaker := func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
	}

	llm := openai.NewClient(openai.Config{
		APIKey:                cfg.LLM.APIKey,
		BaseURL:               cfg.LLM.BaseURL,
		Model:                 cfg.LLM.Model,
		Timeout:               cfg.LLM.Timeout,
		TranscriptionModel:    cfg.LLM.TranscriptionModel,
		TranscriptionLanguage: cfg.LLM.TranscriptionLanguage,
	}, circuitbreaker.LLMBreaker(onBreaker), log)
	tutor := openai.NewTutor(llm, cfg.LLM.ChatTemperature, cfg.LLM.EvaluationTemperature, log)

	speechService, closeSpeech, err := buildSpeech(ctx, cfg, llm, onBreaker, log)
	if err != nil {
		return err
	}
	defer closeSpeech()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	resolver := command.NewResolveStudentHandler(students, cat, clock, log)
	turns := command.NewProcessTurnHandler(command.ProcessTurnDeps{
		Resolver:    resolver,
		Students:    students,
		Lessons:     lessons,
		Threads:     threads,
		Generator:   tutor,
		Synthesizer: speechService,
		Dashboards:  stats,
		Catalog:     cat,
		Clock:       clock,
		Logger:      log,
	})
	ender := command.NewEndLessonHandler(students, lessons, stats, clock, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. TELEGRAM
	// ─────────────────────────────────────────────────────────────────────────
	tg, err := tgclient.NewClient(tgclient.ClientConfig{
		Token:  cfg.Telegram.Token,
		Logger: log,
		Debug:  cfg.App.Debug,
	})
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}
	log.Info("telegram bot authorized", "username", tg.Username())

	botConfig := telegram.DefaultBotConfig()
	botConfig.PollingTimeout = cfg.Telegram.PollingTimeout
	botConfig.MaxConcurrentUpdates = cfg.Telegram.MaxConcurrentUpdates
	botConfig.GracefulShutdownTimeout = cfg.App.ShutdownTimeout
	botConfig.FrontendURL = cfg.HTTP.FrontendURL
	botConfig.Logger = log

	bot, err := telegram.NewBot(botConfig, telegram.BotDependencies{
		Client:      tg,
		Resolver:    resolver,
		Students:    students,
		Turns:       turns,
		Lessons:     ender,
		Transcriber: speechService,
		Catalog:     cat,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	secret := cfg.Auth.SecretKey
	if secret == "" {
		// Только для разработки: токены не переживут рестарт.
		secret = uuid.NewString()
		log.Warn("SECRET_KEY is empty, using an ephemeral signing key")
	}
	tokens, err := auth.NewTokenIssuer(secret, cfg.Auth.JWTExpiry)
	if err != nil {
		return err
	}

	health := httpserver.NewHealthChecker(version)
	health.Add("postgres", db)
	health.Add("redis", cache)

	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.CORSOrigins = cfg.HTTP.CORSOrigins
	httpConfig.Debug = cfg.App.Debug
	httpConfig.Version = version

	api := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		Resolver:   resolver,
		Tokens:     tokens,
		Widget:     auth.NewWidgetVerifier(cfg.Telegram.Token),
		AdminKeys:  auth.NewAPIKeys(cfg.Auth.AdminAPIKeys),
		Students:   query.NewGetStudentHandler(students, cat),
		Dashboards: query.NewGetDashboardHandler(students, lessons, cat, stats, clock, log),
		Lessons:    query.NewLessonsHandler(lessons),
		Admin:      query.NewAdminStatsHandler(analytics, lessons, stats, clock, log),
		Levels:     query.ListLevels(cat),
		Health:     health,
		Logger:     log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 2)
	httpErr := api.StartAsync()
	go func() {
		if err := <-httpErr; err != nil {
			errCh <- err
		}
	}()
	go func() {
		if err := bot.Start(ctx); err != nil {
			errCh <- fmt.Errorf("telegram bot: %w", err)
		}
	}()

	log.Info("tutor bot is running", "http_address", httpConfig.Address())

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := bot.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop bot gracefully", "error", err)
	}
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
	}

	s := bot.Stats()
	log.Info("shutdown completed",
		"updates_received", s.UpdatesReceived,
		"updates_handled", s.UpdatesHandled,
		"errors", s.Errors,
	)
	return runErr
}

// buildSpeech selects TTS and STT providers. The returned func releases
// provider clients.
func buildSpeech(
	ctx context.Context,
	cfg *config.Config,
	llm *openai.Client,
	onBreaker func(name string, from, to circuitbreaker.State),
	log *slog.Logger,
) (*speech.Service, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	var tts speech.Synthesizer
	switch cfg.Speech.TTSProvider {
	case config.TTSGoogle:
		g, err := speech.NewGoogleTTS(ctx, cfg.Speech.GoogleVoiceLanguage, "", cfg.Speech.Timeout)
		if err != nil {
			return nil, closeAll, fmt.Errorf("google tts: %w", err)
		}
		closers = append(closers, g.Close)
		tts = g
	default:
		tts = speech.NewElevenLabs(speech.ElevenLabsConfig{
			APIKey:  cfg.Speech.ElevenLabsAPIKey,
			VoiceID: cfg.Speech.ElevenLabsVoiceID,
			Model:   cfg.Speech.ElevenLabsModel,
			BaseURL: cfg.Speech.ElevenLabsBaseURL,
			Timeout: cfg.Speech.Timeout,
		}, log)
	}

	var stt speech.Transcriber = llm
	if cfg.Speech.STTProvider == config.STTGoogle {
		g, err := speech.NewGoogleSTT(ctx, cfg.Speech.Timeout)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("google stt: %w", err)
		}
		closers = append(closers, g.Close)
		stt = g
	}

	svc := speech.NewService(tts, stt,
		circuitbreaker.SpeechBreaker("tts", onBreaker),
		circuitbreaker.SpeechBreaker("stt", onBreaker),
		log,
	)
	return svc, closeAll, nil
}
