// Package telegram implements the Telegram bot interface of the English tutor.
// It receives updates by long polling, routes them to handlers and manages
// the bot lifecycle.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/handler"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/middleware"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// PollingTimeout is the long polling timeout in seconds.
	PollingTimeout int

	// MaxConcurrentUpdates limits concurrent update processing.
	MaxConcurrentUpdates int

	// UpdateTimeout bounds the handling of a single update.
	UpdateTimeout time.Duration

	// GracefulShutdownTimeout bounds waiting for in-flight updates on Stop.
	GracefulShutdownTimeout time.Duration

	// FrontendURL is the web panel base URL used in panel buttons.
	FrontendURL string

	RateLimit middleware.RateLimitConfig

	Logger *slog.Logger
}

// DefaultBotConfig returns sensible defaults.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		PollingTimeout:          30,
		MaxConcurrentUpdates:    50,
		UpdateTimeout:           2 * time.Minute,
		GracefulShutdownTimeout: 30 * time.Second,
		FrontendURL:             "http://localhost:3000",
		RateLimit:               middleware.DefaultRateLimitConfig(),
		Logger:                  slog.Default(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Telegram API surface the bot needs.
type Client interface {
	handler.Messenger
	Updates(timeout int) (tgbotapi.UpdatesChannel, error)
	StopUpdates()
}

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	Client Client

	Resolver    handler.StudentResolver
	Students    handler.StudentFinder
	Turns       handler.TurnRunner
	Lessons     handler.LessonEnder
	Transcriber handler.Transcriber // nil disables voice notes
	Catalog     *catalog.Catalog
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram bot controller.
type Bot struct {
	config   BotConfig
	client   Client
	router   *Router
	limiter  *middleware.RateLimiter
	recovery *middleware.RecoveryMiddleware
	logger   *slog.Logger

	runningMu sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	updateSem chan struct{}
	wg        sync.WaitGroup

	stats botCounters
}

type botCounters struct {
	received atomic.Int64
	handled  atomic.Int64
	failed   atomic.Int64
	limited  atomic.Int64
	panics   atomic.Int64
}

// BotStats is a snapshot of runtime counters.
type BotStats struct {
	UpdatesReceived int64 `json:"updates_received"`
	UpdatesHandled  int64 `json:"updates_handled"`
	Errors          int64 `json:"errors"`
	RateLimited     int64 `json:"rate_limited"`
	Panics          int64 `json:"panics"`
}

// NewBot wires handlers into a router.
func NewBot(config BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Client == nil {
		return nil, errors.New("telegram client is required")
	}
	if deps.Resolver == nil || deps.Students == nil || deps.Turns == nil || deps.Lessons == nil || deps.Catalog == nil {
		return nil, errors.New("telegram bot: missing application dependencies")
	}

	def := DefaultBotConfig()
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	if config.MaxConcurrentUpdates <= 0 {
		config.MaxConcurrentUpdates = def.MaxConcurrentUpdates
	}
	if config.PollingTimeout <= 0 {
		config.PollingTimeout = def.PollingTimeout
	}
	if config.UpdateTimeout <= 0 {
		config.UpdateTimeout = def.UpdateTimeout
	}
	if config.GracefulShutdownTimeout <= 0 {
		config.GracefulShutdownTimeout = def.GracefulShutdownTimeout
	}

	out := deps.Client
	conversation := handler.NewConversationHandler(deps.Turns, deps.Transcriber, out, config.Logger)

	router := NewRouter(config.Logger)
	router.RegisterCommand("start", handler.NewStartHandler(deps.Resolver, deps.Catalog, out))
	router.RegisterCommand("help", handler.NewHelpHandler(out))
	router.RegisterCommand("progress", handler.NewProgressHandler(deps.Students, deps.Catalog, out, config.FrontendURL))
	router.RegisterCommand("level", handler.NewLevelHandler(deps.Students, deps.Catalog, out))
	router.RegisterCommand("panel", handler.NewPanelHandler(out, config.FrontendURL))
	router.RegisterCommand("end", handler.NewEndHandler(deps.Lessons, deps.Catalog, out))
	router.SetUnknownCommandHandler(handler.NewHelpHandler(out))
	router.SetTextHandler(conversation)
	if deps.Transcriber != nil {
		router.SetVoiceHandler(conversation.Voice())
	}

	recoveryConfig := middleware.DefaultRecoveryConfig()
	recoveryConfig.Logger = config.Logger
	recoveryConfig.UserMessage = presenter.ErrorText

	return &Bot{
		config:    config,
		client:    deps.Client,
		router:    router,
		limiter:   middleware.NewRateLimiter(config.RateLimit),
		recovery:  middleware.NewRecoveryMiddleware(recoveryConfig),
		logger:    config.Logger.With("component", "telegram_bot"),
		updateSem: make(chan struct{}, config.MaxConcurrentUpdates),
	}, nil
}

// Router returns the router, mainly for tests.
func (b *Bot) Router() *Router { return b.router }

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE MANAGEMENT
// ══════════════════════════════════════════════════════════════════════════════

const sweepInterval = 10 * time.Minute

// Start polls updates until ctx is cancelled or Stop is called, then waits
// for in-flight updates.
func (b *Bot) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("bot is already running")
	}
	b.running = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})
	b.runningMu.Unlock()
	defer close(b.doneCh)

	updates, err := b.client.Updates(b.config.PollingTimeout)
	if err != nil {
		b.setStopped()
		return err
	}
	b.logger.Info("long polling started",
		"max_concurrent_updates", b.config.MaxConcurrentUpdates,
		"commands", b.router.Commands(),
	)

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			b.drain()
			return nil
		case <-b.stopCh:
			b.drain()
			return nil
		case <-sweep.C:
			if n := b.limiter.Sweep(); n > 0 {
				b.logger.Debug("rate limiter swept", "removed", n)
			}
		case update, ok := <-updates:
			if !ok {
				b.drain()
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// Stop signals Start to return and waits for it, bounded by ctx.
func (b *Bot) Stop(ctx context.Context) error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	close(b.stopCh)
	done := b.doneCh
	b.runningMu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether Start is active.
func (b *Bot) IsRunning() bool {
	b.runningMu.Lock()
	defer b.runningMu.Unlock()
	return b.running
}

func (b *Bot) setStopped() {
	b.runningMu.Lock()
	b.running = false
	b.runningMu.Unlock()
}

// drain stops polling and waits for running handlers.
func (b *Bot) drain() {
	b.client.StopUpdates()
	b.setStopped()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("all updates handled, bot stopped")
	case <-time.After(b.config.GracefulShutdownTimeout):
		b.logger.Warn("graceful shutdown timeout exceeded")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// dispatch blocks while MaxConcurrentUpdates handlers are running.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	b.stats.received.Add(1)
	if update.Message == nil {
		return
	}

	select {
	case b.updateSem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() { <-b.updateSem }()

		// Начатый ход доводим до конца даже при остановке бота.
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.config.UpdateTimeout)
		defer cancel()
		b.HandleMessage(uctx, update.UpdateID, update.Message)
	}()
}

// HandleMessage runs one message through rate limiting, recovery and routing.
func (b *Bot) HandleMessage(ctx context.Context, updateID int, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	telegramID := int64(msg.From.ID)
	chatID := msg.Chat.ID

	if rl := b.limiter.Check(telegramID); !rl.Allowed {
		b.stats.limited.Add(1)
		b.logger.Warn("rate limited", "telegram_id", telegramID, "retry_after", rl.RetryAfter)
		_ = b.client.SendText(ctx, chatID, rl.Message())
		return
	}

	start := time.Now()
	var handled bool
	res := b.recovery.Run(ctx, telegramID, "message", func() error {
		var err error
		handled, err = b.router.Route(ctx, msg)
		return err
	})

	switch {
	case res.Recovered:
		b.stats.panics.Add(1)
		b.stats.failed.Add(1)
		_ = b.client.SendText(ctx, chatID, res.UserMessage)

	case res.Err != nil:
		b.stats.failed.Add(1)
		b.logger.Error("failed to handle update",
			"update_id", updateID,
			"telegram_id", telegramID,
			"duration", time.Since(start),
			"error", res.Err,
		)
		if err := b.client.SendText(ctx, chatID, presenter.ErrorText); err != nil {
			b.logger.Warn("could not send error reply", "telegram_id", telegramID, "error", err)
		}

	case handled:
		b.stats.handled.Add(1)
	}
}

// Stats returns a snapshot of the counters.
func (b *Bot) Stats() BotStats {
	return BotStats{
		UpdatesReceived: b.stats.received.Load(),
		UpdatesHandled:  b.stats.handled.Load(),
		Errors:          b.stats.failed.Load(),
		RateLimited:     b.stats.limited.Load(),
		Panics:          b.stats.panics.Load(),
	}
}
