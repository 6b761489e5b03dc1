// Package telegram wraps the Telegram Bot API client with retries, error
// classification and the few send helpers the tutor needs: Markdown text,
// voice notes, chat actions and file downloads.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Telegram client.
type ClientConfig struct {
	Token string

	// HTTPClient is used for Bot API calls and file downloads.
	HTTPClient *http.Client

	// MaxDownloadBytes bounds voice note downloads.
	MaxDownloadBytes int64

	Logger *slog.Logger
	Debug  bool
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:            token,
		HTTPClient:       &http.Client{Timeout: 90 * time.Second}, // > long polling timeout
		MaxDownloadBytes: 20 << 20,
	}
}

// Chat actions shown while the tutor works.
const (
	ActionTyping      = tgbotapi.ChatTyping
	ActionRecordAudio = tgbotapi.ChatRecordAudio
)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Telegram Bot API client.
type Client struct {
	api      *tgbotapi.BotAPI
	http     *http.Client
	sender   *retry.Retrier
	download *retry.Retrier
	maxBytes int64
	logger   *slog.Logger
}

// NewClient authenticates with getMe and returns a ready client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = DefaultClientConfig(cfg.Token).HTTPClient
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = 20 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Debug

	logger := cfg.Logger.With("component", "telegram_client")
	c := &Client{
		api:      api,
		http:     cfg.HTTPClient,
		maxBytes: cfg.MaxDownloadBytes,
		logger:   logger,
	}
	c.sender = retry.TelegramRetrier(
		retry.WithRetryIf(isRetryableError),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("telegram send retry", "attempt", attempt, "delay", delay, "error", err)
		}),
	)
	c.download = retry.DownloadRetrier(retry.WithRetryIf(isRetryableError))
	return c, nil
}

// Username returns the bot username.
func (c *Client) Username() string { return c.api.Self.UserName }

// ══════════════════════════════════════════════════════════════════════════════
// UPDATES
// ══════════════════════════════════════════════════════════════════════════════

// Updates starts long polling. timeout is in seconds.
func (c *Client) Updates(timeout int) (tgbotapi.UpdatesChannel, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeout
	return c.api.GetUpdatesChan(u)
}

// StopUpdates stops long polling.
func (c *Client) StopUpdates() {
	c.api.StopReceivingUpdates()
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING
// ══════════════════════════════════════════════════════════════════════════════

// SendMarkdown sends a Markdown message. If Telegram cannot parse the
// entities, the same text is re-sent without formatting.
func (c *Client) SendMarkdown(ctx context.Context, chatID int64, text string, markup any) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = markup
	}

	err := c.send(ctx, msg)
	if err != nil && isParseError(err) {
		c.logger.Warn("markdown rejected, sending plain text", "chat_id", chatID)
		msg.ParseMode = ""
		err = c.send(ctx, msg)
	}
	return err
}

// SendText sends plain text.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	return c.send(ctx, tgbotapi.NewMessage(chatID, text))
}

// SendVoice uploads MP3 bytes as a voice note.
func (c *Client) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	voice := tgbotapi.NewVoiceUpload(chatID, tgbotapi.FileBytes{Name: "respuesta.mp3", Bytes: audio})
	return c.send(ctx, voice)
}

// SendAction shows a chat action. Failures are logged only.
func (c *Client) SendAction(ctx context.Context, chatID int64, action string) {
	if _, err := c.api.Send(tgbotapi.NewChatAction(chatID, action)); err != nil {
		c.logger.Debug("chat action failed", "chat_id", chatID, "error", err)
	}
}

func (c *Client) send(ctx context.Context, msg tgbotapi.Chattable) error {
	err := c.sender.Do(ctx, func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return retry.Permanent(err)
		}
		_, err := c.api.Send(msg)
		return err
	})
	if err != nil {
		return shared.WrapError("telegram", "Send", shared.ErrExternalService, "Telegram API request failed", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// FILES
// ══════════════════════════════════════════════════════════════════════════════

// DownloadFile fetches a file (voice note) by its file id.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	return retry.DoWithData(ctx, c.download, func(ctx context.Context) ([]byte, error) {
		url, err := c.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, retry.Retryable(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("download %s: http %d", fileID, resp.StatusCode)
			if resp.StatusCode >= 500 {
				return nil, retry.Retryable(err)
			}
			return nil, retry.Permanent(err)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
		if err != nil {
			return nil, retry.Retryable(err)
		}
		if int64(len(data)) > c.maxBytes {
			return nil, retry.Permanent(fmt.Errorf("download %s: file exceeds %d bytes", fileID, c.maxBytes))
		}
		return data, nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// isRetryableError: rate limits, server errors and transport failures.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if IsUserBlocked(err) || IsChatNotFound(err) || isParseError(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "bad request") || strings.Contains(msg, "unauthorized") {
		return false
	}
	return true
}

func isParseError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "can't parse entities")
}

// IsChatNotFound reports that the chat no longer exists.
func IsChatNotFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "chat not found")
}

// IsUserBlocked reports that the user blocked the bot.
func IsUserBlocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "bot was blocked") || strings.Contains(msg, "user is deactivated")
}
