package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/application/command"
	"github.com/englishprofesor/tutor-bot/internal/domain/catalog"
	"github.com/englishprofesor/tutor-bot/internal/domain/student"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/handler"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/middleware"
	"github.com/englishprofesor/tutor-bot/internal/interface/telegram/presenter"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeClient struct {
	mu      sync.Mutex
	texts   []string
	updates chan tgbotapi.Update
	stopped bool
}

func (c *fakeClient) SendMarkdown(_ context.Context, _ int64, text string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeClient) SendText(ctx context.Context, chatID int64, text string) error {
	return c.SendMarkdown(ctx, chatID, text, nil)
}

func (c *fakeClient) SendVoice(context.Context, int64, []byte) error { return nil }
func (c *fakeClient) SendAction(context.Context, int64, string)     {}
func (c *fakeClient) DownloadFile(context.Context, string) ([]byte, error) {
	return nil, errors.New("no files")
}

func (c *fakeClient) Updates(int) (tgbotapi.UpdatesChannel, error) { return c.updates, nil }

func (c *fakeClient) StopUpdates() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
}

func (c *fakeClient) sentTexts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type stubResolver struct{ s *student.Student }

func (r stubResolver) Handle(context.Context, command.ResolveStudentCommand) (*command.ResolveStudentResult, error) {
	return &command.ResolveStudentResult{Student: r.s}, nil
}

type stubFinder struct{}

func (stubFinder) GetByTelegramID(context.Context, student.TelegramID) (*student.Student, error) {
	return nil, student.ErrStudentNotFound
}

type stubTurns struct {
	mu    sync.Mutex
	texts []string
	err   error
	panic bool
}

func (t *stubTurns) Handle(ctx context.Context, cmd command.ProcessTurnCommand) (*command.ProcessTurnResult, error) {
	if t.panic {
		panic("unexpected nil")
	}
	t.mu.Lock()
	t.texts = append(t.texts, cmd.Text)
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return &command.ProcessTurnResult{Reply: "ok"}, cmd.Delivery.SendText(ctx, "ok")
}

type stubEnder struct{}

func (stubEnder) Handle(context.Context, command.EndLessonCommand) (*command.EndLessonResult, error) {
	return nil, errors.New("not used")
}

type stubSTT struct{}

func (stubSTT) Transcribe(context.Context, []byte, string) (string, error) { return "hi", nil }

func newTestBot(t *testing.T, turns *stubTurns) (*Bot, *fakeClient) {
	t.Helper()
	cat := catalog.Default()
	s, err := student.NewStudent(student.Profile{TelegramID: 42, FirstName: "Ana"}, cat, time.Now())
	require.NoError(t, err)
	s.CurrentLevelID = cat.Lowest().ID

	client := &fakeClient{updates: make(chan tgbotapi.Update, 4)}
	cfg := DefaultBotConfig()
	cfg.Logger = logger.Discard()
	cfg.RateLimit = middleware.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3}

	bot, err := NewBot(cfg, BotDependencies{
		Client:      client,
		Resolver:    stubResolver{s: s},
		Students:    stubFinder{},
		Turns:       turns,
		Lessons:     stubEnder{},
		Transcriber: stubSTT{},
		Catalog:     cat,
	})
	require.NoError(t, err)
	return bot, client
}

func textMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 42, FirstName: "Ana", UserName: "ana", LanguageCode: "es"},
		Chat:      &tgbotapi.Chat{ID: 42},
		Text:      text,
	}
}

func commandMessage(cmd, args string) *tgbotapi.Message {
	text := "/" + cmd
	if args != "" {
		text += " " + args
	}
	m := textMessage(text)
	m.Entities = &[]tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}}
	return m
}

// ─────────────────────────────────────────────────────────────────────────────
// Router
// ─────────────────────────────────────────────────────────────────────────────

func TestRouter_Resolve(t *testing.T) {
	bot, _ := newTestBot(t, &stubTurns{})
	r := bot.Router()

	assert.Equal(t, []string{"end", "help", "level", "panel", "progress", "start"}, r.Commands())

	kind, h, req := r.Resolve(commandMessage("start", "promo"))
	assert.Equal(t, RouteCommand, kind)
	assert.NotNil(t, h)
	assert.Equal(t, "promo", req.Args)
	assert.Equal(t, student.Profile{TelegramID: 42, FirstName: "Ana", Username: "ana", LanguageCode: "es"}, req.Profile)

	kind, _, _ = r.Resolve(commandMessage("unknown", ""))
	assert.Equal(t, RouteCommand, kind)

	voice := textMessage("")
	voice.Voice = &tgbotapi.Voice{FileID: "abc"}
	kind, _, req = r.Resolve(voice)
	assert.Equal(t, RouteVoice, kind)
	assert.Equal(t, "abc", req.VoiceFileID)

	kind, _, req = r.Resolve(textMessage("Hello"))
	assert.Equal(t, RouteText, kind)
	assert.Equal(t, int64(42), req.ChatID)

	for _, m := range []*tgbotapi.Message{nil, textMessage("   "), {Text: "no sender"}} {
		kind, h, _ = r.Resolve(m)
		assert.Equal(t, RouteIgnored, kind)
		assert.Nil(t, h)
	}

	fromBot := textMessage("hi")
	fromBot.From.IsBot = true
	kind, _, _ = r.Resolve(fromBot)
	assert.Equal(t, RouteIgnored, kind)
}

func TestRouter_CommandMatchIsCaseInsensitive(t *testing.T) {
	r := NewRouter(logger.Discard())
	called := false
	r.RegisterCommand("/Help", handler.HandlerFunc(func(context.Context, handler.Request) error {
		called = true
		return nil
	}))

	handled, err := r.Route(context.Background(), commandMessage("HELP", ""))
	require.NoError(t, err)
	assert.True(t, handled)
	assert.True(t, called)
}

func TestRouter_VoiceWithoutHandlerIgnored(t *testing.T) {
	r := NewRouter(logger.Discard())
	voice := textMessage("")
	voice.Voice = &tgbotapi.Voice{FileID: "abc"}

	handled, err := r.Route(context.Background(), voice)
	require.NoError(t, err)
	assert.False(t, handled)
}

// ─────────────────────────────────────────────────────────────────────────────
// Bot
// ─────────────────────────────────────────────────────────────────────────────

func TestBot_HandleMessage_Text(t *testing.T) {
	turns := &stubTurns{}
	bot, client := newTestBot(t, turns)

	bot.HandleMessage(context.Background(), 1, textMessage("Hello tutor"))

	assert.Equal(t, []string{"Hello tutor"}, turns.texts)
	assert.Equal(t, []string{"ok"}, client.sentTexts())
	assert.Equal(t, int64(1), bot.Stats().UpdatesHandled)
}

func TestBot_HandleMessage_ErrorReply(t *testing.T) {
	bot, client := newTestBot(t, &stubTurns{err: errors.New("db down")})

	bot.HandleMessage(context.Background(), 1, textMessage("Hello"))

	assert.Equal(t, []string{presenter.ErrorText}, client.sentTexts())
	assert.Equal(t, int64(1), bot.Stats().Errors)
}

func TestBot_HandleMessage_PanicRecovered(t *testing.T) {
	bot, client := newTestBot(t, &stubTurns{panic: true})

	assert.NotPanics(t, func() {
		bot.HandleMessage(context.Background(), 1, textMessage("Hello"))
	})
	assert.Equal(t, []string{presenter.ErrorText}, client.sentTexts())
	assert.Equal(t, int64(1), bot.Stats().Panics)
}

func TestBot_HandleMessage_RateLimited(t *testing.T) {
	turns := &stubTurns{}
	bot, client := newTestBot(t, turns)

	for i := 0; i < 4; i++ {
		bot.HandleMessage(context.Background(), i, textMessage("spam"))
	}

	assert.Len(t, turns.texts, 3)
	texts := client.sentTexts()
	assert.Contains(t, texts[len(texts)-1], "Vas muy rápido")
	assert.Equal(t, int64(1), bot.Stats().RateLimited)
}

func TestBot_StartStop(t *testing.T) {
	turns := &stubTurns{}
	bot, client := newTestBot(t, turns)

	errCh := make(chan error, 1)
	go func() { errCh <- bot.Start(context.Background()) }()

	client.updates <- tgbotapi.Update{UpdateID: 1, Message: textMessage("Hi")}
	require.Eventually(t, func() bool { return len(client.sentTexts()) == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, bot.Stop(ctx))
	require.NoError(t, <-errCh)

	assert.False(t, bot.IsRunning())
	client.mu.Lock()
	assert.True(t, client.stopped)
	client.mu.Unlock()
	assert.Equal(t, int64(1), bot.Stats().UpdatesReceived)
}

func TestNewBot_RequiresClient(t *testing.T) {
	_, err := NewBot(DefaultBotConfig(), BotDependencies{})
	require.Error(t, err)
}
