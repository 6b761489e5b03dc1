package telegram

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func body(s string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(s))),
	}
}

const getMeOK = `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Tutor","username":"tutor_bot"}}`
const sentOK = `{"ok":true,"result":{"message_id":10,"date":0,"chat":{"id":42,"type":"private"}}}`

// fakeAPI records calls and lets each test script the answers.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []string
	forms  []map[string]string
	answer func(method string, form map[string]string) *http.Response
}

func (f *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	hc := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		method := req.URL.Path[strings.LastIndex(req.URL.Path, "/")+1:]
		form := map[string]string{}
		if req.Header.Get("Content-Type") == "application/x-www-form-urlencoded" {
			_ = req.ParseForm()
			for k := range req.PostForm {
				form[k] = req.PostForm.Get(k)
			}
		}
		f.mu.Lock()
		f.calls = append(f.calls, method)
		f.forms = append(f.forms, form)
		f.mu.Unlock()

		if method == "getMe" {
			return body(getMeOK), nil
		}
		return f.answer(method, form), nil
	})}

	cfg := DefaultClientConfig("TOKEN")
	cfg.HTTPClient = hc
	cfg.Logger = logger.Discard()
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClient_Username(t *testing.T) {
	f := &fakeAPI{}
	c := f.client(t)
	assert.Equal(t, "tutor_bot", c.Username())
}

func TestSendMarkdown_FallsBackToPlainText(t *testing.T) {
	f := &fakeAPI{answer: func(method string, form map[string]string) *http.Response {
		if form["parse_mode"] == "Markdown" {
			return body(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities: byte offset 3"}`)
		}
		return body(sentOK)
	}}
	c := f.client(t)

	err := c.SendMarkdown(context.Background(), 42, "a *b", nil)
	require.NoError(t, err)

	// getMe + markdown attempt (not retried) + plain resend
	assert.Equal(t, []string{"getMe", "sendMessage", "sendMessage"}, f.calls)
	assert.Equal(t, "", f.forms[2]["parse_mode"])
	assert.Equal(t, "a *b", f.forms[2]["text"])
}

func TestSend_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	f := &fakeAPI{answer: func(method string, form map[string]string) *http.Response {
		attempts++
		if attempts < 3 {
			return body(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 0"}`)
		}
		return body(sentOK)
	}}
	c := f.client(t)

	require.NoError(t, c.SendText(context.Background(), 42, "hola"))
	assert.Equal(t, 3, attempts)
}

func TestSend_BlockedIsPermanent(t *testing.T) {
	attempts := 0
	f := &fakeAPI{answer: func(method string, form map[string]string) *http.Response {
		attempts++
		return body(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
	}}
	c := f.client(t)

	err := c.SendText(context.Background(), 42, "hola")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.True(t, shared.IsExternalService(err))
	assert.True(t, IsUserBlocked(err))
}

func TestDownloadFile(t *testing.T) {
	var hc *http.Client
	f := &fakeAPI{}
	c := f.client(t)
	hc = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/getFile") {
			return body(`{"ok":true,"result":{"file_id":"F1","file_path":"voice/file_1.oga"}}`), nil
		}
		assert.Equal(t, "/file/botTOKEN/voice/file_1.oga", req.URL.Path)
		return body("OggS-data"), nil
	})}
	c.api.Client = hc
	c.http = hc

	data, err := c.DownloadFile(context.Background(), "F1")
	require.NoError(t, err)
	assert.Equal(t, []byte("OggS-data"), data)
}

func TestDownloadFile_TooLarge(t *testing.T) {
	f := &fakeAPI{}
	c := f.client(t)
	hc := &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/getFile") {
			return body(`{"ok":true,"result":{"file_id":"F1","file_path":"voice/big.oga"}}`), nil
		}
		return body(strings.Repeat("x", 32)), nil
	})}
	c.api.Client = hc
	c.http = hc
	c.maxBytes = 16

	_, err := c.DownloadFile(context.Background(), "F1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, isRetryableError(errors.New("Too Many Requests: retry after 1")))
	assert.True(t, isRetryableError(errors.New("connection reset by peer")))
	assert.False(t, isRetryableError(errors.New("Bad Request: message is too long")))
	assert.False(t, isRetryableError(errors.New("Forbidden: bot was blocked by the user")))
	assert.False(t, isRetryableError(context.Canceled))
	assert.True(t, IsChatNotFound(errors.New("Bad Request: chat not found")))
	assert.True(t, isParseError(errors.New("Bad Request: can't parse entities")))
}
