package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/englishprofesor/tutor-bot/internal/domain/shared"
	"github.com/englishprofesor/tutor-bot/pkg/circuitbreaker"
	"github.com/englishprofesor/tutor-bot/pkg/logger"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

type fakeTTS struct {
	got []string
	err error
}

func (f *fakeTTS) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.got = append(f.got, text)
	if f.err != nil {
		return nil, f.err
	}
	return []byte("mp3:" + text), nil
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

func TestService_SynthesizeStripsMarkdown(t *testing.T) {
	tts := &fakeTTS{}
	svc := NewService(tts, &fakeSTT{}, nil, nil, logger.Discard())

	audio, err := svc.Synthesize(context.Background(), "**Hello** _amigo_")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello amigo"}, tts.got)
	assert.Equal(t, []byte("mp3:Hello amigo"), audio)
}

func TestService_SynthesizeEmptySkipsProvider(t *testing.T) {
	tts := &fakeTTS{}
	svc := NewService(tts, &fakeSTT{}, nil, nil, logger.Discard())

	audio, err := svc.Synthesize(context.Background(), "  ** **  ")
	require.NoError(t, err)
	assert.Nil(t, audio)
	assert.Empty(t, tts.got)
}

func TestService_SynthesizeFailureIsExternal(t *testing.T) {
	svc := NewService(&fakeTTS{err: errors.New("quota")}, &fakeSTT{}, nil, nil, logger.Discard())

	_, err := svc.Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, shared.IsExternalService(err))
}

func TestService_TranscribeThroughBreaker(t *testing.T) {
	cb := circuitbreaker.New("stt", circuitbreaker.WithFailureThreshold(1))
	stt := &fakeSTT{err: errors.New("down")}
	svc := NewService(&fakeTTS{}, stt, nil, cb, logger.Discard())

	_, err := svc.Transcribe(context.Background(), []byte("ogg"), "voice.ogg")
	require.Error(t, err)

	_, err = svc.Transcribe(context.Background(), []byte("ogg"), "voice.ogg")
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestService_TranscribeTrims(t *testing.T) {
	svc := NewService(&fakeTTS{}, &fakeSTT{text: "  hola  "}, nil, nil, logger.Discard())
	text, err := svc.Transcribe(context.Background(), []byte("ogg"), "")
	require.NoError(t, err)
	assert.Equal(t, "hola", text)
}

func TestElevenLabs_Synthesize(t *testing.T) {
	el := NewElevenLabs(ElevenLabsConfig{APIKey: "xi"}, logger.Discard()).WithHTTPClient(&http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "/v1/text-to-speech/kC1WIuSSgwH2T8iOV4iJ", req.URL.Path)
			assert.Equal(t, "xi", req.Header.Get("xi-api-key"))
			assert.Equal(t, "audio/mpeg", req.Header.Get("Accept"))

			var body elevenLabsRequest
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			assert.Equal(t, "Hello", body.Text)
			assert.Equal(t, "eleven_multilingual_v2", body.ModelID)
			assert.Equal(t, 0.5, body.VoiceSettings.Stability)
			assert.Equal(t, 0.75, body.VoiceSettings.SimilarityBoost)

			return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewReader([]byte("ID3")))}, nil
		}),
	})

	audio, err := el.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3"), audio)
}

func TestElevenLabs_Non2xx(t *testing.T) {
	el := NewElevenLabs(ElevenLabsConfig{APIKey: "xi"}, logger.Discard()).WithHTTPClient(&http.Client{
		Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusUnauthorized, Body: io.NopCloser(bytes.NewReader([]byte("bad key")))}, nil
		}),
	})

	_, err := el.Synthesize(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestGoogleRequests(t *testing.T) {
	req := recognizeRequest([]byte("ogg"))
	assert.Equal(t, "es-ES", req.GetConfig().GetLanguageCode())
	assert.Equal(t, []string{"en-US"}, req.GetConfig().GetAlternativeLanguageCodes())
	assert.EqualValues(t, 48000, req.GetConfig().GetSampleRateHertz())

	syn := synthesisRequest("Hi", "en-US", "")
	assert.Equal(t, "Hi", syn.GetInput().GetText())
	assert.Equal(t, "en-US", syn.GetVoice().GetLanguageCode())

	assert.Equal(t, "", joinTranscripts(nil))
}
