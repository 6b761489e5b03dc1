package speech

import (
	"context"
	"fmt"
	"strings"
	"time"

	gspeech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOOGLE TEXT-TO-SPEECH
// ══════════════════════════════════════════════════════════════════════════════

// GoogleTTS synthesizes MP3 audio with Google Cloud Text-to-Speech.
// Credentials come from Application Default Credentials.
type GoogleTTS struct {
	client   *texttospeech.Client
	language string
	voice    string
	timeout  time.Duration
}

// NewGoogleTTS dials the service.
func NewGoogleTTS(ctx context.Context, language, voice string, timeout time.Duration) (*GoogleTTS, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("texttospeech client: %w", err)
	}
	if language == "" {
		language = "en-US"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleTTS{client: client, language: language, voice: voice, timeout: timeout}, nil
}

// Name identifies the provider.
func (g *GoogleTTS) Name() string { return "google_tts" }

// Synthesize returns MP3 bytes for text.
func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.SynthesizeSpeech(ctx, synthesisRequest(text, g.language, g.voice))
	if err != nil {
		return nil, fmt.Errorf("SynthesizeSpeech: %w", err)
	}
	return resp.AudioContent, nil
}

// Close releases the gRPC connection.
func (g *GoogleTTS) Close() error { return g.client.Close() }

func synthesisRequest(text, language, voice string) *texttospeechpb.SynthesizeSpeechRequest {
	return &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			Name:         voice,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_FEMALE,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// GOOGLE SPEECH-TO-TEXT
// ══════════════════════════════════════════════════════════════════════════════

// Telegram voice notes are OGG/Opus at 48 kHz.
const voiceSampleRate = 48000

// GoogleSTT transcribes voice notes with Google Cloud Speech-to-Text.
type GoogleSTT struct {
	client  *gspeech.Client
	timeout time.Duration
}

// NewGoogleSTT dials the service.
func NewGoogleSTT(ctx context.Context, timeout time.Duration) (*GoogleSTT, error) {
	client, err := gspeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GoogleSTT{client: client, timeout: timeout}, nil
}

// Name identifies the provider.
func (g *GoogleSTT) Name() string { return "google_stt" }

// Transcribe recognizes Spanish first, English as alternative.
func (g *GoogleSTT) Transcribe(ctx context.Context, audio []byte, _ string) (string, error) {
	if len(audio) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Recognize(ctx, recognizeRequest(audio))
	if err != nil {
		return "", fmt.Errorf("Recognize: %w", err)
	}
	return joinTranscripts(resp), nil
}

// Close releases the gRPC connection.
func (g *GoogleSTT) Close() error { return g.client.Close() }

func recognizeRequest(audio []byte) *speechpb.RecognizeRequest {
	return &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_OGG_OPUS,
			SampleRateHertz:            voiceSampleRate,
			LanguageCode:               "es-ES",
			AlternativeLanguageCodes:   []string{"en-US"},
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}
}

func joinTranscripts(resp *speechpb.RecognizeResponse) string {
	if resp == nil {
		return ""
	}
	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
