package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tutor")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ELEVENLABS_API_KEY", "el-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "English Profesor Expert", cfg.App.Name)
	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, time.UTC, cfg.App.Location)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.Equal(t, 0.7, cfg.LLM.ChatTemperature)
	assert.Equal(t, 0.3, cfg.LLM.EvaluationTemperature)
	assert.Equal(t, TTSElevenLabs, cfg.Speech.TTSProvider)
	assert.Equal(t, "kC1WIuSSgwH2T8iOV4iJ", cfg.Speech.ElevenLabsVoiceID)
	assert.Equal(t, 30*time.Second, cfg.Speech.Timeout)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTP.Addr())
	assert.Equal(t, 720*time.Hour, cfg.Auth.JWTExpiry)
	assert.Equal(t, 3*time.Hour, cfg.Worker.LessonIdleTimeout)
	assert.Equal(t, 15*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, "10 0 * * *", cfg.Worker.DailyStatsCron)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "America/Mexico_City")
	t.Setenv("TTS_PROVIDER", "GOOGLE")
	t.Setenv("STT_PROVIDER", "google")
	t.Setenv("ADMIN_API_KEYS", " k1, ,k2 ")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("OPENAI_BASE_URL", "http://llm.local/v1/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "America/Mexico_City", cfg.App.Location.String())
	assert.Equal(t, TTSGoogle, cfg.Speech.TTSProvider)
	assert.Equal(t, STTGoogle, cfg.Speech.STTProvider)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.AdminAPIKeys)
	assert.Len(t, cfg.HTTP.CORSOrigins, 2)
	assert.Equal(t, "http://llm.local/v1", cfg.LLM.BaseURL)
}

func TestLoad_BadTimezoneFallsBackToUTC(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "Mars/Olympus")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.App.Location)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TTS_PROVIDER", "espeak")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "TELEGRAM_BOT_TOKEN is required")
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "OPENAI_API_KEY is required")
	assert.Contains(t, msg, "TTS_PROVIDER must be")
}

func TestValidate_Production(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEBUG", "true")
	t.Setenv("SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY is required in production")
	assert.Contains(t, err.Error(), "DEBUG must be off in production")
}

func TestLoadWorker_SkipsBotSecrets(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tutor")
	t.Setenv("WORKER_DAILY_STATS_CRON", "0 3 * * *")

	cfg, err := LoadWorker()
	require.NoError(t, err)
	assert.Equal(t, "0 3 * * *", cfg.Worker.DailyStatsCron)

	t.Setenv("DATABASE_URL", "")
	t.Setenv("WORKER_INTERVAL", "-1m")
	_, err = LoadWorker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "WORKER_INTERVAL must be positive")
}

func TestEnvHelpers_InvalidValuesUseDefault(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "pi")

	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, 1.5, getEnvFloat("X_FLOAT", 1.5))
}
