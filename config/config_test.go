package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "gemini-1.5-pro", cfg.GeminiModel)
	assert.Equal(t, BackendClassifier, cfg.InferenceBackend)
	assert.Equal(t, 1, cfg.PositiveChannel)
	assert.Equal(t, 1, cfg.TumorClassID)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.PersistenceEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("INFERENCE_BACKEND", "detector")
	t.Setenv("TUMOR_CLASS_ID", "2")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("DB_HOST", "db.internal")

	cfg := Load()

	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, BackendDetector, cfg.InferenceBackend)
	assert.Equal(t, 2, cfg.TumorClassID)
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout)
	assert.True(t, cfg.PersistenceEnabled())
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("MAX_RETRIES", "not-a-number")
	t.Setenv("INFERENCE_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.InferenceTimeout)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := Load()
	cfg.GeminiAPIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := Load()
	cfg.GeminiAPIKey = "key"
	cfg.InferenceBackend = "quantum"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFERENCE_BACKEND")
}

func TestValidateAcceptsStubBackend(t *testing.T) {
	cfg := Load()
	cfg.GeminiAPIKey = "key"
	cfg.InferenceBackend = BackendStub

	assert.NoError(t, cfg.Validate())
}
