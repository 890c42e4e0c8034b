package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadFrom_DefaultsAndEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("KAKAO_CLIENT_ID", "kakao-app")
	t.Setenv("API_BASE_URL", "http://backend:8000/api/v1")

	cfg, v, err := LoadFrom(t.TempDir(), "test")
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, "test", cfg.AppEnv)
	assert.Equal(t, "http://backend:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Query.StaleTime)
	assert.Equal(t, 3, cfg.Query.MaxRetries)
	assert.Equal(t, "inline", cfg.Likes.Mode)
	assert.Equal(t, time.Hour, cfg.Payment.Window)
	assert.Equal(t, "123-456-789012", cfg.Payment.AccountNumber)
	assert.Equal(t, "sohaeng_session", cfg.Session.CookieName)
	assert.Equal(t, 10, cfg.RateLimit.Rules["login"].Limit)
}

func TestLoadFrom_YAMLOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("KAKAO_CLIENT_ID", "kakao-app")

	dir := t.TempDir()
	content := []byte("likes:\n  mode: queue\nquery:\n  stale_time: 1m\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), content, 0o600))

	cfg, _, err := LoadFrom(dir, "staging")
	require.NoError(t, err)

	assert.Equal(t, "queue", cfg.Likes.Mode)
	assert.Equal(t, time.Minute, cfg.Query.StaleTime)
}

func TestLoadFrom_ValidationFails(t *testing.T) {
	t.Setenv("SESSION_SECRET", "short")
	t.Setenv("KAKAO_CLIENT_ID", "kakao-app")

	_, _, err := LoadFrom(t.TempDir(), "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoadFrom_RejectsUnknownLikesMode(t *testing.T) {
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("KAKAO_CLIENT_ID", "kakao-app")
	t.Setenv("LIKES_MODE", "carrier-pigeon")

	_, _, err := LoadFrom(t.TempDir(), "test")
	require.Error(t, err)
}
