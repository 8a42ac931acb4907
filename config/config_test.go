package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsia/hr-portal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "artsia.db", cfg.DBPath)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 60*24*time.Hour, cfg.PushRetention)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.False(t, cfg.PushEnabled())
	assert.False(t, cfg.EmailEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("ARTSIA_PORT", "9090")
	t.Setenv("ARTSIA_DB_PATH", ":memory:")
	t.Setenv("ARTSIA_SESSION_TTL", "12h")
	t.Setenv("ARTSIA_CORS_ORIGINS", "https://hr.artsia.it, https://app.artsia.it")
	t.Setenv("ARTSIA_LOG_PRETTY", "true")
	t.Setenv("ARTSIA_EMAIL_SENDER", "hr@artsia.it")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"https://hr.artsia.it", "https://app.artsia.it"}, cfg.CORSOrigins)
	assert.True(t, cfg.LogPretty)
	assert.True(t, cfg.EmailEnabled())
}

func TestLoad_DotEnvFile(t *testing.T) {
	// GIVEN: a .env file with a key that is not in the environment
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARTSIA_VAPID_SUBJECT=mailto:it@artsia.it\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ARTSIA_VAPID_SUBJECT") })

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mailto:it@artsia.it", cfg.VAPIDSubject)

	// THEN: a missing file is ignored
	_, err = config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("ARTSIA_PORT", "70000")
	t.Setenv("ARTSIA_VAPID_PUBLIC_KEY", "only-public")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARTSIA_PORT")
	assert.Contains(t, err.Error(), "VAPID")
}

func TestLoad_NonPositiveMaintenanceDurations(t *testing.T) {
	t.Setenv("ARTSIA_MAINTENANCE_INTERVAL", "0s")
	t.Setenv("ARTSIA_PUSH_RETENTION", "-1h")

	_, err := config.Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARTSIA_MAINTENANCE_INTERVAL")
	assert.Contains(t, err.Error(), "ARTSIA_PUSH_RETENTION")
}
