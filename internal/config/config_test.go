package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every MANUALDESK_ variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MANUALDESK_CONFIG", "MANUALDESK_API_URL", "MANUALDESK_LOCALE", "MANUALDESK_THEME",
		"MANUALDESK_TTS_COMMAND", "MANUALDESK_LOG_FILE", "MANUALDESK_LOG_LEVEL",
		"MANUALDESK_CHAT_TIMEOUT", "MANUALDESK_UPLOAD_TIMEOUT", "MANUALDESK_LIST_TIMEOUT",
		"MANUALDESK_DELETE_TIMEOUT", "MANUALDESK_DOWNLOAD_TIMEOUT", "MANUALDESK_SUMMARY_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFileDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.APIURL)
	assert.Equal(t, "en", cfg.Locale)
	assert.Equal(t, 5*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, 10*time.Second, cfg.ListTimeout)
	assert.Equal(t, 30*time.Second, cfg.DownloadTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadFileOverlayAndEnvPrecedence(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_url: http://manuals.internal:8080/api/
locale: de
log_level: debug
timeouts:
  list: 15s
  upload: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("MANUALDESK_LOCALE", "fr")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://manuals.internal:8080/api", cfg.APIURL, "trailing slash is trimmed")
	assert.Equal(t, "fr", cfg.Locale, "env wins over file")
	assert.Equal(t, 15*time.Second, cfg.ListTimeout)
	assert.Equal(t, 10*time.Minute, cfg.UploadTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadFileRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("MANUALDESK_CHAT_TIMEOUT", "soon")

	_, err := LoadFile("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MANUALDESK_CHAT_TIMEOUT")
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeouts: [unclosed"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("manual uploaded", "file", "m.pdf")
	logger.Debug("hidden")

	assert.Contains(t, stderr.String(), "manual uploaded")
	assert.Contains(t, file.String(), `"file":"m.pdf"`)
	assert.NotContains(t, stderr.String(), "hidden")
}
