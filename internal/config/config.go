// Package config loads manualdesk settings from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values.
type Config struct {
	// Backend
	APIURL string

	// Per-operation request ceilings
	ChatTimeout     time.Duration
	UploadTimeout   time.Duration
	ListTimeout     time.Duration
	DeleteTimeout   time.Duration
	DownloadTimeout time.Duration
	SummaryTimeout  time.Duration

	// Presentation
	Locale string
	Theme  string

	// Text-to-speech command, e.g. "espeak -v {lang}". Empty disables speech.
	TTSCommand string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// fileConfig mirrors the YAML config file. Every field is optional.
type fileConfig struct {
	APIURL   string `yaml:"api_url"`
	Locale   string `yaml:"locale"`
	Theme    string `yaml:"theme"`
	TTS      string `yaml:"tts_command"`
	LogFile  string `yaml:"log_file"`
	LogLevel string `yaml:"log_level"`
	Timeouts struct {
		Chat     string `yaml:"chat"`
		Upload   string `yaml:"upload"`
		List     string `yaml:"list"`
		Delete   string `yaml:"delete"`
		Download string `yaml:"download"`
		Summary  string `yaml:"summary"`
	} `yaml:"timeouts"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "manualdesk", "config.yaml")
}

// Load reads configuration from the config file (MANUALDESK_CONFIG or the
// default path) and then from environment variables, which take precedence.
// A missing config file is not an error.
func Load() (Config, error) {
	path := os.Getenv("MANUALDESK_CONFIG")
	if path == "" {
		path = DefaultPath()
	}
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return fromSources(fc)
}

// LoadFile reads configuration from the given YAML file plus the environment.
func LoadFile(path string) (Config, error) {
	fc, err := readFile(path)
	if err != nil {
		return Config{}, err
	}
	return fromSources(fc)
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fc, nil
	}
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

func fromSources(fc fileConfig) (Config, error) {
	cfg := Config{
		APIURL:     strings.TrimRight(getEnv("MANUALDESK_API_URL", or(fc.APIURL, "http://localhost:5000/api")), "/"),
		Locale:     getEnv("MANUALDESK_LOCALE", or(fc.Locale, "en")),
		Theme:      getEnv("MANUALDESK_THEME", or(fc.Theme, "dark")),
		TTSCommand: getEnv("MANUALDESK_TTS_COMMAND", fc.TTS),
		LogFile:    getEnv("MANUALDESK_LOG_FILE", or(fc.LogFile, "/tmp/manualdesk.log")),
		LogLevel:   parseLogLevel(getEnv("MANUALDESK_LOG_LEVEL", or(fc.LogLevel, "INFO"))),
	}

	timeouts := []struct {
		dst  *time.Duration
		env  string
		file string
		def  time.Duration
	}{
		{&cfg.ChatTimeout, "MANUALDESK_CHAT_TIMEOUT", fc.Timeouts.Chat, 2 * time.Minute},
		{&cfg.UploadTimeout, "MANUALDESK_UPLOAD_TIMEOUT", fc.Timeouts.Upload, 5 * time.Minute},
		{&cfg.ListTimeout, "MANUALDESK_LIST_TIMEOUT", fc.Timeouts.List, 10 * time.Second},
		{&cfg.DeleteTimeout, "MANUALDESK_DELETE_TIMEOUT", fc.Timeouts.Delete, time.Minute},
		{&cfg.DownloadTimeout, "MANUALDESK_DOWNLOAD_TIMEOUT", fc.Timeouts.Download, 30 * time.Second},
		{&cfg.SummaryTimeout, "MANUALDESK_SUMMARY_TIMEOUT", fc.Timeouts.Summary, time.Minute},
	}
	for _, t := range timeouts {
		raw := getEnv(t.env, t.file)
		if raw == "" {
			*t.dst = t.def
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("invalid duration for %s: %q", t.env, raw)
		}
		*t.dst = d
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func or(val, fallback string) string {
	if val != "" {
		return val
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
