package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	API      APIConfig   `yaml:"api"`
	Audio    AudioConfig `yaml:"audio"`
	Persist  bool        `yaml:"persist"`
	LogLevel string      `yaml:"log_level"`
}

// APIConfig holds speech-to-text service settings.
type APIConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	KeyEnv       string        `yaml:"key_env"` // env var holding the subscription key
	LanguageCode string        `yaml:"language_code"`
	Model        string        `yaml:"model"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AudioConfig holds decoding and capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	FFmpegPath string `yaml:"ffmpeg_path"`
}

const (
	DefaultEndpoint     = "https://api.sarvam.ai/speech-to-text"
	DefaultKeyEnv       = "SARVAM_API_KEY"
	DefaultLanguageCode = "ml-IN"
	DefaultModel        = "saarika:v2"
	DefaultTimeout      = 60 * time.Second
)

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "gostt-sarvam")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:     DefaultEndpoint,
			KeyEnv:       DefaultKeyEnv,
			LanguageCode: DefaultLanguageCode,
			Model:        DefaultModel,
			Timeout:      DefaultTimeout,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			FFmpegPath: "ffmpeg",
		},
		Persist:  true,
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in audio.ffmpeg_path is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Audio.FFmpegPath = expandTilde(cfg.Audio.FFmpegPath)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.API.Endpoint == "" {
		return fmt.Errorf("api.endpoint must not be empty")
	}
	if !strings.HasPrefix(c.API.Endpoint, "http://") && !strings.HasPrefix(c.API.Endpoint, "https://") {
		return fmt.Errorf("api.endpoint must be an http(s) URL, got %q", c.API.Endpoint)
	}

	if c.API.KeyEnv == "" {
		return fmt.Errorf("api.key_env must not be empty")
	}

	if c.API.LanguageCode == "" {
		return fmt.Errorf("api.language_code must not be empty")
	}

	if c.API.Model == "" {
		return fmt.Errorf("api.model must not be empty")
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog.Level. Unknown values
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigHeader = `# gostt-sarvam configuration
# The subscription key is never stored here: export it in the variable named
# by api.key_env, or put it in a .env file next to where you run the tool.
`

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there yet. It returns the written path, or "" when a config
// already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	content := append([]byte(defaultConfigHeader), data...)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
