package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIBaseURL = "http://localhost:8000"
	DefaultWSBaseURL  = "ws://localhost:8000/ws"
)

type Config struct {
	APIBaseURL string
	WSBaseURL  string

	Port     int
	GinMode  string
	LogLevel slog.Level

	AuthToken  string
	LocationID string
	ContactID  string
	Profile    string

	RequestTimeout time.Duration
	DiscardStale   bool
	WSReconnect    bool

	FakeAPISecret string
	FakeAPIPort   int
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

// LoadConfig reads .env from the working directory when present, then the
// process environment. Variables already set win over the file.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		APIBaseURL:   DefaultAPIBaseURL,
		WSBaseURL:    DefaultWSBaseURL,
		Port:         3000,
		GinMode:      "release",
		LogLevel:     slog.LevelInfo,
		DiscardStale: true,
		FakeAPIPort:  8000,
	}

	if raw := firstOf(env, "API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); raw != "" {
		if err := checkURL(raw, "http", "https"); err != nil {
			return Config{}, fmt.Errorf("invalid API_BASE_URL: %w", err)
		}
		cfg.APIBaseURL = strings.TrimRight(raw, "/")
	}
	if raw := firstOf(env, "WS_BASE_URL", "NEXT_PUBLIC_WS_BASE_URL"); raw != "" {
		if err := checkURL(raw, "ws", "wss"); err != nil {
			return Config{}, fmt.Errorf("invalid WS_BASE_URL: %w", err)
		}
		cfg.WSBaseURL = raw
	}

	port, err := portFrom(env, "PORT", cfg.Port)
	if err != nil {
		return Config{}, err
	}
	cfg.Port = port

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}

	if raw := env.Getenv("LOG_LEVEL"); raw != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(raw)); err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL")
		}
	}

	cfg.AuthToken = strings.TrimSpace(env.Getenv("AUTH_TOKEN"))
	cfg.LocationID = strings.TrimSpace(env.Getenv("LOCATION_ID"))
	cfg.ContactID = strings.TrimSpace(env.Getenv("CONTACT_ID"))
	cfg.Profile = env.Getenv("CHATLAB_PROFILE")

	if raw := env.Getenv("CHATLAB_REQUEST_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return Config{}, fmt.Errorf("invalid CHATLAB_REQUEST_TIMEOUT_SECONDS")
		}
		cfg.RequestTimeout = time.Duration(seconds) * time.Second
	}

	if cfg.DiscardStale, err = boolFrom(env, "CHATLAB_DISCARD_STALE", cfg.DiscardStale); err != nil {
		return Config{}, err
	}
	if cfg.WSReconnect, err = boolFrom(env, "CHATLAB_WS_RECONNECT", cfg.WSReconnect); err != nil {
		return Config{}, err
	}

	cfg.FakeAPISecret = env.Getenv("FAKEAPI_SECRET")
	if cfg.FakeAPIPort, err = portFrom(env, "FAKEAPI_PORT", cfg.FakeAPIPort); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c Config) FakeAPIAddr() string {
	return fmt.Sprintf(":%d", c.FakeAPIPort)
}

func firstOf(env Env, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(env.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func portFrom(env Env, key string, fallback int) (int, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return port, nil
}

func boolFrom(env Env, key string, fallback bool) (bool, error) {
	raw := env.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, scheme := range schemes {
		if u.Scheme == scheme && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("want %s URL, got %q", strings.Join(schemes, " or "), raw)
}
