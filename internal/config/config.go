package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends selectable through STORE_BACKEND.
const (
	StoreBackendGitHub = "github"
	StoreBackendBolt   = "bolt"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App    AppConfig
	Store  StoreConfig
	GitHub GitHubConfig
	Bolt   BoltConfig
	Logger LoggerConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// StoreConfig selects where the ticket collection lives.
type StoreConfig struct {
	Backend string
}

// GitHubConfig points at the repository file holding the ticket collection.
type GitHubConfig struct {
	Token          string
	Owner          string
	Repo           string
	Path           string
	Branch         string
	BaseURL        string
	TimeoutSeconds int
}

// BoltConfig holds the local store file location.
type BoltConfig struct {
	Path string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// Load reads configuration from environment variables, applying defaults where possible.
// The given env files are loaded first; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		_ = godotenv.Load(file)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-intake"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", StoreBackendGitHub)),
		},
		GitHub: GitHubConfig{
			Token:          os.Getenv("GITHUB_TOKEN"),
			Owner:          getEnv("GITHUB_OWNER", "Delta-Silence"),
			Repo:           getEnv("GITHUB_REPO", "tickets"),
			Path:           getEnv("GITHUB_PATH", "tickets.json"),
			Branch:         os.Getenv("GITHUB_BRANCH"),
			BaseURL:        getEnv("GITHUB_API_URL", "https://api.github.com"),
			TimeoutSeconds: getEnvAsInt("GITHUB_TIMEOUT_SECONDS", 15),
		},
		Bolt: BoltConfig{
			Path: getEnv("BOLT_PATH", "tickets.db"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case StoreBackendGitHub:
		if c.GitHub.Token == "" {
			return errors.New("GITHUB_TOKEN is required")
		}
	case StoreBackendBolt:
		if c.Bolt.Path == "" {
			return errors.New("BOLT_PATH is required")
		}
	default:
		return fmt.Errorf("invalid STORE_BACKEND: %q", c.Store.Backend)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the GitHub client timeout.
func (g GitHubConfig) Timeout() time.Duration {
	if g.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(g.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
