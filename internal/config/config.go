// Package config loads runtime settings from the environment, optionally
// seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// ErrMissingAPIURL is returned by Client.Validate without an API URL.
var ErrMissingAPIURL = errors.New("config: ITSM_API_URL is required")

// Client holds the settings of the iomctl client.
type Client struct {
	APIURL       string `env:"ITSM_API_URL"`
	APIToken     string `env:"ITSM_API_TOKEN"`
	LogLevel     string `env:"ITSM_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"ITSM_LOG_FORMAT" envDefault:"text"`
	DebounceMS   int    `env:"ITSM_OPTION_DEBOUNCE_MS" envDefault:"300"`
	PageSize     int    `env:"ITSM_PAGE_SIZE" envDefault:"25"`
	DraftsPath   string `env:"ITSM_DRAFTS_PATH"`
	TimeoutSecs  int    `env:"ITSM_HTTP_TIMEOUT" envDefault:"30"`
	StepAppLabel string `env:"ITSM_STEP_APP_LABEL" envDefault:"iom"`
	StepModel    string `env:"ITSM_STEP_MODEL" envDefault:"genericiom"`
}

// DevServer holds the settings of the development API server.
type DevServer struct {
	Addr      string `env:"ITSM_DEV_ADDR" envDefault:":8085"`
	JWTSecret string `env:"ITSM_DEV_JWT_SECRET" envDefault:"iom-dev-secret"`
	TokenTTL  int    `env:"ITSM_DEV_TOKEN_TTL_MINUTES" envDefault:"720"`
	LogLevel  string `env:"ITSM_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"ITSM_LOG_FORMAT" envDefault:"text"`
}

// LoadEnvFiles loads the given .env files into the process environment.
// Values already set win. With no files, ./.env is loaded when present.
func LoadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		files = []string{".env"}
	}
	for _, file := range files {
		if strings.TrimSpace(file) == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}

// LoadClient loads env files and parses the client settings.
func LoadClient(files ...string) (Client, error) {
	if err := LoadEnvFiles(files...); err != nil {
		return Client{}, err
	}
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("config: parse client settings: %w", err)
	}
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	return cfg, nil
}

// LoadDevServer loads env files and parses the dev server settings.
func LoadDevServer(files ...string) (DevServer, error) {
	if err := LoadEnvFiles(files...); err != nil {
		return DevServer{}, err
	}
	var cfg DevServer
	if err := env.Parse(&cfg); err != nil {
		return DevServer{}, fmt.Errorf("config: parse dev server settings: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings needed to talk to the API.
func (c Client) Validate() error {
	if c.APIURL == "" {
		return ErrMissingAPIURL
	}
	if c.PageSize < 0 {
		return fmt.Errorf("config: ITSM_PAGE_SIZE must not be negative, got %d", c.PageSize)
	}
	return nil
}

// Debounce returns the option search debounce.
func (c Client) Debounce() time.Duration {
	if c.DebounceMS <= 0 {
		return 0
	}
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Timeout returns the HTTP client timeout.
func (c Client) Timeout() time.Duration {
	if c.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Drafts returns the draft database path, defaulting to the user config dir.
func (c Client) Drafts() string {
	if c.DraftsPath != "" {
		return c.DraftsPath
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "iom-drafts.db"
	}
	return filepath.Join(dir, "iomctl", "drafts.db")
}

// TokenTTLDuration returns the lifetime of issued dev tokens.
func (d DevServer) TokenTTLDuration() time.Duration {
	if d.TokenTTL <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(d.TokenTTL) * time.Minute
}
