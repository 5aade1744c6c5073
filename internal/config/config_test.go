package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("ITSM_API_URL", " http://localhost:8085/api/ ")

	cfg, err := LoadClient(filepath.Join(t.TempDir(), "missing.env"))
	if err == nil {
		t.Fatalf("expected error for missing env file")
	}

	cfg, err = LoadClient("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8085/api/" {
		t.Fatalf("api url = %q", cfg.APIURL)
	}
	if cfg.PageSize != 25 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout())
	}
}

func TestLoadClientFromEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "iom.env")
	content := "ITSM_API_URL=http://itsm.test/api/\nITSM_OPTION_DEBOUNCE_MS=150\nITSM_DRAFTS_PATH=/tmp/drafts.db\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	for _, key := range []string{"ITSM_API_URL", "ITSM_OPTION_DEBOUNCE_MS", "ITSM_DRAFTS_PATH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadClient(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://itsm.test/api/" {
		t.Fatalf("api url = %q", cfg.APIURL)
	}
	if cfg.Debounce() != 150*time.Millisecond {
		t.Fatalf("debounce = %v", cfg.Debounce())
	}
	if cfg.Drafts() != "/tmp/drafts.db" {
		t.Fatalf("drafts = %q", cfg.Drafts())
	}
}

func TestClientValidate(t *testing.T) {
	if err := (Client{}).Validate(); err != ErrMissingAPIURL {
		t.Fatalf("expected ErrMissingAPIURL, got %v", err)
	}
	if err := (Client{APIURL: "http://x", PageSize: -1}).Validate(); err == nil {
		t.Fatalf("expected page size error")
	}
}

func TestLoadDevServerDefaults(t *testing.T) {
	t.Setenv("ITSM_DEV_ADDR", ":9999")
	cfg, err := LoadDevServer("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.JWTSecret == "" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TokenTTLDuration() != 12*time.Hour {
		t.Fatalf("ttl = %v", cfg.TokenTTLDuration())
	}
}
