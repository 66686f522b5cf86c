package infra

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("OPENROUTER_BASE_URL", "")
	t.Setenv("BULK_MAX_IMAGES", "")
	t.Setenv("BULK_WORKERS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "8080")
	}
	if cfg.OpenRouterBaseURL != "https://openrouter.ai/api/v1" {
		t.Fatalf("OpenRouterBaseURL mismatch: got %q", cfg.OpenRouterBaseURL)
	}
	if cfg.BulkMaxImages != 100 {
		t.Fatalf("BulkMaxImages mismatch: got %d want 100", cfg.BulkMaxImages)
	}
	if cfg.BulkWorkers != 5 {
		t.Fatalf("BulkWorkers mismatch: got %d want 5", cfg.BulkWorkers)
	}
	if cfg.DefaultLanguage != "en" {
		t.Fatalf("DefaultLanguage mismatch: got %q want %q", cfg.DefaultLanguage, "en")
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted empty DATABASE_URL")
	}
}

func TestLoadConfigRequiresOpenRouterKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted empty OPENROUTER_API_KEY")
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "1919")
	t.Setenv("BULK_WORKERS", "12")
	t.Setenv("HTTP_WRITE_TIMEOUT_SECONDS", "45")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port mismatch: got %q want %q", cfg.Port, "1919")
	}
	if cfg.BulkWorkers != 12 {
		t.Fatalf("BulkWorkers mismatch: got %d want 12", cfg.BulkWorkers)
	}
	if got := cfg.HTTPWriteTimeout.Seconds(); got != 45 {
		t.Fatalf("HTTPWriteTimeout mismatch: got %vs want 45s", got)
	}
}
