package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.Server.Addr != ":8765" {
		t.Errorf("expected :8765, got %s", cfg.Server.Addr)
	}
	if cfg.Turn.PatienceSeconds != 60 {
		t.Errorf("expected patience 60, got %v", cfg.Turn.PatienceSeconds)
	}
	if cfg.Persona.ContextTokens != 4096 {
		t.Errorf("expected 4096, got %d", cfg.Persona.ContextTokens)
	}
	if cfg.Turn.Strategy != "hybrid" {
		t.Errorf("expected hybrid, got %s", cfg.Turn.Strategy)
	}
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[persona]
ai_name = "Nova"

[turn]
patience_seconds = 45.5
`), 0644)

	cfg := Load(path)
	if cfg.Persona.AIName != "Nova" {
		t.Errorf("expected Nova, got %s", cfg.Persona.AIName)
	}
	if cfg.Turn.PatienceSeconds != 45.5 {
		t.Errorf("expected 45.5, got %v", cfg.Turn.PatienceSeconds)
	}
	// Defaults preserved
	if cfg.Server.Addr != ":8765" {
		t.Errorf("default should be preserved, got %s", cfg.Server.Addr)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LUNA_TEXT_API_KEY", "env-key")
	t.Setenv("LUNA_SERVER_ADDR", ":9000")

	cfg := Load("/nonexistent/path.toml")
	if cfg.Text.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.Text.APIKey)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("expected :9000, got %s", cfg.Server.Addr)
	}
	// Fallback: tool path gets the text credentials
	if cfg.Tools.APIKey != "env-key" {
		t.Errorf("expected tools fallback to env-key, got %s", cfg.Tools.APIKey)
	}
}

func TestToolsEndpointFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	os.WriteFile(path, []byte(`
[text]
base_url = "https://api.example.com/v1"
model = "big-model"

[tools]
model = ""
`), 0644)

	cfg := Load(path)
	if cfg.Tools.BaseURL != "https://api.example.com/v1" {
		t.Errorf("expected text base URL, got %s", cfg.Tools.BaseURL)
	}
	if cfg.Tools.Model != "big-model" {
		t.Errorf("expected big-model, got %s", cfg.Tools.Model)
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	cfg.Turn.PatienceSeconds = 1.5
	cfg.Turn.TickMillis = 250
	if got := cfg.Patience(); got != 1500*time.Millisecond {
		t.Errorf("Patience() = %v", got)
	}
	if got := cfg.Tick(); got != 250*time.Millisecond {
		t.Errorf("Tick() = %v", got)
	}
}
