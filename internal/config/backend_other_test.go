//go:build !darwin

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragent", "config.json")

	b := newFileBackend(path)
	if err := b.SetString("agent.model", "llama3"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := b.SetInt("server.port", 4200); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	reloaded := newFileBackend(path)
	if v, ok, err := reloaded.GetString("agent.model"); err != nil || !ok || v != "llama3" {
		t.Errorf("GetString = %q, %v, %v", v, ok, err)
	}
	if v, ok, err := reloaded.GetInt("server.port"); err != nil || !ok || v != 4200 {
		t.Errorf("GetInt = %d, %v, %v", v, ok, err)
	}

	if err := reloaded.Delete("agent.model"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := newFileBackend(path).GetString("agent.model"); ok {
		t.Error("agent.model still present after Delete")
	}
}

func TestFileBackend_LoadsIntoConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"agent.model":"mistral","agent.temperature":0.3,"tools.fetch_rate":5}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadWith(newFileBackend(path), mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Model != "mistral" {
		t.Errorf("Agent.Model = %q", cfg.Agent.Model)
	}
	if cfg.Agent.Temperature != 0.3 {
		t.Errorf("Agent.Temperature = %v, want 0.3", cfg.Agent.Temperature)
	}
	if cfg.Tools.FetchRate != 5 {
		t.Errorf("Tools.FetchRate = %d, want 5", cfg.Tools.FetchRate)
	}
}

func TestFileBackend_FloatsStayNumeric(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	if err := newFileBackend(path).SetFloat("agent.top_p", 0.9); err != nil {
		t.Fatalf("SetFloat: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"agent.top_p": 0.9`) {
		t.Errorf("config file = %s, want a JSON number", raw)
	}
	if v, ok, err := newFileBackend(path).GetFloat("agent.top_p"); err != nil || !ok || v != 0.9 {
		t.Errorf("GetFloat = %v, %v, %v", v, ok, err)
	}
}

func TestFileBackend_NumericStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port":"4100","agent.temperature":"0.4","log.level":true}`), 0o600); err != nil {
		t.Fatal(err)
	}
	b := newFileBackend(path)
	if v, _, err := b.GetInt("server.port"); err != nil || v != 4100 {
		t.Errorf("GetInt = %d, %v", v, err)
	}
	if v, _, err := b.GetFloat("agent.temperature"); err != nil || v != 0.4 {
		t.Errorf("GetFloat = %v, %v", v, err)
	}
	if v, _, err := b.GetString("log.level"); err != nil || v != "true" {
		t.Errorf("GetString = %q, %v", v, err)
	}
}

func TestFileBackend_InvalidJSONFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := newFileBackend(path).GetString("agent.model"); ok || err != nil {
		t.Errorf("GetString on broken file = %v, %v", ok, err)
	}
}

func TestFileBackend_RejectsFractionalInt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server.port":4000.5}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional port")
	}
}

func TestSecretsFile_RoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	if err := keychainSet("ragent", "api_key", "sk-test"); err != nil {
		t.Fatalf("keychainSet: %v", err)
	}
	got, err := keychainReader{}.Get("ragent", "api_key")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-test" {
		t.Errorf("secret = %q, want %q", got, "sk-test")
	}
	if _, err := keychainGet("ragent", "missing"); err == nil {
		t.Error("expected error for missing account")
	}
}
