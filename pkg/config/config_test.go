package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Engine(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Engine.Recovery {
		t.Error("Recovery should be enabled by default")
	}
	if len(cfg.Engine.Markers) == 0 {
		t.Fatal("expected default conjunction markers")
	}
	if cfg.Engine.Markers[0] != " and then " {
		t.Errorf("longer markers must come first, got %q", cfg.Engine.Markers[0])
	}
	if cfg.Engine.ShellTimeout().Seconds() != 60 {
		t.Errorf("Expected 60s shell timeout, got %v", cfg.Engine.ShellTimeout())
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Provider.Kind != ProviderAnthropic {
		t.Fatalf("expected default provider %q, got %q", ProviderAnthropic, cfg.Provider.Kind)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"kind":"openai","model":"gpt-4.1"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("NEUROASSIST_PROVIDER_MODEL", "gpt-5")
	t.Setenv("NEUROASSIST_ENGINE_SHELL_TIMEOUT_SEC", "5")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Provider.Kind != ProviderOpenAI {
		t.Errorf("file value lost: kind=%q", cfg.Provider.Kind)
	}
	if cfg.Provider.Model != "gpt-5" {
		t.Errorf("env override not applied: model=%q", cfg.Provider.Model)
	}
	if cfg.Engine.ShellTimeoutSec != 5 {
		t.Errorf("env override not applied: timeout=%d", cfg.Engine.ShellTimeoutSec)
	}
}

func TestLoadConfig_InvalidProviderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"provider":{"kind":"llamafile"}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected LoadConfig to reject unknown provider")
	}
	if !strings.Contains(err.Error(), "provider.kind") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Schedules(t *testing.T) {
	tests := []struct {
		name    string
		entries []ScheduleEntry
		wantErr string
	}{
		{name: "valid", entries: []ScheduleEntry{{Name: "a", Expr: "@hourly", Command: "show time"}}},
		{name: "missing command", entries: []ScheduleEntry{{Expr: "@hourly"}}, wantErr: "expr and command"},
		{
			name: "duplicate",
			entries: []ScheduleEntry{
				{Name: "a", Expr: "@hourly", Command: "x"},
				{Name: "a", Expr: "@daily", Command: "y"},
			},
			wantErr: "duplicate name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Schedules = tt.entries
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFlexibleStringSlice(t *testing.T) {
	var intent IntentConfig
	if err := json.Unmarshal([]byte(`{"name":"x","keywords":"a, b","window_titles":["T"]}`), &intent); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(intent.Keywords) != 2 || intent.Keywords[1] != "b" {
		t.Errorf("Expected [a b], got %v", intent.Keywords)
	}
}

func TestSaveConfig_RoundTripsToDisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gateway.Listen = "127.0.0.1:9999"
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.Gateway.Listen != "127.0.0.1:9999" {
		t.Errorf("Expected saved listen address, got %q", loaded.Gateway.Listen)
	}
}
