package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
)

// FlexibleStringSlice accepts either a JSON array of strings or a single
// comma-separated string.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or string array: %w", err)
	}
	out := make([]string, 0)
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*f = out
	return nil
}

type Config struct {
	Engine    EngineConfig    `json:"engine"`
	Catalog   CatalogConfig   `json:"catalog"`
	Provider  ProviderConfig  `json:"provider"`
	Verify    VerifyConfig    `json:"verify"`
	Audit     AuditConfig     `json:"audit"`
	History   HistoryConfig   `json:"history"`
	Gateway   GatewayConfig   `json:"gateway"`
	Log       LogConfig       `json:"log"`
	Schedules []ScheduleEntry `json:"schedules,omitempty"`
	mu        sync.RWMutex
}

type EngineConfig struct {
	// Markers are applied in order; the raw strings keep their surrounding
	// spaces so "and" inside a word never splits.
	Markers         []string `json:"markers"`
	Language        string   `json:"language" env:"NEUROASSIST_ENGINE_LANGUAGE"`
	ShellTimeoutSec int      `json:"shell_timeout_sec" env:"NEUROASSIST_ENGINE_SHELL_TIMEOUT_SEC"`
	Recovery        bool     `json:"recovery" env:"NEUROASSIST_ENGINE_RECOVERY"`
}

func (e EngineConfig) ShellTimeout() time.Duration {
	if e.ShellTimeoutSec <= 0 {
		return 0
	}
	return time.Duration(e.ShellTimeoutSec) * time.Second
}

type CatalogConfig struct {
	Path string `json:"path" env:"NEUROASSIST_CATALOG_PATH"`
}

type ProviderConfig struct {
	Kind        string  `json:"kind" env:"NEUROASSIST_PROVIDER_KIND"`
	Model       string  `json:"model" env:"NEUROASSIST_PROVIDER_MODEL"`
	APIKey      string  `json:"api_key" env:"NEUROASSIST_PROVIDER_API_KEY"`
	APIBase     string  `json:"api_base" env:"NEUROASSIST_PROVIDER_API_BASE"`
	MaxTokens   int     `json:"max_tokens" env:"NEUROASSIST_PROVIDER_MAX_TOKENS"`
	Temperature float64 `json:"temperature" env:"NEUROASSIST_PROVIDER_TEMPERATURE"`
	TimeoutSec  int     `json:"timeout_sec" env:"NEUROASSIST_PROVIDER_TIMEOUT_SEC"`
	// Transport selects the HTTP client: "default", "chrome" or "chrome-h2".
	Transport string `json:"transport" env:"NEUROASSIST_PROVIDER_TRANSPORT"`
	Compress  bool   `json:"compress" env:"NEUROASSIST_PROVIDER_COMPRESS"`
}

type IntentConfig struct {
	Name         string              `json:"name"`
	Keywords     FlexibleStringSlice `json:"keywords"`
	WindowTitles FlexibleStringSlice `json:"window_titles"`
}

type VerifyConfig struct {
	ProbeEnabled bool           `json:"probe_enabled"`
	Intents      []IntentConfig `json:"intents"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" env:"NEUROASSIST_AUDIT_ENABLED"`
	Path    string `json:"path" env:"NEUROASSIST_AUDIT_PATH"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled" env:"NEUROASSIST_HISTORY_ENABLED"`
	Path    string `json:"path" env:"NEUROASSIST_HISTORY_PATH"`
}

type GatewayConfig struct {
	Listen string `json:"listen" env:"NEUROASSIST_GATEWAY_LISTEN"`
}

type LogConfig struct {
	Level string `json:"level" env:"NEUROASSIST_LOG_LEVEL"`
	File  string `json:"file" env:"NEUROASSIST_LOG_FILE"`
}

type ScheduleEntry struct {
	Name    string `json:"name"`
	Expr    string `json:"expr"`
	Command string `json:"command"`
}

func DefaultMarkers() []string {
	return []string{
		" and then ",
		" after that ",
		" then ",
		" and ",
		", ",
		" после этого ",
		" затем ",
		" потом ",
		" и ",
	}
}

func DefaultIntents() []IntentConfig {
	return []IntentConfig{
		{
			Name:         "calculator",
			Keywords:     FlexibleStringSlice{"calculator", "калькулятор"},
			WindowTitles: FlexibleStringSlice{"Calculator", "Калькулятор", "gnome-calculator", "KCalc"},
		},
		{
			Name:         "browser",
			Keywords:     FlexibleStringSlice{"browser", "chrome", "firefox", "браузер"},
			WindowTitles: FlexibleStringSlice{"Chrome", "Firefox", "Edge", "Opera", "Safari", "Chromium"},
		},
		{
			Name:         "notepad",
			Keywords:     FlexibleStringSlice{"notepad", "text editor", "блокнот"},
			WindowTitles: FlexibleStringSlice{"Notepad", "Блокнот", "gedit", "Text Editor"},
		},
	}
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".neuroassist")
	return &Config{
		Engine: EngineConfig{
			Markers:         DefaultMarkers(),
			Language:        "bash",
			ShellTimeoutSec: 60,
			Recovery:        true,
		},
		Provider: ProviderConfig{
			Kind:        ProviderAnthropic,
			Model:       "claude-sonnet-4-5",
			MaxTokens:   1024,
			Temperature: 0.2,
			TimeoutSec:  60,
		},
		Verify: VerifyConfig{
			ProbeEnabled: true,
			Intents:      DefaultIntents(),
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(base, "audit", "executions.jsonl"),
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(base, "history.db"),
		},
		Gateway: GatewayConfig{
			Listen: "127.0.0.1:18790",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath is where the CLI looks for the config file when no flag is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".neuroassist", "config.json")
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if len(cfg.Engine.Markers) == 0 {
		cfg.Engine.Markers = DefaultMarkers()
	}
	if len(cfg.Verify.Intents) == 0 {
		cfg.Verify.Intents = DefaultIntents()
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays NEUROASSIST_* variables section by section. Sections that
// hold slices of structs are not handed to env.Parse directly.
func applyEnv(cfg *Config) error {
	targets := []interface{}{
		&cfg.Engine,
		&cfg.Catalog,
		&cfg.Provider,
		&cfg.Audit,
		&cfg.History,
		&cfg.Gateway,
		&cfg.Log,
	}
	for _, target := range targets {
		if err := env.Parse(target); err != nil {
			return fmt.Errorf("parse env: %w", err)
		}
	}

	probe := struct {
		Enabled bool `env:"NEUROASSIST_VERIFY_PROBE_ENABLED"`
	}{Enabled: cfg.Verify.ProbeEnabled}
	if err := env.Parse(&probe); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.Verify.ProbeEnabled = probe.Enabled
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	cfg.mu.RLock()
	data, err := json.MarshalIndent(cfg, "", "  ")
	cfg.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func Validate(cfg *Config) error {
	switch cfg.Provider.Kind {
	case "", ProviderAnthropic, ProviderOpenAI, ProviderAzure:
	default:
		return fmt.Errorf("provider.kind: unsupported provider %q", cfg.Provider.Kind)
	}
	switch cfg.Provider.Transport {
	case "", "default", "chrome", "chrome-h2":
	default:
		return fmt.Errorf("provider.transport: unsupported transport %q", cfg.Provider.Transport)
	}
	if cfg.Provider.Kind == ProviderAzure && cfg.Provider.APIBase == "" {
		return fmt.Errorf("provider.api_base is required for azure")
	}
	for i, intent := range cfg.Verify.Intents {
		if strings.TrimSpace(intent.Name) == "" {
			return fmt.Errorf("verify.intents[%d].name is required", i)
		}
		if len(intent.Keywords) == 0 || len(intent.WindowTitles) == 0 {
			return fmt.Errorf("verify.intents[%d] (%s): keywords and window_titles are required", i, intent.Name)
		}
	}
	seen := make(map[string]bool)
	for i, s := range cfg.Schedules {
		if strings.TrimSpace(s.Expr) == "" || strings.TrimSpace(s.Command) == "" {
			return fmt.Errorf("schedules[%d]: expr and command are required", i)
		}
		if s.Name != "" {
			if seen[s.Name] {
				return fmt.Errorf("schedules[%d]: duplicate name %q", i, s.Name)
			}
			seen[s.Name] = true
		}
	}
	return nil
}

// ExpandHome resolves a leading "~/" against the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
