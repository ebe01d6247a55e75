package providers

import (
	"fmt"
	"os"
	"time"

	"github.com/neuroassist/neuroassist/pkg/config"
	"github.com/neuroassist/neuroassist/pkg/transport"
)

// CreateProvider builds the configured backend and resolves the model name.
// Missing API keys fall back to the vendor's usual environment variable.
func CreateProvider(cfg config.ProviderConfig) (LLMProvider, string, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	httpClient, err := transport.New(cfg.Transport, timeout, cfg.Compress)
	if err != nil {
		return nil, "", fmt.Errorf("provider transport: %w", err)
	}

	var p LLMProvider
	switch cfg.Kind {
	case "", config.ProviderAnthropic:
		key := firstNonEmpty(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
		if key == "" {
			return nil, "", fmt.Errorf("no API key for anthropic (set provider.api_key or ANTHROPIC_API_KEY)")
		}
		p = NewClaudeProvider(key, cfg.APIBase, httpClient)
	case config.ProviderOpenAI:
		key := firstNonEmpty(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
		if key == "" {
			return nil, "", fmt.Errorf("no API key for openai (set provider.api_key or OPENAI_API_KEY)")
		}
		p = NewOpenAIProvider(key, cfg.APIBase, httpClient)
	case config.ProviderAzure:
		p = NewAzureProvider(firstNonEmpty(cfg.APIKey, os.Getenv("AZURE_OPENAI_API_KEY")), cfg.APIBase, httpClient)
	default:
		return nil, "", fmt.Errorf("unsupported provider %q", cfg.Kind)
	}

	model := cfg.Model
	if model == "" {
		model = p.GetDefaultModel()
	}
	return p, model, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
