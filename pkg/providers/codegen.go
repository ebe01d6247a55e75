package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroassist/neuroassist/pkg/logger"
	"github.com/neuroassist/neuroassist/pkg/planner"
)

// CodeGenerator serves planner requests from a chat model.
type CodeGenerator struct {
	provider LLMProvider
	model    string
	options  map[string]interface{}
}

func NewCodeGenerator(provider LLMProvider, model string, maxTokens int, temperature float64) *CodeGenerator {
	return &CodeGenerator{
		provider: provider,
		model:    model,
		options: map[string]interface{}{
			"max_tokens":  maxTokens,
			"temperature": temperature,
		},
	}
}

func (g *CodeGenerator) Generate(ctx context.Context, pc planner.PromptContext) (string, error) {
	system, user := pc.Render()
	messages := []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}

	start := time.Now()
	resp, err := g.provider.Chat(ctx, messages, g.model, g.options)
	if err != nil {
		logger.WarnCF("provider", "Code generation request failed", map[string]interface{}{
			"model":  g.model,
			"repair": pc.Repair(),
			"error":  err.Error(),
		})
		return "", fmt.Errorf("generate code: %w", err)
	}

	fields := map[string]interface{}{
		"model":       g.model,
		"repair":      pc.Repair(),
		"finish":      resp.FinishReason,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if resp.Usage != nil {
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	logger.DebugCF("provider", "Code generation reply", fields)
	return resp.Content, nil
}
