package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultBaseURL  = "https://api.anthropic.com"
	anthropicOAuthBetaHeader = "oauth-2025-04-20"
)

type ClaudeProvider struct {
	client     *anthropic.Client
	oauthToken bool
}

// NewClaudeProvider accepts either an API key or an OAuth access token.
// httpClient may be nil.
func NewClaudeProvider(token, baseURL string, httpClient *http.Client) *ClaudeProvider {
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	oauth := isAnthropicOAuthToken(token)
	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if oauth {
		opts = append(opts,
			option.WithAuthToken(token),
			option.WithHeader("anthropic-beta", anthropicOAuthBetaHeader),
		)
	} else {
		opts = append(opts, option.WithAPIKey(token))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := anthropic.NewClient(opts...)
	return &ClaudeProvider{client: &client, oauthToken: oauth}
}

func (p *ClaudeProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if model == "" {
		model = p.GetDefaultModel()
	}
	resp, err := p.client.Messages.New(ctx, buildClaudeParams(messages, model, options))
	if err != nil {
		return nil, wrapClaudeAPIError(err, p.oauthToken)
	}
	return parseClaudeResponse(resp), nil
}

func (p *ClaudeProvider) GetDefaultModel() string {
	return "claude-sonnet-4-5-20250929"
}

func buildClaudeParams(messages []Message, model string, options map[string]interface{}) anthropic.MessageNewParams {
	var system []anthropic.TextBlockParam
	var anthropicMessages []anthropic.MessageParam

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case "user":
			anthropicMessages = append(anthropicMessages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		case "assistant":
			anthropicMessages = append(anthropicMessages,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	maxTokens := int64(1024)
	if mt, ok := options["max_tokens"].(int); ok && mt > 0 {
		maxTokens = int64(mt)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  anthropicMessages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = anthropic.Float(temp)
	}
	return params
}

func parseClaudeResponse(resp *anthropic.Message) *LLMResponse {
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	if resp.StopReason == anthropic.StopReasonMaxTokens {
		finishReason = "length"
	}

	return &LLMResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage: &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func isAnthropicOAuthToken(token string) bool {
	return strings.HasPrefix(strings.TrimSpace(token), "sk-ant-oat")
}

func wrapClaudeAPIError(err error, oauthToken bool) error {
	if err == nil {
		return nil
	}
	if oauthToken && strings.Contains(err.Error(), "Invalid bearer token") {
		return fmt.Errorf("claude API call: %w (OAuth token is invalid or expired)", err)
	}
	return fmt.Errorf("claude API call: %w", err)
}
