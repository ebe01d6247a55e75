package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to the Responses API and reads the streamed result.
type OpenAIProvider struct {
	client *openai.Client
}

func NewOpenAIProvider(apiKey, baseURL string, httpClient *http.Client) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &OpenAIProvider{client: &client}
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if model == "" {
		model = p.GetDefaultModel()
	}
	params := buildResponsesParams(messages, model, options)

	stream := p.client.Responses.NewStreaming(ctx, params)
	if stream == nil {
		return nil, fmt.Errorf("openai API call: empty stream")
	}
	defer stream.Close()

	var finalResp *responses.Response
	for stream.Next() {
		switch event := stream.Current().AsAny().(type) {
		case responses.ResponseCompletedEvent:
			resp := event.Response
			finalResp = &resp
		case responses.ResponseIncompleteEvent:
			resp := event.Response
			finalResp = &resp
		case responses.ResponseErrorEvent:
			return nil, fmt.Errorf("response error (%s): %s", event.Code, event.Message)
		case responses.ResponseFailedEvent:
			return nil, fmt.Errorf("response failed with status %q", event.Response.Status)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("openai API call: %w", err)
	}
	if finalResp == nil {
		return nil, fmt.Errorf("openai API call: stream ended without a response payload")
	}
	return parseResponsesOutput(finalResp), nil
}

func (p *OpenAIProvider) GetDefaultModel() string {
	return "gpt-5.2"
}

func buildResponsesParams(messages []Message, model string, options map[string]interface{}) responses.ResponseNewParams {
	var inputItems responses.ResponseInputParam
	var instructions []string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			instructions = append(instructions, msg.Content)
		case "user":
			inputItems = append(inputItems, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role:    responses.EasyInputMessageRoleUser,
					Content: responses.EasyInputMessageContentUnionParam{OfString: openai.Opt(msg.Content)},
				},
			})
		case "assistant":
			inputItems = append(inputItems, responses.ResponseInputItemUnionParam{
				OfMessage: &responses.EasyInputMessageParam{
					Role:    responses.EasyInputMessageRoleAssistant,
					Content: responses.EasyInputMessageContentUnionParam{OfString: openai.Opt(msg.Content)},
				},
			})
		}
	}

	params := responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: inputItems,
		},
		Store: openai.Opt(false),
	}
	if len(instructions) > 0 {
		params.Instructions = openai.Opt(strings.Join(instructions, "\n\n"))
	}
	if mt, ok := options["max_tokens"].(int); ok && mt > 0 {
		params.MaxOutputTokens = openai.Int(int64(mt))
	}
	if temp, ok := options["temperature"].(float64); ok {
		params.Temperature = openai.Float(temp)
	}
	return params
}

func parseResponsesOutput(resp *responses.Response) *LLMResponse {
	var content strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				content.WriteString(c.Text)
			}
		}
	}

	finishReason := "stop"
	if resp.Status == "incomplete" {
		finishReason = "length"
	}

	var usage *UsageInfo
	if resp.Usage.TotalTokens > 0 {
		usage = &UsageInfo{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return &LLMResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage:        usage,
	}
}
