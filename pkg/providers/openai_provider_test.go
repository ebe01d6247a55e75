package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go/v3/responses"
)

func TestBuildResponsesParams_SystemAsInstructions(t *testing.T) {
	messages := []Message{
		{Role: "system", Content: "You write bash"},
		{Role: "user", Content: "Step: \"show uptime\""},
	}
	params := buildResponsesParams(messages, "gpt-4o", map[string]interface{}{"max_tokens": 512, "temperature": 0.2})
	if !params.Instructions.Valid() || params.Instructions.Or("") != "You write bash" {
		t.Errorf("Instructions = %q, want %q", params.Instructions.Or(""), "You write bash")
	}
	if len(params.Input.OfInputItemList) != 1 {
		t.Fatalf("len(Input items) = %d, want 1", len(params.Input.OfInputItemList))
	}
	if params.MaxOutputTokens.Or(0) != 512 {
		t.Errorf("MaxOutputTokens = %d, want 512", params.MaxOutputTokens.Or(0))
	}
	if params.Temperature.Or(0) != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", params.Temperature.Or(0))
	}
}

func TestBuildResponsesParams_StoreIsFalse(t *testing.T) {
	params := buildResponsesParams([]Message{{Role: "user", Content: "Hi"}}, "gpt-4o", map[string]interface{}{})
	if !params.Store.Valid() || params.Store.Or(true) != false {
		t.Error("Store should be explicitly set to false")
	}
}

func TestParseResponsesOutput_TextOutput(t *testing.T) {
	respJSON := `{
		"id": "resp_test",
		"object": "response",
		"status": "completed",
		"output": [
			{
				"id": "msg_1",
				"type": "message",
				"role": "assistant",
				"status": "completed",
				"content": [
					{"type": "output_text", "text": "` + "```bash\\nuptime\\n```" + `"}
				]
			}
		],
		"usage": {
			"input_tokens": 10,
			"output_tokens": 5,
			"total_tokens": 15,
			"input_tokens_details": {"cached_tokens": 0},
			"output_tokens_details": {"reasoning_tokens": 0}
		}
	}`

	var resp responses.Response
	if err := json.Unmarshal([]byte(respJSON), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	result := parseResponsesOutput(&resp)
	if result.Content != "```bash\nuptime\n```" {
		t.Errorf("Content = %q", result.Content)
	}
	if result.FinishReason != "stop" {
		t.Errorf("FinishReason = %q, want %q", result.FinishReason, "stop")
	}
	if result.Usage == nil || result.Usage.TotalTokens != 15 {
		t.Errorf("Unexpected usage: %+v", result.Usage)
	}
}

func TestOpenAIProvider_ChatRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			http.Error(w, "not found: "+r.URL.Path, http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad json body", http.StatusBadRequest)
			return
		}
		if stream, ok := body["stream"].(bool); !ok || !stream {
			http.Error(w, "stream must be true", http.StatusBadRequest)
			return
		}

		event := map[string]interface{}{
			"type":            "response.completed",
			"sequence_number": 1,
			"response": map[string]interface{}{
				"id":     "resp_test",
				"object": "response",
				"status": "completed",
				"output": []map[string]interface{}{
					{
						"id":     "msg_1",
						"type":   "message",
						"role":   "assistant",
						"status": "completed",
						"content": []map[string]interface{}{
							{"type": "output_text", "text": "```bash\necho hi\n```"},
						},
					},
				},
				"usage": map[string]interface{}{
					"input_tokens":          12,
					"output_tokens":         6,
					"total_tokens":          18,
					"input_tokens_details":  map[string]interface{}{"cached_tokens": 0},
					"output_tokens_details": map[string]interface{}{"reasoning_tokens": 0},
				},
			},
		}
		eventJSON, err := json.Marshal(event)
		if err != nil {
			http.Error(w, "marshal event failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprintf(w, "event: response.completed\n")
		_, _ = fmt.Fprintf(w, "data: %s\n\n", string(eventJSON))
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	provider := NewOpenAIProvider("test-token", server.URL, nil)
	resp, err := provider.Chat(t.Context(), []Message{{Role: "user", Content: "Hello"}}, "gpt-4o", map[string]interface{}{"max_tokens": 1024})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Content != "```bash\necho hi\n```" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 18 {
		t.Errorf("TotalTokens = %d, want 18", resp.Usage.TotalTokens)
	}
}
