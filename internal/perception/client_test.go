package perception

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"warvox/internal/types"
)

func TestOpenAIToolCallMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["parallel_tool_calls"] != true {
			t.Error("parallel tool calls should be enabled")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"id": "c1", "type": "function", "function": {"name": "set_phase", "arguments": "{\"phase\": \"shooting\"}"}},
						{"id": "c2", "type": "function", "function": {"name": "adjust_cp", "arguments": "{\"side\": \"player\", \"amount\": -1}"}}
					]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 20, "total_tokens": 120}
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Model: "test-model"})
	resp, err := client.CompleteWithTools(context.Background(), "system", "user", []types.ToolDefinition{
		{Name: "set_phase", InputSchema: map[string]any{"type": "object"}},
	})
	if err != nil {
		t.Fatalf("CompleteWithTools: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "set_phase" || resp.ToolCalls[0].Input["phase"] != "shooting" {
		t.Errorf("unexpected first call: %+v", resp.ToolCalls[0])
	}
	if amount, ok := resp.ToolCalls[1].Input["amount"].(float64); !ok || amount != -1 {
		t.Errorf("unexpected amount: %v", resp.ToolCalls[1].Input["amount"])
	}
	if resp.Usage.TotalTokens != 120 {
		t.Errorf("total tokens = %d, want 120", resp.Usage.TotalTokens)
	}
}

func TestOpenAIRetriesOn500(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}, "finish_reason": "stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Model: "m", MaxRetries: 2})
	got, err := client.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestOpenAIBadRequestIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "test", BaseURL: server.URL, Model: "m", MaxRetries: 3})
	if _, err := client.Complete(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls.Load())
	}
}

func TestOpenAIMissingKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{})
	if _, err := client.Complete(context.Background(), "x"); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestGeminiFunctionCallMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [
					{"text": "logging that"},
					{"functionCall": {"name": "record_wounds", "args": {"unit": "terminators", "amount": 6}}}
				]},
				"finishReason": "STOP"
			}],
			"usageMetadata": {"promptTokenCount": 50, "candidatesTokenCount": 10, "totalTokenCount": 60}
		}`))
	}))
	defer server.Close()

	client := NewGeminiClient(GeminiConfig{APIKey: "test", BaseURL: server.URL, Model: "test-model"})
	resp, err := client.CompleteWithTools(context.Background(), "sys", "user", nil)
	if err != nil {
		t.Fatalf("CompleteWithTools: %v", err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Name != "record_wounds" {
		t.Errorf("name = %s", resp.ToolCalls[0].Name)
	}
	if resp.Text != "logging that" {
		t.Errorf("text = %q", resp.Text)
	}
}

func TestFactoryUnknownProvider(t *testing.T) {
	if _, err := NewClient("carrier-pigeon", ClientOptions{}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFactoryDefaults(t *testing.T) {
	client, err := NewClient("", ClientOptions{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*OpenAIClient); !ok {
		t.Errorf("default provider should be OpenAI-compatible, got %T", client)
	}
}
