package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresKey(t *testing.T) {
	_, err := New("", "", 0)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("New = %v, want ErrMissingAPIKey", err)
	}
}

// stubCompletion serves a canned chat completion and captures the
// request body.
func stubCompletion(t *testing.T, body string, captured *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, captured); err != nil {
				t.Errorf("request body not JSON: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

func TestComplete(t *testing.T) {
	var captured map[string]interface{}
	srv := stubCompletion(t, `{
		"id": "cmpl-1", "object": "chat.completion", "created": 1,
		"model": "grok-4-1-fast-non-reasoning",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hi there"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, &captured)
	defer srv.Close()

	g, err := New("test-key", srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := g.Complete(context.Background(), Request{
		Model: "grok-4-1-fast-non-reasoning",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
		Temperature: 0.7,
		MaxTokens:   64,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if resp.Content != "hi there" {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}
	if captured["model"] != "grok-4-1-fast-non-reasoning" {
		t.Errorf("request model = %v", captured["model"])
	}
	if _, hasTools := captured["tools"]; hasTools {
		t.Error("tool-free request sent a tools field")
	}
}

func TestCompleteSendsTools(t *testing.T) {
	var captured map[string]interface{}
	srv := stubCompletion(t, `{
		"id": "cmpl-2", "object": "chat.completion", "created": 1,
		"model": "m",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "",
			"tool_calls": [{"id": "call_1", "type": "function",
				"function": {"name": "read_file", "arguments": "{\"path\":\"a.txt\"}"}}]},
			"finish_reason": "tool_calls"}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, &captured)
	defer srv.Close()

	g, err := New("test-key", srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := g.Complete(context.Background(), Request{
		Model:    "m",
		Messages: []Message{{Role: "user", Content: "read a.txt"}},
		Tools: []Tool{{
			Name:        "read_file",
			Description: "Read a file",
			Parameters:  json.RawMessage(`{"type":"object"}`),
		}},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if captured["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", captured["tool_choice"])
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("ToolCalls = %v", resp.ToolCalls)
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "read_file" || tc.Arguments != `{"path":"a.txt"}` {
		t.Errorf("ToolCall = %+v", tc)
	}
}

func TestCompleteRoundTripsToolResults(t *testing.T) {
	var captured map[string]interface{}
	srv := stubCompletion(t, `{
		"id": "cmpl-3", "object": "chat.completion", "created": 1, "model": "m",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "done"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
	}`, &captured)
	defer srv.Close()

	g, err := New("test-key", srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}

	_, err = g.Complete(context.Background(), Request{
		Model: "m",
		Messages: []Message{
			{Role: "user", Content: "read it"},
			{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Name: "read_file", Arguments: `{"path":"a"}`}}},
			{Role: "tool", ToolCallID: "call_1", Content: "file body"},
		},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	msgs, ok := captured["messages"].([]interface{})
	if !ok || len(msgs) != 3 {
		t.Fatalf("messages = %v", captured["messages"])
	}
	toolMsg, ok := msgs[2].(map[string]interface{})
	if !ok || toolMsg["tool_call_id"] != "call_1" {
		t.Errorf("tool message = %v", msgs[2])
	}
}

func TestListModelsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g, err := New("test-key", srv.URL, 0)
	if err != nil {
		t.Fatal(err)
	}

	ids, err := g.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == "grok-code-fast-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("fallback list missing known model: %v", ids)
	}
}
