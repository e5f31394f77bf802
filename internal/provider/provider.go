// Package provider wraps the OpenAI-compatible endpoint that serves
// Grok models.
//
// The wire protocol is OpenAI's, so the official-compatible SDK does
// the transport; this package narrows it to the one call the agent
// needs and keeps SDK types out of the rest of the codebase. Requests
// are single-shot: rate limiting and retries are the caller's problem,
// and in practice the caller is an interactive user who retries by
// pressing enter again.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/burrowhq/burrow/internal/models"
)

// DefaultBaseURL is the x.ai OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.x.ai/v1"

// ErrMissingAPIKey indicates no API key was configured.
var ErrMissingAPIKey = errors.New("XAI_API_KEY not set")

// Message is one chat message.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Tool describes a callable function offered to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Request is one completion call.
type Request struct {
	Model       string
	Messages    []Message
	Tools       []Tool
	Temperature float32
	MaxTokens   int
}

// Usage is the token accounting for one response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the first choice of a completion.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
	Usage        Usage
}

// Client is the narrow surface the agent consumes.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Grok implements Client against the x.ai endpoint.
type Grok struct {
	client *openai.Client
}

// New creates a Grok client. An empty API key is an error here rather
// than a failed request later, so commands can report it cleanly. A
// zero timeout leaves the transport unbounded.
func New(apiKey, baseURL string, timeout time.Duration) (*Grok, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: get a key from console.x.ai and export XAI_API_KEY", ErrMissingAPIKey)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = DefaultBaseURL
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Grok{client: openai.NewClientWithConfig(cfg)}, nil
}

// Complete performs one chat completion.
func (g *Grok) Complete(ctx context.Context, req Request) (*Response, error) {
	oreq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    toWireMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		oreq.Tools = toWireTools(req.Tools)
		oreq.ToolChoice = "auto"
	}

	resp, err := g.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: empty response")
	}

	choice := resp.Choices[0]
	return &Response{
		Content:      choice.Message.Content,
		ToolCalls:    fromWireToolCalls(choice.Message.ToolCalls),
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ListModels lists model IDs from the endpoint, falling back to the
// built-in registry when the call fails.
func (g *Grok) ListModels(ctx context.Context) ([]string, error) {
	list, err := g.client.ListModels(ctx)
	if err != nil {
		ids := make([]string, 0, len(models.List()))
		for _, m := range models.List() {
			ids = append(ids, m.APIModel)
		}
		return ids, nil
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func toWireMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		wire := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wire.ToolCalls = append(wire.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, wire)
	}
	return out
}

func toWireTools(tools []Tool) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromWireToolCalls(calls []openai.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
