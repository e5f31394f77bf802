// Package agent drives the model conversation: system prompt assembly,
// the tool-call loop, session recording, and the cached tool-free ask
// path.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/burrowhq/burrow/internal/cache"
	"github.com/burrowhq/burrow/internal/models"
	"github.com/burrowhq/burrow/internal/provider"
	"github.com/burrowhq/burrow/internal/session"
	"github.com/burrowhq/burrow/internal/tools"
	"github.com/burrowhq/burrow/internal/toon"
)

const (
	// maxToolIterations bounds the tool loop for one user turn.
	maxToolIterations = 10

	defaultTemperature = 0.7
	defaultMaxTokens   = 8192
)

// replyTooManySteps is returned when a turn exhausts the tool budget.
const replyTooManySteps = "I encountered too many steps. Please try a simpler request."

// Usage accumulates token counts across an agent's lifetime.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
	Requests   int
	CacheHits  int
}

// Reply is the outcome of one exchange.
type Reply struct {
	// Content is the assistant's final text.
	Content string

	// TotalTokens is the token count of the final completion, zero on
	// a cache hit.
	TotalTokens int

	// Cached reports whether the reply was served from the store.
	Cached bool
}

// Agent holds one conversation against a provider.
type Agent struct {
	client   provider.Client
	registry *tools.Registry
	sess     *session.Session
	store    *cache.Store // nil disables response caching
	model    string       // alias or raw API name, resolved per call
	lean     bool
	log      *slog.Logger
	observe  func(toolName string)

	usage Usage
}

// Option configures an agent.
type Option func(*Agent)

// WithCache enables response caching through store.
func WithCache(store *cache.Store) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *Agent) {
		a.log = log
	}
}

// WithLean asks for minimal comments in generated code.
func WithLean(lean bool) Option {
	return func(a *Agent) {
		a.lean = lean
	}
}

// WithToolObserver registers fn to be called before each tool
// invocation, for progress display.
func WithToolObserver(fn func(toolName string)) Option {
	return func(a *Agent) {
		a.observe = fn
	}
}

// New creates an agent for one session. model may be a registry alias
// or a raw API model name.
func New(client provider.Client, registry *tools.Registry, sess *session.Session, model string, opts ...Option) *Agent {
	a := &Agent{
		client:   client,
		registry: registry,
		sess:     sess,
		model:    model,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Session returns the live session.
func (a *Agent) Session() *session.Session {
	return a.sess
}

// SetSession swaps the live session, e.g. after a clear.
func (a *Agent) SetSession(sess *session.Session) {
	a.sess = sess
}

// Model returns the current model alias.
func (a *Agent) Model() string {
	return a.model
}

// SetModel switches the model after validating the name.
func (a *Agent) SetModel(name string) error {
	if _, err := models.Resolve(name); err != nil {
		return err
	}
	a.model = name
	return nil
}

// Usage returns the accumulated token counts.
func (a *Agent) Usage() Usage {
	return a.usage
}

// Chat sends a user message through the tool loop and returns the
// assistant's final reply. Both sides of the exchange are recorded on
// the session; tool calls execute through the sandboxed registry, up
// to maxToolIterations rounds.
func (a *Agent) Chat(ctx context.Context, userMessage string) (*Reply, error) {
	model, err := models.Resolve(a.model)
	if err != nil {
		return nil, err
	}

	a.sess.RecordTurn("user", userMessage)
	messages := a.chatMessages()

	for range maxToolIterations {
		resp, err := a.client.Complete(ctx, provider.Request{
			Model:       model,
			Messages:    messages,
			Tools:       a.toolDefs(),
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		})
		if err != nil {
			return nil, err
		}
		a.addUsage(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			a.sess.RecordTurn("assistant", resp.Content)
			return &Reply{Content: resp.Content, TotalTokens: resp.Usage.TotalTokens}, nil
		}

		messages = append(messages, provider.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			if a.observe != nil {
				a.observe(call.Name)
			}
			a.log.Debug("tool call", "tool", call.Name)
			result := a.registry.Execute(call.Name, json.RawMessage(call.Arguments))
			content := result.Result
			if !result.Success {
				content = "Error: " + result.Error
			}
			messages = append(messages, provider.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	// Record the bail-out so the session keeps alternating turns.
	a.sess.RecordTurn("assistant", replyTooManySteps)
	return &Reply{Content: replyTooManySteps}, nil
}

// Ask answers a standalone question without tools or session context.
// Tool-free exchanges are deterministic enough to cache: a hit replays
// the stored reply, a miss stores the fresh one.
func (a *Agent) Ask(ctx context.Context, question string) (*Reply, error) {
	model, err := models.Resolve(a.model)
	if err != nil {
		return nil, err
	}

	messages := []provider.Message{
		{Role: "system", Content: askSystemPrompt},
		{Role: "user", Content: question},
	}

	key := ""
	if a.store != nil {
		key, err = PromptKey(model, messages, defaultTemperature)
		if err != nil {
			a.log.Debug("cache key", "error", err)
		} else if entry, ok := a.store.Get(key); ok {
			a.usage.CacheHits++
			return &Reply{Content: entry.Response, Cached: true}, nil
		}
	}

	resp, err := a.client.Complete(ctx, provider.Request{
		Model:       model,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	a.addUsage(resp.Usage)

	if a.store != nil && key != "" {
		a.putCached(key, model, messages, resp.Content)
	}
	return &Reply{Content: resp.Content, TotalTokens: resp.Usage.TotalTokens}, nil
}

// chatMessages assembles the wire messages for the current session:
// system prompt, durable session context when present, then the live
// turns oldest first.
func (a *Agent) chatMessages() []provider.Message {
	cwd := a.sess.Cwd
	if g := a.registry.Guard(); g != nil {
		cwd = g.Cwd()
	}

	messages := []provider.Message{
		{Role: "system", Content: systemPrompt(cwd, a.lean)},
	}
	if a.hasContext() {
		messages = append(messages, provider.Message{
			Role:    "system",
			Content: "Context from session:\n" + toon.Encode(a.sess.ContextDocument()),
		})
	}
	for _, t := range a.sess.Turns {
		messages = append(messages, provider.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

// hasContext reports whether the session carries durable state worth
// sending beyond the live turns.
func (a *Agent) hasContext() bool {
	s := a.sess
	return s.Goal != "" || s.Open != "" || len(s.Decisions) > 0 ||
		len(s.History) > 0 || len(s.FilesDelta) > 0
}

func (a *Agent) toolDefs() []provider.Tool {
	defs := tools.Definitions()
	out := make([]provider.Tool, len(defs))
	for i, d := range defs {
		out[i] = provider.Tool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return out
}

func (a *Agent) addUsage(u provider.Usage) {
	a.usage.Prompt += u.PromptTokens
	a.usage.Completion += u.CompletionTokens
	a.usage.Total += u.TotalTokens
	a.usage.Requests++
}

// putCached stores a fresh exchange. Best effort: a failed write is a
// future miss, not an error.
func (a *Agent) putCached(key, model string, messages []provider.Message, response string) {
	entry := &cache.Entry{
		CachedAt: time.Now().UTC(),
		Model:    model,
		Params:   cache.Params{Temperature: defaultTemperature},
		Prompt:   EncodeMessages(messages),
		Response: response,
	}
	if err := a.store.Put(key, entry); err != nil {
		a.log.Debug("cache put", "error", err)
	}
}

// EncodeMessages flattens chat messages into the deterministic TOON
// form used for cache addressing. Keys are msg_NNN_<role> so equal
// conversations always encode identically.
func EncodeMessages(messages []provider.Message) string {
	doc := toon.Document{}
	for i, m := range messages {
		doc[fmt.Sprintf("msg_%03d_%s", i, m.Role)] = toon.String(m.Content)
	}
	return toon.Encode(doc)
}

// PromptKey derives the cache key for a tool-free exchange.
func PromptKey(model string, messages []provider.Message, temperature float64) (string, error) {
	return cache.Key(model, EncodeMessages(messages), cache.Params{Temperature: temperature})
}
