// Package heavy implements the parallel specialist mode: three fixed
// role agents attack the same task concurrently on the reasoning
// model, then a meta-resolver pass synthesizes their proposals into
// one answer. Roughly 3.5x the cost of a single call.
package heavy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/burrowhq/burrow/internal/agent"
	"github.com/burrowhq/burrow/internal/cache"
	"github.com/burrowhq/burrow/internal/provider"
	"github.com/burrowhq/burrow/internal/toon"
	"github.com/burrowhq/burrow/internal/worker"
)

// ReasoningModel is the API model every heavy call runs on,
// regardless of the configured default.
const ReasoningModel = "grok-4-1-fast-reasoning"

const (
	temperature = 0.7
	maxTokens   = 8192
)

// metaSystemPrompt frames the synthesis pass.
const metaSystemPrompt = "You are the final coordinator. You have 3 expert opinions. " +
	"Produce ONE unified, perfect output. " +
	"If they conflict, choose the most correct/safe. " +
	"If code, output the best version with inline comments explaining choices."

// ErrAllRolesFailed means no specialist produced a proposal to
// synthesize.
var ErrAllRolesFailed = errors.New("all role agents failed")

// Role is one specialist brief.
type Role struct {
	Name  string
	Brief string
}

// Roles are the fixed specialist briefs, in presentation order.
var Roles = []Role{
	{Name: "coder", Brief: "Pure coder – output only perfect code, no explanation"},
	{Name: "reviewer", Brief: "Security & correctness reviewer – focus on bugs, edge cases, tests"},
	{Name: "optimizer", Brief: "Performance & style optimizer – focus on speed, readability, idioms"},
}

// Proposal is one specialist's output.
type Proposal struct {
	Role    string
	Content string
	Cached  bool
	Tokens  int
	Err     error
}

// Result is the outcome of one heavy run.
type Result struct {
	// Answer is the meta-resolver's unified output.
	Answer string

	// Proposals are the per-role outputs in Roles order, including
	// failed ones.
	Proposals []Proposal

	// MetaTokens is the synthesis pass usage; TotalTokens covers every
	// call in the run.
	MetaTokens  int
	TotalTokens int
}

// Runner executes heavy tasks.
type Runner struct {
	client provider.Client
	store  *cache.Store // nil disables role-call caching
	log    *slog.Logger
}

// Option configures a runner.
type Option func(*Runner)

// WithCache enables per-role response caching through store.
func WithCache(store *cache.Store) Option {
	return func(r *Runner) {
		r.store = store
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// New creates a heavy runner.
func New(client provider.Client, opts ...Option) *Runner {
	r := &Runner{
		client: client,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fans the task out to every role in parallel, then synthesizes
// the surviving proposals. Individual role failures degrade the result;
// the run fails only when no role produced anything. sessionContext
// may be nil.
func (r *Runner) Run(ctx context.Context, task string, sessionContext toon.Document) (*Result, error) {
	contextStr := ""
	if len(sessionContext) > 0 {
		contextStr = "Context from session:\n" + toon.Encode(sessionContext) + "\n"
	}

	pool := worker.NewPool[Role, Proposal](len(Roles))
	outcomes := pool.Process(ctx, Roles, func(ctx context.Context, role Role) (Proposal, error) {
		return r.runRole(ctx, role, task, contextStr)
	})

	res := &Result{Proposals: make([]Proposal, len(Roles))}
	var firstErr error
	survivors := 0
	for i, out := range outcomes {
		p := out.Value
		p.Role = Roles[i].Name
		if out.Err != nil {
			p.Err = out.Err
			if firstErr == nil {
				firstErr = out.Err
			}
			r.log.Warn("role agent failed", "role", p.Role, "error", out.Err)
		} else {
			survivors++
			res.TotalTokens += p.Tokens
		}
		res.Proposals[i] = p
	}
	if survivors == 0 {
		return nil, fmt.Errorf("%w: %v", ErrAllRolesFailed, firstErr)
	}

	answer, usage, err := r.resolve(ctx, task, res.Proposals)
	if err != nil {
		return nil, err
	}
	res.Answer = answer
	res.MetaTokens = usage.TotalTokens
	res.TotalTokens += usage.TotalTokens
	return res, nil
}

// runRole executes one specialist call, consulting the cache first.
// Parallel roles hit the store concurrently; the store is safe for
// that.
func (r *Runner) runRole(ctx context.Context, role Role, task, contextStr string) (Proposal, error) {
	messages := []provider.Message{
		{Role: "system", Content: fmt.Sprintf("%sYou are %s.", contextStr, role.Brief)},
		{Role: "user", Content: task},
	}

	key := ""
	if r.store != nil {
		var err error
		key, err = agent.PromptKey(ReasoningModel, messages, temperature)
		if err != nil {
			r.log.Debug("cache key", "role", role.Name, "error", err)
		} else if entry, ok := r.store.Get(key); ok {
			return Proposal{Content: entry.Response, Cached: true}, nil
		}
	}

	resp, err := r.client.Complete(ctx, provider.Request{
		Model:       ReasoningModel,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return Proposal{}, err
	}

	if r.store != nil && key != "" {
		entry := &cache.Entry{
			CachedAt: time.Now().UTC(),
			Model:    ReasoningModel,
			Params:   cache.Params{Temperature: temperature},
			Prompt:   agent.EncodeMessages(messages),
			Response: resp.Content,
		}
		if err := r.store.Put(key, entry); err != nil {
			r.log.Debug("cache put", "role", role.Name, "error", err)
		}
	}
	return Proposal{Content: resp.Content, Tokens: resp.Usage.TotalTokens}, nil
}

// resolve runs the meta-resolver over the surviving proposals.
func (r *Runner) resolve(ctx context.Context, task string, proposals []Proposal) (string, provider.Usage, error) {
	var sections []string
	for _, p := range proposals {
		if p.Err != nil {
			continue
		}
		sections = append(sections, fmt.Sprintf("AGENT %s: %s", strings.ToUpper(p.Role), p.Content))
	}

	userPrompt := fmt.Sprintf("Original task: %s\n\n%s", task, strings.Join(sections, "\n\n"))
	resp, err := r.client.Complete(ctx, provider.Request{
		Model: ReasoningModel,
		Messages: []provider.Message{
			{Role: "system", Content: metaSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", provider.Usage{}, fmt.Errorf("meta-resolver: %w", err)
	}
	return resp.Content, resp.Usage, nil
}
