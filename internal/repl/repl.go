// Package repl implements the interactive loop.
//
// Input dispatch, in order: a / prefix runs a slash command (utility
// actions that never touch the model), a ! prefix or a bare shell
// built-in name runs the sandboxed shell, and everything else goes to
// the agent as natural language.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/burrowhq/burrow/internal/agent"
	"github.com/burrowhq/burrow/internal/cache"
	"github.com/burrowhq/burrow/internal/plugins"
	"github.com/burrowhq/burrow/internal/sandbox"
	"github.com/burrowhq/burrow/internal/session"
	"github.com/burrowhq/burrow/internal/shell"
)

// Options wires the collaborators a Repl needs. Agent, Shell, and
// Guard are required; the rest degrade gracefully when nil.
type Options struct {
	Agent    *agent.Agent
	Shell    *shell.Shell
	Guard    *sandbox.Guard
	Sessions *session.Store
	Cache    *cache.Store      // nil when caching is disabled
	Plugins  *plugins.Registry // nil when none are loaded

	// AutoConfirm is the flag the tool confirmation prompt consults.
	// /yes and /no toggle it.
	AutoConfirm *atomic.Bool

	// HistoryFile persists readline history across runs.
	HistoryFile string

	// Color enables ANSI styling.
	Color bool

	// Out receives all output. Defaults to os.Stdout.
	Out io.Writer
}

// Repl is one interactive session.
type Repl struct {
	agent    *agent.Agent
	shell    *shell.Shell
	guard    *sandbox.Guard
	sessions *session.Store
	cache    *cache.Store
	plugins  *plugins.Registry
	autoYes  *atomic.Bool
	history  string
	out      io.Writer
	pal      palette
}

// New creates a Repl from its options.
func New(opts Options) *Repl {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	autoYes := opts.AutoConfirm
	if autoYes == nil {
		autoYes = new(atomic.Bool)
	}
	return &Repl{
		agent:    opts.Agent,
		shell:    opts.Shell,
		guard:    opts.Guard,
		sessions: opts.Sessions,
		cache:    opts.Cache,
		plugins:  opts.Plugins,
		autoYes:  autoYes,
		history:  opts.HistoryFile,
		out:      out,
		pal:      palette{enabled: opts.Color},
	}
}

// Run drives the loop until /exit, /quit, or end of input.
func (r *Repl) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            r.prompt(),
		HistoryFile:       r.history,
		HistorySearchFold: true,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	fmt.Fprintln(r.out, r.pal.dim("Type /help for commands, /exit to leave."))

	for {
		rl.SetPrompt(r.prompt())
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(r.out, r.pal.dim("Use /exit or /quit to leave"))
			continue
		}
		if err != nil {
			break
		}

		out, done, err := r.dispatch(ctx, line)
		if out != "" {
			fmt.Fprint(r.out, out)
		}
		if err != nil {
			fmt.Fprintf(r.out, "%s %v\n", r.pal.red("error:"), err)
		}
		if done {
			break
		}
	}

	r.saveSession()
	fmt.Fprintln(r.out, r.pal.dim("Goodbye!"))
	return nil
}

// dispatch routes one input line and returns its output. done reports
// that the loop should end.
func (r *Repl) dispatch(ctx context.Context, line string) (string, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, nil
	}

	if strings.HasPrefix(line, "/") {
		return r.dispatchSlash(ctx, line)
	}

	if rest, ok := strings.CutPrefix(line, "!"); ok {
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return "", false, nil
		}
		out, err := r.shell.Run(fields[0], fields[1:])
		return out, false, err
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return "", true, nil
	}
	if shell.IsBuiltin(fields[0]) {
		out, err := r.shell.Run(fields[0], fields[1:])
		return out, false, err
	}

	return r.chat(ctx, line)
}

// chat sends natural-language input to the agent and snapshots the
// session afterwards so a crash never loses the exchange. Each
// exchange gets its own interrupt scope: Ctrl-C during a model call
// cancels that call only, never the loop.
func (r *Repl) chat(ctx context.Context, message string) (string, bool, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reply, err := r.agent.Chat(ctx, message)
	if err != nil {
		return "", false, err
	}
	r.saveSession()
	return strings.TrimRight(reply.Content, "\n") + "\n", false, nil
}

func (r *Repl) saveSession() {
	if r.sessions == nil {
		return
	}
	if _, err := r.sessions.Save(r.agent.Session()); err != nil {
		fmt.Fprintf(r.out, "%s saving session: %v\n", r.pal.dim("warning:"), err)
	}
}

// prompt renders "dir [model]> " from live state, so /model and cd
// show up immediately.
func (r *Repl) prompt() string {
	dir := filepath.Base(r.guard.Cwd())
	return fmt.Sprintf("%s [%s]> ", dir, r.agent.Model())
}

// completer offers slash commands, plugin commands, and shell
// built-ins.
func (r *Repl) completer() readline.AutoCompleter {
	var names []string
	for name := range slashCommands {
		names = append(names, "/"+name)
	}
	names = append(names, "/exit", "/quit")
	if r.plugins != nil {
		for _, cmd := range r.plugins.Commands() {
			names = append(names, "/"+cmd.Name)
		}
	}
	names = append(names, shell.Builtins()...)
	names = append(names, "exit", "quit")
	sort.Strings(names)

	items := make([]readline.PrefixCompleterInterface, len(names))
	for i, name := range names {
		items[i] = readline.PcItem(name)
	}
	return readline.NewPrefixCompleter(items...)
}

// palette is the minimal ANSI styling used for REPL chrome. Disabled
// it passes text through untouched.
type palette struct {
	enabled bool
}

func (p palette) wrap(code, s string) string {
	if !p.enabled {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func (p palette) dim(s string) string   { return p.wrap("2", s) }
func (p palette) green(s string) string { return p.wrap("32", s) }
func (p palette) red(s string) string   { return p.wrap("31", s) }
