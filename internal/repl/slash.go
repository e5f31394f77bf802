package repl

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/models"
)

// slashCommand is one /-prefixed utility command. Handlers never call
// the model; plugin commands, which do, are dispatched separately.
type slashCommand struct {
	handler     func(*Repl, context.Context, []string) (string, error)
	description string
	usage       string
}

var slashCommands map[string]slashCommand

// init populates the table instead of a composite literal so that
// cmdHelp -> slashHelp -> slashCommands does not form an
// initialization cycle.
func init() {
	slashCommands = map[string]slashCommand{
		"help":     {(*Repl).cmdHelp, "Show help information", "/help [topic]"},
		"h":        {(*Repl).cmdHelp, "Show help (alias)", "/h"},
		"model":    {(*Repl).cmdModel, "Show or switch the model", "/model [name]"},
		"m":        {(*Repl).cmdModel, "Switch model (alias)", "/m <name>"},
		"models":   {(*Repl).cmdModels, "List available models", "/models"},
		"cost":     {(*Repl).cmdCost, "Show token usage and cache statistics", "/cost"},
		"clear":    {(*Repl).cmdClear, "Clear conversation history", "/clear"},
		"history":  {(*Repl).cmdHistory, "Show conversation history", "/history"},
		"sessions": {(*Repl).cmdSessions, "List saved session snapshots", "/sessions"},
		"plugins":  {(*Repl).cmdPlugins, "List loaded plugin commands", "/plugins"},
		"pwd":      {(*Repl).cmdPwd, "Show current directory", "/pwd"},
		"yes":      {(*Repl).cmdYes, "Enable auto-confirm", "/yes"},
		"y":        {(*Repl).cmdYes, "Enable auto-confirm (alias)", "/y"},
		"no":       {(*Repl).cmdNo, "Disable auto-confirm", "/no"},
		"n":        {(*Repl).cmdNo, "Disable auto-confirm (alias)", "/n"},
	}
}

// parseSlash splits "/model grok4" into ("model", ["grok4"]).
func parseSlash(line string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func (r *Repl) dispatchSlash(ctx context.Context, line string) (string, bool, error) {
	name, args := parseSlash(line)

	switch name {
	case "exit", "quit", "q":
		return "", true, nil
	}

	if cmd, ok := slashCommands[name]; ok {
		out, err := cmd.handler(r, ctx, args)
		return out, false, err
	}

	// Plugin commands expand to a prompt and go to the agent.
	if r.plugins != nil {
		if cmd, ok := r.plugins.Lookup(name); ok {
			return r.chat(ctx, cmd.Expand(strings.Join(args, " ")))
		}
	}

	return "", false, fmt.Errorf("unknown command: /%s (type /help for available commands)", name)
}

const generalHelp = `Burrow - natural language interface

How to use:
  Just type naturally. The assistant answers questions and can read,
  write, and edit files in your project when you ask it to.

  Examples:
    What is a binary search algorithm?
    Create a Go file that parses CSV into structs
    Read main.go and explain what it does

Slash commands:
  /help [topic]     Show this help (topics: tools, slash, confirm)
  /model [name]     Show or switch the model
  /models           List available models
  /cost             Show token usage and cache statistics
  /clear            Clear conversation history
  /history          Show conversation history
  /sessions         List saved session snapshots
  /plugins          List loaded plugin commands
  /pwd              Show current directory
  /y, /yes          Enable auto-confirm (skip file write prompts)
  /n, /no           Disable auto-confirm (require prompts)
  /exit, /quit      Leave

Shell commands:
  ls, ll, cd, pwd, cat, head, tail, mkdir, tree, cp, mv, rm
  Prefix with ! to force shell interpretation.

Configuration:
  Config:  ~/.burrow/config.yaml
  API key: export XAI_API_KEY=your_key
`

var helpTopics = map[string]string{
	"tools": `File tools

The assistant can read, write, and edit files in your project.
Just ask naturally:

  Create a Go file that sorts a slice
  Read config.yaml and explain what it does
  Add error handling to main.go

Every path is sandboxed to your project directory, and writes ask
for confirmation before touching anything.
`,
	"confirm": `Confirmation mode

By default, file writes require confirmation.

  /y or /yes   Enable auto-confirm (skip prompts)
  /n or /no    Disable auto-confirm (require prompts)

Or set auto_yes: true in ~/.burrow/config.yaml, or start with -y.
`,
}

func (r *Repl) cmdHelp(_ context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return generalHelp, nil
	}

	topic := strings.ToLower(args[0])
	if topic == "slash" {
		return r.slashHelp(), nil
	}
	if text, ok := helpTopics[topic]; ok {
		return text, nil
	}
	return "", fmt.Errorf("unknown topic: %s (available: tools, slash, confirm)", topic)
}

// slashHelp builds the slash topic from the live table so plugin
// commands show up too.
func (r *Repl) slashHelp() string {
	var b strings.Builder
	b.WriteString("Slash commands\n\n")

	names := make([]string, 0, len(slashCommands))
	for name := range slashCommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := slashCommands[name]
		fmt.Fprintf(&b, "  %-18s %s\n", cmd.usage, cmd.description)
	}
	fmt.Fprintf(&b, "  %-18s %s\n", "/exit, /quit", "Leave")

	if r.plugins != nil {
		if cmds := r.plugins.Commands(); len(cmds) > 0 {
			b.WriteString("\nPlugin commands:\n")
			for _, cmd := range cmds {
				usage := cmd.Usage
				if usage == "" {
					usage = "/" + cmd.Name
				}
				fmt.Fprintf(&b, "  %-18s %s\n", usage, cmd.Description)
			}
		}
	}
	return b.String()
}

func (r *Repl) cmdModel(_ context.Context, args []string) (string, error) {
	if len(args) == 0 {
		current := r.agent.Model()
		api, err := models.Resolve(current)
		if err != nil {
			api = current
		}
		return fmt.Sprintf("Current model: %s (%s)\nUsage: /model <name> (use /models to list)\n", current, api), nil
	}

	name := args[0]
	if err := r.agent.SetModel(name); err != nil {
		return "", err
	}
	api, _ := models.Resolve(name)
	out := fmt.Sprintf("%s Model set to: %s (%s)\n", r.pal.green("✓"), name, api)

	if err := config.SaveDefaultModel(name); err != nil {
		return out, fmt.Errorf("saving default model: %w", err)
	}
	return out, nil
}

func (r *Repl) cmdModels(_ context.Context, _ []string) (string, error) {
	var b strings.Builder
	b.WriteString("Available models:\n\n")

	current := models.FriendlyName(r.agent.Model())
	for _, m := range models.List() {
		marker := " "
		if m.Name == current {
			marker = "*"
		}
		kind := "fast"
		if m.Reasoning {
			kind = "reasoning"
		}
		fmt.Fprintf(&b, "%s %-16s %-28s %-10s %s\n", marker, m.Name, m.APIModel, kind, m.Description)
	}
	return b.String(), nil
}

func (r *Repl) cmdCost(_ context.Context, _ []string) (string, error) {
	var b strings.Builder

	u := r.agent.Usage()
	b.WriteString("Token usage this session:\n")
	fmt.Fprintf(&b, "  Requests:          %d\n", u.Requests)
	fmt.Fprintf(&b, "  Prompt tokens:     %d\n", u.Prompt)
	fmt.Fprintf(&b, "  Completion tokens: %d\n", u.Completion)
	fmt.Fprintf(&b, "  Total tokens:      %d\n", u.Total)
	fmt.Fprintf(&b, "  Cache hits:        %d\n", u.CacheHits)

	b.WriteString("\nResponse cache:\n")
	if r.cache == nil {
		b.WriteString("  disabled\n")
	} else {
		stats, err := r.cache.GetStats()
		if err != nil {
			return b.String(), err
		}
		fmt.Fprintf(&b, "  Entries: %d\n", stats.Entries)
		fmt.Fprintf(&b, "  Size:    %.2f MB\n", float64(stats.TotalSize)/(1<<20))
		fmt.Fprintf(&b, "  Oldest:  %.1f days\n", stats.OldestAge.Hours()/24)
	}

	saved := 0
	if r.sessions != nil {
		if snaps, err := r.sessions.List(); err == nil {
			saved = len(snaps)
		}
	}
	fmt.Fprintf(&b, "\nSessions saved: %d\n", saved)
	return b.String(), nil
}

// cmdClear drops the conversation (live turns and the compacted
// timeline) but keeps the durable keys: goal, decisions, and open
// threads survive a clear the same way they survive compaction.
func (r *Repl) cmdClear(_ context.Context, _ []string) (string, error) {
	sess := r.agent.Session()
	sess.Turns = nil
	sess.History = nil
	return fmt.Sprintf("%s Conversation history cleared\n", r.pal.green("✓")), nil
}

func (r *Repl) cmdHistory(_ context.Context, _ []string) (string, error) {
	sess := r.agent.Session()
	if len(sess.Turns) == 0 && len(sess.History) == 0 {
		return "No conversation history\n", nil
	}

	var b strings.Builder
	if n := len(sess.History); n > 0 {
		fmt.Fprintf(&b, "(%d earlier exchanges compacted)\n", n)
	}
	shown := 0
	for _, turn := range sess.Turns {
		switch turn.Role {
		case "user":
			fmt.Fprintf(&b, "You: %s\n", oneLine(turn.Content, 100))
		case "assistant":
			fmt.Fprintf(&b, "Burrow: %s\n", oneLine(turn.Content, 100))
		default:
			continue
		}
		shown++
	}
	fmt.Fprintf(&b, "(%d messages)\n", shown)
	return b.String(), nil
}

func (r *Repl) cmdSessions(_ context.Context, _ []string) (string, error) {
	if r.sessions == nil {
		return "No saved sessions\n", nil
	}
	snaps, err := r.sessions.List()
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "No saved sessions\n", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Saved sessions in %s:\n", r.sessions.Dir())
	for _, snap := range snaps {
		fmt.Fprintf(&b, "  %s  %s\n", snap.ModTime.Format("2006-01-02 15:04"), snap.Path)
	}
	return b.String(), nil
}

func (r *Repl) cmdPlugins(_ context.Context, _ []string) (string, error) {
	if r.plugins == nil || len(r.plugins.Plugins()) == 0 {
		return "No plugins loaded (manifests go in ~/.burrow/plugins/)\n", nil
	}

	var b strings.Builder
	loaded := r.plugins.Plugins()
	fmt.Fprintf(&b, "Loaded %d plugin(s):\n\n", len(loaded))
	for _, cmd := range r.plugins.Commands() {
		usage := cmd.Usage
		if usage == "" {
			usage = "/" + cmd.Name
		}
		fmt.Fprintf(&b, "  %-20s %s  [%s]\n", usage, cmd.Description, cmd.Plugin)
	}
	return b.String(), nil
}

func (r *Repl) cmdPwd(_ context.Context, _ []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Current: %s\n", r.guard.Cwd())
	if r.guard.Cwd() != r.guard.Root() {
		fmt.Fprintf(&b, "Root:    %s\n", r.guard.Root())
	}
	return b.String(), nil
}

func (r *Repl) cmdYes(_ context.Context, _ []string) (string, error) {
	r.autoYes.Store(true)
	return fmt.Sprintf("%s Auto-confirm enabled (file writes will not prompt)\n", r.pal.green("✓")), nil
}

func (r *Repl) cmdNo(_ context.Context, _ []string) (string, error) {
	r.autoYes.Store(false)
	return fmt.Sprintf("%s Auto-confirm disabled (file writes will prompt)\n", r.pal.green("✓")), nil
}

// oneLine flattens content to a single truncated line for history
// display.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
