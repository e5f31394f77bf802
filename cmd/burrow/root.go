package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/agent"
	"github.com/burrowhq/burrow/internal/cache"
	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/logging"
	"github.com/burrowhq/burrow/internal/models"
	"github.com/burrowhq/burrow/internal/provider"
	"github.com/burrowhq/burrow/internal/sandbox"
	"github.com/burrowhq/burrow/internal/session"
	"github.com/burrowhq/burrow/internal/tools"
)

var (
	// Global flags
	cfgFile      string
	flagModel    string
	flagVerbose  bool
	flagNoColor  bool
	flagLean     bool
	flagYes      bool
	flagNoCache  bool
	flagCompact  string
	flagEscapeFS bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Sandboxed Grok agent for your terminal",
	Long: `Burrow is a sandboxed Grok agent for your terminal.

It holds a conversation about the current project, edits files behind a
confirmation prompt, and never steps outside the working directory
unless explicitly told to.

Core Commands:
  ask          One-shot question ('burrow ask "explain this error"')
  repl         Interactive session (default on a terminal)
  heavy        Three specialists attack one task in parallel
  serve        Expose the file tools over MCP (stdio)

State:
  session      List, show, or clear conversation snapshots
  cache        Inspect or clean the response cache
  models       List model aliases
  config       Show the effective configuration

Sessions persist under .burrow/sessions/ in the project; everything
else lives in ~/.burrow/. Set XAI_API_KEY to authenticate.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if stdinIsTerminal() {
			return runRepl(cmd, args)
		}
		prompt, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if strings.TrimSpace(string(prompt)) == "" {
			return cmd.Help()
		}
		return quickAsk(cmd.Context(), strings.TrimSpace(string(prompt)))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: .burrow/config.yaml, then ~/.burrow/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&flagModel, "model", "m", "", "Model alias for this run (see 'burrow models')")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose diagnostics")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable ANSI colour output")
	rootCmd.PersistentFlags().BoolVar(&flagLean, "lean", false, "Trim response padding to save tokens")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "Approve file writes without prompting")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Disable the response cache")
	rootCmd.PersistentFlags().StringVar(&flagCompact, "compact", "", "Context compaction mode (smart, always, never)")
	rootCmd.PersistentFlags().BoolVar(&flagEscapeFS, "dangerously-allow-entire-fs", false, "Lift the workspace sandbox after typed confirmation")
}

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(cfgFile)
	if path == "" {
		return
	}
	_ = os.Setenv("BURROW_CONFIG", path)
}

// loadConfig resolves the effective configuration with the global
// flags applied on top.
func loadConfig() (*config.Config, error) {
	overrides := &config.Config{
		Model:   flagModel,
		Verbose: flagVerbose,
		Lean:    flagLean,
		NoColor: flagNoColor,
		AutoYes: flagYes,
	}
	if flagNoCache {
		overrides.Cache.Disabled = true
	}
	if flagCompact != "" {
		overrides.Compact.Mode = flagCompact
	}
	return config.Load(overrides)
}

// stdinIsTerminal reports whether stdin is a character device rather
// than a pipe or a file.
func stdinIsTerminal() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// openGuard creates the sandbox guard for the current directory and
// handles the escape confirmation when requested.
func openGuard() (*sandbox.Guard, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	g, err := sandbox.New(cwd)
	if err != nil {
		return nil, err
	}
	if flagEscapeFS {
		confirmEscape(g)
	}
	return g, nil
}

// confirmEscape asks for the typed escape confirmation. Anything but
// the exact literal leaves the boundary in place.
func confirmEscape(g *sandbox.Guard) {
	fmt.Fprintln(os.Stderr, "WARNING: --dangerously-allow-entire-fs lifts the workspace sandbox.")
	fmt.Fprintf(os.Stderr, "File tools and shell commands will reach any path your user can, not just %s.\n", g.Root())
	fmt.Fprintf(os.Stderr, "Type %s to confirm: ", sandbox.EscapeConfirmation)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	if g.AllowEscape(strings.TrimSpace(line)) {
		fmt.Fprintln(os.Stderr, "Sandbox lifted for this run.")
	}
}

// confirmWrites builds the interactive approval prompt for file
// mutations. autoYes short-circuits it; --yes sets the flag at startup
// and the REPL's /yes toggles the same flag at runtime.
func confirmWrites(autoYes *atomic.Bool) tools.ConfirmFunc {
	in := bufio.NewReader(os.Stdin)
	return func(action, path, preview string) bool {
		if autoYes.Load() {
			return true
		}
		fmt.Printf("\n[%s] %s\n", action, path)
		if preview != "" {
			fmt.Println(preview)
		}
		fmt.Print("Apply this change? [y/N] ")
		line, err := in.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// openCache opens the response cache, or returns nil when it is
// disabled or unavailable. A broken cache never blocks a command.
func openCache(cfg *config.Config, log *slog.Logger) *cache.Store {
	if cfg.Cache.Disabled {
		return nil
	}
	store, err := cache.New(cfg.CacheDir(),
		cache.WithMaxAge(cfg.CacheMaxAge()),
		cache.WithMaxSize(cfg.CacheMaxSize()),
	)
	if err != nil {
		log.Warn("response cache unavailable", "error", err)
		return nil
	}
	return store
}

// workspace bundles the collaborators the interactive commands share.
type workspace struct {
	cfg     *config.Config
	guard   *sandbox.Guard
	store   *session.Store
	cache   *cache.Store // nil when disabled
	agent   *agent.Agent
	autoYes *atomic.Bool
	log     *slog.Logger
}

// buildWorkspace wires the full agent stack for the current directory:
// configuration, sandbox guard, response cache, resumed session, and
// provider client.
func buildWorkspace() (*workspace, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := models.Resolve(cfg.Model); err != nil {
		return nil, err
	}
	log := logging.ForVerbosity(cfg.Verbose)

	g, err := openGuard()
	if err != nil {
		return nil, err
	}

	client, err := provider.New(cfg.API.Key, cfg.API.BaseURL,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	store := openCache(cfg, log)

	mode, err := session.ParseMode(cfg.Compact.Mode)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(config.SessionsDir(g.Root()),
		session.WithStoreMode(mode),
		session.WithStoreLimits(session.Limits{
			Threshold: cfg.Compact.Threshold,
			HardLimit: cfg.Compact.HardLimit,
		}),
	)
	sess, resumed := sessions.Resume(g.Root())
	if resumed {
		log.Debug("session resumed", "id", sess.ID, "turns", len(sess.Turns))
	}

	autoYes := new(atomic.Bool)
	autoYes.Store(cfg.AutoYes)
	registry := tools.NewRegistry(g, confirmWrites(autoYes))

	opts := []agent.Option{agent.WithLogger(log), agent.WithLean(cfg.Lean)}
	if store != nil {
		opts = append(opts, agent.WithCache(store))
	}
	a := agent.New(client, registry, sess, cfg.Model, opts...)

	return &workspace{
		cfg:     cfg,
		guard:   g,
		store:   sessions,
		cache:   store,
		agent:   a,
		autoYes: autoYes,
		log:     log,
	}, nil
}
