package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/config"
	"github.com/burrowhq/burrow/internal/heavy"
	"github.com/burrowhq/burrow/internal/logging"
	"github.com/burrowhq/burrow/internal/provider"
	"github.com/burrowhq/burrow/internal/session"
	"github.com/burrowhq/burrow/internal/toon"
)

var heavyCmd = &cobra.Command{
	Use:   "heavy \"task\"",
	Short: "Parallel specialist mode",
	Long: `Fan one task out to three specialists in parallel, then synthesize.

A coder, a reviewer, and an optimizer each attack the task
independently on the reasoning model; a final coordinator pass merges
their proposals into one answer. Individual specialist failures are
reported inline and degrade the result; the run fails only when every
specialist fails.

Costs roughly 3.5x a single call. Worth it for gnarly tasks, wasteful
for simple ones.

Examples:
  burrow heavy "implement an LRU cache with TTL support"
  burrow heavy "find the race condition in internal/worker"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHeavy,
}

func init() {
	rootCmd.AddCommand(heavyCmd)
}

func runHeavy(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.ForVerbosity(cfg.Verbose)

	// Reasoning calls routinely outlive the interactive timeout, so the
	// transport stays unbounded here; Ctrl-C cancels via the context.
	client, err := provider.New(cfg.API.Key, cfg.API.BaseURL, 0)
	if err != nil {
		return err
	}

	opts := []heavy.Option{heavy.WithLogger(log)}
	if store := openCache(cfg, log); store != nil {
		opts = append(opts, heavy.WithCache(store))
	}
	runner := heavy.New(client, opts...)

	// Heavy runs never touch files, but they do see the conversation
	// context for this directory when one exists.
	var doc toon.Document
	if cwd, err := os.Getwd(); err == nil {
		sessions := session.NewStore(config.SessionsDir(cwd))
		if sess, resumed := sessions.Resume(cwd); resumed {
			doc = sess.ContextDocument()
		}
	}

	task := strings.Join(args, " ")
	fmt.Printf("Running 3 specialists on %s...\n", heavy.ReasoningModel)

	result, err := runner.Run(ctx, task, doc)
	if err != nil {
		return err
	}

	for _, p := range result.Proposals {
		if p.Err != nil {
			fmt.Printf("  %-10s failed: %v\n", p.Role, p.Err)
			continue
		}
		note := ""
		if p.Cached {
			note = " (cached)"
		}
		fmt.Printf("  %-10s %d tokens%s\n", p.Role, p.Tokens, note)
	}

	fmt.Println()
	fmt.Println(strings.TrimRight(result.Answer, "\n"))
	log.Debug("heavy run complete", "total_tokens", result.TotalTokens, "meta_tokens", result.MetaTokens)
	return nil
}
