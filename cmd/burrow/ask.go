package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/agent"
	"github.com/burrowhq/burrow/internal/logging"
	"github.com/burrowhq/burrow/internal/models"
	"github.com/burrowhq/burrow/internal/provider"
)

var askCmd = &cobra.Command{
	Use:   "ask \"prompt\"",
	Short: "One-shot agent exchange",
	Long: `Send one prompt through the agent and print the reply.

The conversation for this directory is resumed first, the exchange is
recorded on it, and a new snapshot is saved afterwards, so repeated
asks build on each other exactly like a REPL session. The agent may
call file tools; mutations prompt for confirmation unless --yes is set.

Examples:
  burrow ask "what does internal/cache do?"
  burrow ask "add a --json flag to the list command"
  burrow -m grok4_reasoning ask "why does this deadlock?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	return askPrompt(cmd.Context(), strings.Join(args, " "))
}

// askPrompt runs one agent exchange and snapshots the session.
func askPrompt(ctx context.Context, prompt string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := buildWorkspace()
	if err != nil {
		return err
	}

	reply, err := ws.agent.Chat(ctx, prompt)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(reply.Content, "\n"))

	if _, err := ws.store.Save(ws.agent.Session()); err != nil {
		ws.log.Warn("session snapshot failed", "error", err)
	}
	ws.log.Debug("exchange complete", "tokens", reply.TotalTokens, "cached", reply.Cached)
	return nil
}

// quickAsk answers piped input as a standalone question: no tools, no
// session, response cache consulted. With stdin already consumed by
// the pipe there is no way to confirm a file write, so the tool loop
// is off the table entirely.
func quickAsk(ctx context.Context, question string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := models.Resolve(cfg.Model); err != nil {
		return err
	}
	log := logging.ForVerbosity(cfg.Verbose)

	client, err := provider.New(cfg.API.Key, cfg.API.BaseURL,
		time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	if err != nil {
		return err
	}

	opts := []agent.Option{agent.WithLogger(log), agent.WithLean(cfg.Lean)}
	if store := openCache(cfg, log); store != nil {
		opts = append(opts, agent.WithCache(store))
	}
	a := agent.New(client, nil, nil, cfg.Model, opts...)

	reply, err := a.Ask(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(reply.Content, "\n"))
	log.Debug("ask complete", "tokens", reply.TotalTokens, "cached", reply.Cached)
	return nil
}
