package main

import (
	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/plugins"
	"github.com/burrowhq/burrow/internal/repl"
	"github.com/burrowhq/burrow/internal/shell"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive session",
	Long: `Start an interactive session in the current directory.

Input dispatch, in order:
  /command     Slash commands (/help lists them), including plugin commands
  !cmd, ls...  Sandboxed shell built-ins, in-process, never a subprocess
  anything     Natural language for the model

Running 'burrow' with no arguments on a terminal starts the REPL too.
History persists at ~/.burrow/history; the conversation snapshots to
.burrow/sessions/ after every exchange.`,
	RunE: runRepl,
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	ws, err := buildWorkspace()
	if err != nil {
		return err
	}

	reg, err := plugins.Discover(ws.cfg.PluginsDir(), ws.log)
	if err != nil {
		ws.log.Warn("plugin discovery failed", "error", err)
	}

	r := repl.New(repl.Options{
		Agent:       ws.agent,
		Shell:       shell.New(ws.guard),
		Guard:       ws.guard,
		Sessions:    ws.store,
		Cache:       ws.cache,
		Plugins:     reg,
		AutoConfirm: ws.autoYes,
		HistoryFile: ws.cfg.HistoryFile(),
		Color:       !ws.cfg.NoColor,
	})
	return r.Run(cmd.Context())
}
