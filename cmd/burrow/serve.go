package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/mcpserver"
	"github.com/burrowhq/burrow/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the file tools over MCP (stdio)",
	Long: `Serve the sandboxed file tools to MCP clients over stdio.

read_file, write_file, edit_file, and list_files run against the
current directory under the same sandbox guard the agent uses. There
is no terminal to confirm on, so mutations are auto-approved; the
sandbox boundary is the protection. Point an MCP client at:

  { "command": "burrow", "args": ["serve"] }`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	g, err := openGuard()
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(g, tools.AutoConfirm)
	s := mcpserver.New(registry, version)

	// ServeStdio blocks until the client closes the stream and handles
	// its own shutdown signals.
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
