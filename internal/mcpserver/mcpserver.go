// Package mcpserver exposes the sandboxed file tools over the Model
// Context Protocol, so external MCP clients can work in the same
// guard-enforced workspace the agent uses. The tool surface mirrors
// the agent's exactly: same names, same parameters, same registry
// underneath. The guard stays mandatory; nothing here bypasses path
// authorization.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/burrowhq/burrow/internal/tools"
)

// New builds a stdio-ready MCP server around one tool registry.
func New(registry *tools.Registry, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"burrow",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions(registry)),
	)

	h := handler{registry: registry}
	s.AddTool(readFileTool(), h.readFile)
	s.AddTool(writeFileTool(), h.writeFile)
	s.AddTool(editFileTool(), h.editFile)
	s.AddTool(listFilesTool(), h.listFiles)
	return s
}

func instructions(registry *tools.Registry) string {
	return fmt.Sprintf(`Burrow provides sandboxed file access to one workspace.

Workspace root: %s

All paths resolve relative to the workspace root; paths outside it are
refused. Use list_files to orient yourself, read_file before changing
anything, edit_file for targeted replacements, and write_file for new
files or full rewrites.`, registry.Guard().Root())
}

// handler adapts registry results to MCP tool results.
type handler struct {
	registry *tools.Registry
}

// toResult maps a registry outcome onto the MCP result shape. Registry
// failures (sandbox violations included) become tool errors for the
// client, not protocol errors.
func toResult(res *tools.Result) *mcp.CallToolResult {
	if !res.Success {
		return mcp.NewToolResultError(res.Error)
	}
	return mcp.NewToolResultText(res.Result)
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read the contents of a file. Use this to examine existing code or text files."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("The path to the file to read (relative to the workspace root)"),
		),
	)
}

func (h handler) readFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	return toResult(h.registry.ReadFile(path)), nil
}

func writeFileTool() mcp.Tool {
	return mcp.NewTool("write_file",
		mcp.WithDescription("Write content to a file. Creates the file if it doesn't exist, or overwrites if it does."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("The path to the file to write (relative to the workspace root)"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The content to write to the file"),
		),
	)
}

func (h handler) writeFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	content := req.GetString("content", "")
	return toResult(h.registry.WriteFile(path, content)), nil
}

func editFileTool() mcp.Tool {
	return mcp.NewTool("edit_file",
		mcp.WithDescription("Edit an existing file by replacing specific text. Use this for modifications to existing files."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("The path to the file to edit"),
		),
		mcp.WithString("old_text",
			mcp.Required(),
			mcp.Description("The exact text to find and replace"),
		),
		mcp.WithString("new_text",
			mcp.Required(),
			mcp.Description("The text to replace it with"),
		),
	)
}

func (h handler) editFile(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("'path' is required"), nil
	}
	oldText := req.GetString("old_text", "")
	if oldText == "" {
		return mcp.NewToolResultError("'old_text' is required"), nil
	}
	newText := req.GetString("new_text", "")
	return toResult(h.registry.EditFile(path, oldText, newText)), nil
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("list_files",
		mcp.WithDescription("List files and directories in a given path."),
		mcp.WithString("path",
			mcp.Description("The directory path to list (defaults to the current directory)"),
			mcp.DefaultString("."),
		),
	)
}

func (h handler) listFiles(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toResult(h.registry.ListFiles(req.GetString("path", "."))), nil
}
