/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"context"
	"fmt"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/josephgoksu/ytflow/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server for AI tool integration",
	Long: `Start a Model Context Protocol (MCP) server over stdio so AI assistants
can generate, validate and research YouTrack workflow scripts.

Tools:
  generate_workflow       run the whole generation pipeline
  validate_workflow       test an existing script
  search_scripting_api    search the scripting API package
  retrieve_code_shots     find example workflow scripts

The server will run until the client disconnects.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func mcpMarkdownResponse(markdown string) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: markdown}},
	}, nil
}

func mcpErrorResponse(err error) (*mcpsdk.CallToolResultFor[any], error) {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: mcp.ErrorText(err)}},
		IsError: true,
	}, nil
}

// addTool registers a Markdown-returning handler. Handler errors become
// error results, not protocol errors, so the client can show them.
func addTool[P any](server *mcpsdk.Server, name, description string, handle func(context.Context, P) (string, error)) {
	tool := &mcpsdk.Tool{Name: name, Description: description}
	mcpsdk.AddTool(server, tool, func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[P]) (*mcpsdk.CallToolResultFor[any], error) {
		text, err := handle(ctx, params.Arguments)
		if err != nil {
			return mcpErrorResponse(err)
		}
		return mcpMarkdownResponse(text)
	})
}

func runMCPServer(ctx context.Context, cmd *cobra.Command) error {
	// NOTE: MCP uses stdio transport. stdout MUST be pure JSON-RPC.
	// All status/debug output goes to stderr only.
	fmt.Fprintln(os.Stderr, "ytflow MCP server starting...")

	svc, err := newServices(ctx, cmd, serviceNeeds{store: true})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer svc.Close()

	service := &mcp.Service{
		Settings: svc.workflowSettings(),
		Searcher: svc.searcher,
		Shots:    svc.library,
		Tester:   svc.tester,
	}
	// Without an LLM the research tools still work.
	if svc.llmCfg, err = resolveLLMConfig(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "⚠  generate_workflow disabled: %v\n", err)
	} else {
		service.NewGenerator = svc.newGenerator
	}

	impl := &mcpsdk.Implementation{
		Name:    "ytflow-mcp",
		Version: version,
	}
	serverOpts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			fmt.Fprintf(os.Stderr, "✓ MCP connection established\n")
			if viper.GetBool("verbose") {
				fmt.Fprintf(os.Stderr, "[DEBUG] Client initialized\n")
			}
		},
	}
	server := mcpsdk.NewServer(impl, serverOpts)

	addTool(server, "generate_workflow",
		"Generate a YouTrack workflow script from a plain-language request. Clarifying questions are answered from \"answers\" in order; set \"clarify\": false to skip them. Returns the code and its test result.",
		service.Generate)
	addTool(server, "validate_workflow",
		"Syntax-check and validate a YouTrack workflow script. Use {\"code\": \"...\"}.",
		service.Validate)
	addTool(server, "search_scripting_api",
		"Search the YouTrack scripting API package. Use {\"query\": \"...\"} for free text or {\"entity\": \"Issue\"} for an entity's methods, properties and examples.",
		service.Search)
	addTool(server, "retrieve_code_shots",
		"Find example workflow scripts relevant to a request. Use {\"query\": \"...\"}.",
		service.RetrieveShots)

	if err := server.Run(ctx, mcpsdk.NewStdioTransport()); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
