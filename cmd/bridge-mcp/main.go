package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	bridgemcp "github.com/shatool-dad/group-bridge/internal/mcp"
)

// bridge-mcp exposes the bridge admin API to MCP clients over stdio.
// It needs BRIDGE_API_URL (default http://127.0.0.1:3000) and API_TOKEN.

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("BRIDGE_API_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:3000"
	}
	token := os.Getenv("API_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "API_TOKEN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := bridgemcp.NewServer(bridgemcp.NewClient(baseURL, token), "v1.0.0")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
