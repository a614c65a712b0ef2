package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DevRickLin/chatguard/internal/client"
	"github.com/DevRickLin/chatguard/internal/conf"
	"github.com/DevRickLin/chatguard/internal/logger"
	"github.com/DevRickLin/chatguard/internal/mcp"
)

var version = "dev"

// chatguard-mcp exposes a running engine's control API as MCP tools over stdio.
// CHATGUARD_API_URL selects the engine; stdout is reserved for the protocol.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := conf.LoadFromEnv()
	zl, err := logger.Initialize(cfg.Log.Level, os.Getenv("CHATGUARD_MCP_LOG_FILE"))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	api := client.New(cfg.API.URL, 10*time.Second, zl.Named("mcp"))
	if err := mcp.NewServer(api, version).Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}
