package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentcluster/internal/campaign"
	"agentcluster/internal/config"
	"agentcluster/internal/mcpapi"
	"agentcluster/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	serveAddr        string
	serveWatchConfig bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP, WebSocket and MCP API",
	Long: `Runs one orchestrator behind the HTTP API:

  POST /v1/build        start a build
  POST /v1/build/stop   stop the running build
  POST /v1/intent       submit an intent
  GET  /v1/snapshot     current state
  GET  /v1/servers      MCP server catalog
  GET  /v1/stream       WebSocket snapshot stream
  /mcp                  MCP streamable HTTP endpoint (server.enable_mcp)

Timing and retry changes to the config file apply from the next build.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveWatchConfig, "watch-config", true, "Reload timings and retry policy when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	flush := initTelemetry(cmd.Context())
	defer flush()

	o, release, err := newCluster()
	if err != nil {
		return err
	}
	defer release()

	if err := o.Metrics().RegisterGauges(); err != nil {
		logger.Warn("metric gauges unavailable", zap.Error(err))
	}

	var mcpHandler http.Handler
	if cfg.Server.EnableMCP {
		mcpHandler = mcpapi.New(o, cfg.Version).HTTPHandler()
	}

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := server.New(server.Config{
		Addr:         addr,
		Cluster:      o,
		MCPHandler:   mcpHandler,
		Version:      cfg.Version,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GetWriteTimeout(),
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		return srv.Shutdown(shutdownCtx)
	})

	if serveWatchConfig {
		if _, err := os.Stat(configPath); err == nil {
			w, err := config.NewWatcher(configPath, reloadInto(o))
			if err != nil {
				return err
			}
			g.Go(func() error { return w.Run(gctx) })
		} else {
			logger.Info("config file absent, reload disabled", zap.String("path", configPath))
		}
	}

	logger.Info("agentcluster serving", zap.String("addr", addr), zap.Bool("mcp", mcpHandler != nil))
	return g.Wait()
}

// reloadInto applies a reloaded config to the orchestrator. The running
// build keeps the config it started with.
func reloadInto(o *campaign.Orchestrator) func(*config.Config) {
	return func(c *config.Config) {
		if err := c.Validate(); err != nil {
			logger.Warn("ignoring invalid config reload", zap.Error(err))
			return
		}
		o.SetConfig(orchestratorConfig(c))
		logger.Info("config reloaded", zap.Int("max_retries", c.Retry.MaxRetries))
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	o, release, err := newCluster()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return mcpapi.New(o, cfg.Version).ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
