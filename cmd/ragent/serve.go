package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/ragent/internal/api"
	"github.com/kalambet/ragent/internal/runner"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the agent over HTTP and MCP (stdio)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		port, _ := cmd.Flags().GetInt("port")
		return runServer(withMCP, port)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout alongside HTTP")
	serveCmd.Flags().Int("port", 0, "HTTP port (default from config)")
}

func runServer(withMCP bool, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	reg, err := defaultTools(cfg)
	if err != nil {
		return err
	}
	a, err := cfg.NewAgentBuilder().Tools(reg).Build()
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	r := runner.New(a, store, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Token == "" {
		slog.Warn("no server token configured, API is unauthenticated")
	}
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(api.Deps{Runner: r, Tools: reg, Token: cfg.Server.Token}),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		printSuccess("ragent %s listening on %s (model %s)", version, addr, a.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{Runner: r, Tools: reg, Runs: store, Version: version})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdioSrv.Listen(gCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		printStep("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
