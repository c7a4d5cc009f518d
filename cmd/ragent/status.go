package main

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/ragent/internal/config"
	"github.com/kalambet/ragent/internal/llm"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and whether the server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// Still show partial status even if config fails.
			printError("config error: %v", err)
			return nil
		}
		endpoint := llm.NewClient(cfg.Agent.BaseURL, cfg.Agent.APIKey,
			llm.WithHTTPClient(&http.Client{Timeout: 5 * time.Second}))
		showStatus(cmd.Context(), cfg, endpoint, newAPIClient(cfg))
		return nil
	},
}

type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

func showStatus(ctx context.Context, cfg config.Config, endpoint modelLister, client *apiClient) {
	if ctx == nil {
		ctx = context.Background()
	}

	model := cfg.Agent.Model
	if model == "" {
		model = colorize(colorRed, "(unset, run `ragent config set agent.model <name>`)")
	}
	printStatus("Model", "%s", model)
	printStatus("Endpoint", "%s", cfg.Agent.BaseURL)
	models, err := endpoint.ListModels(ctx)
	switch {
	case err != nil:
		printStatus("Endpoint status", "unreachable (%v)", err)
	case cfg.Agent.Model != "" && !slices.Contains(models, cfg.Agent.Model):
		printStatus("Endpoint status", "up, %d models, %s", len(models), colorize(colorYellow, "configured model not listed"))
	default:
		printStatus("Endpoint status", "up, %d models", len(models))
	}
	printStatus("Max iterations", "%d", cfg.Agent.MaxIterations)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	var health map[string]string
	if err := client.getJSON(ctx, "/health", &health); err != nil || health["status"] != "ok" {
		printStatus("Server", "stopped")
		return
	}
	printStatus("Server", "running on port %d", cfg.Server.Port)

	var list struct {
		Data []llm.ToolDefinition `json:"data"`
	}
	if err := client.getJSON(ctx, "/v1/tools", &list); err != nil {
		printStatus("Tools", "unavailable (%v)", err)
		return
	}
	printStatus("Tools", "%d registered", len(list.Data))
}
