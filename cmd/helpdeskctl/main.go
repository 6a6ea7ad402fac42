// Package main implements helpdeskctl, the operator CLI for the helpdesk service.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "helpdeskctl",
	Short: "Operator commands for the helpdesk service",
	Long: `helpdeskctl runs maintenance tasks against the helpdesk's storage using
the same environment configuration as the API server.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadRuntime reads configuration and builds the logger shared by every command.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
