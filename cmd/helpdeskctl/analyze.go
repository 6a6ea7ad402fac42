package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vicmordi/AIHelpdesk/internal/api/dto"
	"github.com/vicmordi/AIHelpdesk/internal/bootstrap"
)

var (
	analyzeOrg string
	analyzeAll bool
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOrg, "org", "", "organization to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all-due", false, "analyze every organization where a run is due")
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run knowledge analysis now",
	Long: `Cluster recently handled tickets and draft knowledge suggestions.

Examples:
  # One organization, regardless of schedule
  helpdeskctl analyze --org 7f1c...

  # Every organization that is due
  helpdeskctl analyze --all-due`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	if (analyzeOrg == "") == !analyzeAll {
		return errors.New("pass exactly one of --org or --all-due")
	}
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	container, err := bootstrap.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer container.Close()

	if analyzeAll {
		container.Scheduler.CheckAll(cmd.Context())
		return nil
	}
	result, err := container.Improvement.RunScheduled(cmd.Context(), analyzeOrg)
	if err != nil {
		return fmt.Errorf("analyze %s: %w", analyzeOrg, err)
	}
	return printJSON(cmd.OutOrStdout(), dto.NewAnalysisResponse(result))
}
