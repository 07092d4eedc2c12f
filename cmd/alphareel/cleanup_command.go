package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"alphareel/internal/logging"
	"alphareel/internal/staging"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale scratch workspaces, old run logs, and old history rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			maxAge := olderThan
			if maxAge <= 0 {
				maxAge = time.Duration(cfg.Cleanup.StaleWorkspaceMinutes) * time.Minute
			}

			if dryRun {
				workspaces, err := staging.ListWorkspaces(cfg.Paths.ScratchDir)
				if err != nil {
					return err
				}
				cutoff := time.Now().Add(-maxAge)
				count := 0
				for _, ws := range workspaces {
					if ws.InUse || !ws.ModTime.Before(cutoff) {
						continue
					}
					count++
					fmt.Fprintf(out, "Would remove %s\n", ws.Path)
				}
				fmt.Fprintf(out, "%d stale workspace(s) found\n", count)
				return nil
			}

			result := staging.CleanStale(cmd.Context(), cfg.Paths.ScratchDir, maxAge, logger)
			fmt.Fprintf(out, "Workspaces: %d removed, %d in use, %d failed\n",
				len(result.Removed), len(result.Skipped), len(result.Errors))
			for _, failure := range result.Errors {
				fmt.Fprintf(out, "  %s: %v\n", failure.Path, failure.Error)
			}

			pruned := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: logging.RunLogPattern,
			})
			fmt.Fprintf(out, "Run logs: %d pruned\n", pruned)

			if cfg.History.Enabled && cfg.History.RetentionDays > 0 {
				store, err := ctx.openHistory()
				if err != nil {
					return err
				}
				defer store.Close()
				cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
				removed, err := store.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "History: %d job(s) pruned\n", removed)
			}

			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Workspace age threshold (default cleanup.stale_workspace_minutes)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List stale workspaces without removing anything")
	return cmd
}
