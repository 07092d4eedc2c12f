package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alphareel/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent encoding jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openHistory()
			if err != nil {
				return err
			}
			if store == nil {
				return errHistoryDisabled
			}
			defer store.Close()

			jobs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, historyRow(job))
			}
			headers := []string{"Job", "Started", "Codec", "Frames", "Output Size", "Duration", "Outcome", "Output"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to show")
	return cmd
}

func historyRow(job history.Job) []string {
	size := "-"
	if job.OutputBytes > 0 {
		size = humanize.IBytes(uint64(job.OutputBytes))
	}
	output := job.OutputPath
	if output == "" {
		output = "-"
	}
	codec := job.Codec
	if codec == "" {
		codec = "-"
	}
	return []string{
		shortID(job.ID),
		humanize.Time(job.StartedAt),
		codec,
		strconv.Itoa(job.Frames),
		size,
		job.Duration.Round(10 * time.Millisecond).String(),
		label(job.Outcome),
		output,
	}
}
