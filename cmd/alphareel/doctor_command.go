package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alphareel/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, encoders, and directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			problems := 0

			depRows := [][]string{}
			ffmpegReady := false
			for _, status := range preflight.CheckSystemDeps(cmd.Context(), cfg) {
				state := "ok"
				detail := status.Command
				switch {
				case !status.Available && status.Optional:
					state = "missing (optional)"
					detail = status.Detail
				case !status.Available:
					state = "missing"
					detail = status.Detail
					problems++
				}
				if status.Name == "FFmpeg" {
					ffmpegReady = status.Available
				}
				depRows = append(depRows, []string{status.Name, state, detail, status.Description})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Status", "Detail", "Purpose"}, depRows, nil))

			checkRows := [][]string{}
			results := preflight.RunAll(cmd.Context(), cfg)
			if ffmpegReady {
				encoders, _ := preflight.CheckEncoders(cmd.Context(), cfg)
				results = append(results, encoders)
			}
			for _, result := range results {
				if !result.Passed {
					problems++
				}
				checkRows = append(checkRows, []string{result.Name, passLabel(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, checkRows, nil))

			if problems > 0 {
				return fmt.Errorf("%d problem(s) found", problems)
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func passLabel(passed bool) string {
	if passed {
		return "ok"
	}
	return "failed"
}
