package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"alphareel/internal/capability"
)

func newLimitsCommand(ctx *commandContext) *cobra.Command {
	var tier string
	var all bool

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Show the capability tier and encoding limits for this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all {
				rows := make([][]string, 0, 3)
				for _, limits := range capability.Tiers() {
					rows = append(rows, limitsRow(limits))
				}
				fmt.Fprintln(out, renderTable(limitsHeaders, rows, limitsAligns))
				return nil
			}

			limits, env, err := resolveLimits(cfg, tier)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Host: %d CPUs, %s memory\n", env.CPUCount, memoryLabel(env.MemoryBytes))
			fmt.Fprintf(out, "Tier: %s\n", label(string(limits.Tier)))
			fmt.Fprintln(out, renderTable(limitsHeaders, [][]string{limitsRow(limits)}, limitsAligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "auto", "Capability tier: auto, constrained, intermediate, full")
	cmd.Flags().BoolVar(&all, "all", false, "List the built-in ceilings of every tier")
	return cmd
}

var (
	limitsHeaders = []string{"Tier", "Max Frames", "Max Size", "Frame Rate", "Quality", "Codec"}
	limitsAligns  = []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}
)

func limitsRow(limits capability.Limits) []string {
	return []string{
		label(string(limits.Tier)),
		strconv.Itoa(limits.MaxFrameCount),
		humanize.IBytes(uint64(limits.MaxTotalSizeBytes)),
		strconv.Itoa(limits.DefaultFrameRate),
		limits.DefaultQuality,
		limits.DefaultCodec,
	}
}

func memoryLabel(bytes int64) string {
	if bytes <= 0 {
		return "unknown"
	}
	return humanize.IBytes(uint64(bytes))
}
