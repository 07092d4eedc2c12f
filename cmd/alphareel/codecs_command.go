package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"alphareel/internal/command"
	"alphareel/internal/deps"
)

func newCodecsCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "codecs",
		Short: "List supported codecs and their containers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var available map[command.Codec]bool
			if check {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				statuses, err := deps.CheckEncoders(cmd.Context(), cfg.FFmpeg.Binary)
				if err != nil {
					return err
				}
				available = make(map[command.Codec]bool, len(statuses))
				for _, status := range statuses {
					available[status.Codec] = status.Available
				}
			}

			headers := []string{"Codec", "Encoder", "Container", "MIME Type", "Pixel Format", "Alpha"}
			if check {
				headers = append(headers, "Available")
			}
			var rows [][]string
			for _, info := range command.Codecs() {
				row := []string{
					string(info.Codec),
					info.Encoder,
					string(info.Container),
					info.MIMEType,
					info.PixelFormat,
					yesNo(info.Alpha),
				}
				if check {
					row = append(row, yesNo(available[info.Codec]))
				}
				rows = append(rows, row)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Ask the configured ffmpeg which encoders it ships")
	return cmd
}
