package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"alphareel/internal/command"
	"alphareel/internal/encoding"
	"alphareel/internal/frames"
	"alphareel/internal/logging"
	"alphareel/internal/preflight"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var (
		codec      string
		quality    string
		fps        int
		scale      string
		keepAspect bool
		tier       string
		output     string
		verify     bool
		force      bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "encode [flags] <frames-dir|frame.png>...",
		Short: "Encode transparent PNG frames into a video or GIF",
		Long: `Encode reads PNG frames from directories (non-recursive *.png) or explicit
files, orders them by file name, and encodes them with FFmpeg. Unset codec,
quality, and frame rate come from [encoding] config or the capability tier.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			limits, _, err := resolveLimits(cfg, tier)
			if err != nil {
				return err
			}
			scaleOpt, err := parseScale(scale, keepAspect)
			if err != nil {
				return err
			}
			if output != "" && !force {
				if err := refuseExisting(output); err != nil {
					return err
				}
			}

			if failed := preflight.Failed(preflight.RunAll(cmd.Context(), cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight %s failed: %s", strings.ToLower(failed[0].Name), failed[0].Detail)
			}

			loaded, err := frames.Load(args, frames.WithLimits(limits))
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				runCtx, cancel = context.WithTimeout(runCtx, timeout)
				defer cancel()
			}

			p := newPipeline(cfg, logger, pipelineOptions{limits: limits, verify: verify})
			defer func() {
				if err := p.Close(); err != nil {
					logger.Warn("pipeline shutdown incomplete",
						logging.Error(err),
						logging.String(logging.FieldEventType, "pipeline_close_failed"),
						logging.String(logging.FieldErrorHint, "remove leftovers with alphareel cleanup"),
						logging.String(logging.FieldImpact, "scratch workspace may remain on disk"),
					)
				}
			}()

			progress := newProgressLine(cmd.ErrOrStderr())
			artifact, err := p.orchestrator.Process(runCtx, loaded, encoding.Options{
				FrameRate: fps,
				Codec:     codec,
				Quality:   quality,
				Scale:     scaleOpt,
			}, progress.update)
			progress.finish()
			if err != nil {
				return err
			}

			target, err := resolveOutputPath(output, artifact)
			if err != nil {
				return err
			}
			if !force && target != output {
				if err := refuseExisting(target); err != nil {
					return err
				}
			}
			if err := renameio.WriteFile(target, artifact.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			if p.history != nil {
				if err := p.history.SetOutputPath(context.WithoutCancel(runCtx), artifact.JobID, target); err != nil {
					logging.WarnWithContext(logger, "history output path not recorded", "history_write_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "alphareel history shows no output path for this job"),
					)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s, %d frames, %s)\n",
				target, artifact.Codec, artifact.MIMEType, artifact.Frames, humanize.IBytes(uint64(len(artifact.Data))))
			return nil
		},
	}

	cmd.Flags().StringVar(&codec, "codec", "", "Codec: vp9, vp8, h264, gif, prores, qtrle (default from config or tier)")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality tier: best, good, realtime (default from config or tier)")
	cmd.Flags().IntVar(&fps, "fps", 0, "Frame rate (default from config or tier)")
	cmd.Flags().StringVar(&scale, "scale", "", "Target size WxH; omit one side to keep aspect (e.g. 640x or x480)")
	cmd.Flags().BoolVar(&keepAspect, "keep-aspect", true, "Fit inside WxH without distorting when both sides are given")
	cmd.Flags().StringVar(&tier, "tier", "auto", "Capability tier: auto, constrained, intermediate, full")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file or directory (extension added when missing)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Probe the output with ffprobe and reject it if alpha was lost")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing output file")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting for the encoder after this long (0 waits indefinitely)")
	return cmd
}

// parseScale reads "WxH", "Wx", or "xH". An empty value means no scaling.
func parseScale(value string, keepAspect bool) (*command.Scale, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil, nil
	}
	widthText, heightText, ok := strings.Cut(value, "x")
	if !ok {
		return nil, fmt.Errorf("scale %q must look like WxH, Wx, or xH", value)
	}
	width, err := parseDimension(widthText)
	if err != nil {
		return nil, fmt.Errorf("scale width: %w", err)
	}
	height, err := parseDimension(heightText)
	if err != nil {
		return nil, fmt.Errorf("scale height: %w", err)
	}
	if width == 0 && height == 0 {
		return nil, fmt.Errorf("scale %q needs at least one side", value)
	}
	return &command.Scale{Width: width, Height: height, PreserveAspect: keepAspect}, nil
}

func parseDimension(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || text == "-1" {
		return 0, nil
	}
	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q is not a positive integer", text)
	}
	return n, nil
}

// resolveOutputPath places the artifact at output. An empty output or an
// existing directory gets a job-named file; a path without an extension gets
// the container's.
func resolveOutputPath(output string, artifact *encoding.Artifact) (string, error) {
	name := "alphareel-" + shortID(artifact.JobID) + artifact.Extension()
	output = strings.TrimSpace(output)
	if output == "" {
		return name, nil
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, name), nil
	}
	if filepath.Ext(output) == "" {
		output += artifact.Extension()
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	return output, nil
}

func refuseExisting(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("check output path: %w", err)
	case info.IsDir():
		return nil
	default:
		return fmt.Errorf("output %s already exists (use --force to replace it)", path)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
