package main

import (
	"errors"
	"log/slog"
	"strings"

	"alphareel/internal/capability"
	"alphareel/internal/codecruntime"
	"alphareel/internal/config"
	"alphareel/internal/encoding"
	"alphareel/internal/engine"
	"alphareel/internal/history"
	"alphareel/internal/logging"
	"alphareel/internal/media/ffprobe"
	"alphareel/internal/metrics"
	"alphareel/internal/services/ffmpeg"
)

// newEngineFactory builds the engine the codec runtime loads. Tests replace it.
var newEngineFactory = func(cfg *config.Config, logger *slog.Logger) engine.Factory {
	return ffmpeg.Factory(
		ffmpeg.WithBinary(cfg.FFmpeg.Binary),
		ffmpeg.WithScratchRoot(cfg.Paths.ScratchDir),
		ffmpeg.WithLogger(logger),
	)
}

// resolveLimits picks the tier (forced or detected from the host), lowers its
// ceilings to the configured caps, and applies [encoding] defaults.
func resolveLimits(cfg *config.Config, tierName string) (capability.Limits, capability.Environment, error) {
	env := capability.DetectHost()
	var limits capability.Limits
	switch name := strings.TrimSpace(tierName); name {
	case "", "auto":
		limits = capability.Profile(env)
	default:
		forced, err := capability.ForceTier(name)
		if err != nil {
			return capability.Limits{}, env, err
		}
		limits = forced
	}
	limits = limits.Cap(cfg.Limits.MaxFrameCount, cfg.MaxTotalSizeBytes())
	if cfg.Encoding.Codec != "" {
		limits.DefaultCodec = cfg.Encoding.Codec
	}
	if cfg.Encoding.Quality != "" {
		limits.DefaultQuality = cfg.Encoding.Quality
	}
	if cfg.Encoding.FrameRate > 0 {
		limits.DefaultFrameRate = cfg.Encoding.FrameRate
	}
	return limits, env, nil
}

type pipelineOptions struct {
	limits capability.Limits
	verify bool
}

// pipeline wires the orchestrator to the codec runtime and the optional
// history and metrics sinks.
type pipeline struct {
	cfg          *config.Config
	logger       *slog.Logger
	runtime      *codecruntime.Manager
	orchestrator *encoding.Orchestrator
	history      *history.Store
	metrics      *metrics.Collector
}

func newPipeline(cfg *config.Config, logger *slog.Logger, opts pipelineOptions) *pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &pipeline{cfg: cfg, logger: logger}

	var recorders []encoding.Recorder
	var observer codecruntime.Observer
	if strings.TrimSpace(cfg.Metrics.TextfilePath) != "" {
		p.metrics = metrics.New()
		recorders = append(recorders, p.metrics)
		observer = p.metrics
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			logging.WarnWithContext(logger, "job history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.history_db or delete a stale history database"),
				logging.String(logging.FieldImpact, "this job will not appear in alphareel history"),
			)
		} else {
			p.history = store
			recorders = append(recorders, store.Recorder(logger))
		}
	}

	runtimeOpts := []codecruntime.Option{codecruntime.WithLogger(logger)}
	if observer != nil {
		runtimeOpts = append(runtimeOpts, codecruntime.WithObserver(observer))
	}
	p.runtime = codecruntime.New(newEngineFactory(cfg, logger), runtimeOpts...)

	orchestratorOpts := []encoding.Option{encoding.WithLogger(logger)}
	if len(recorders) > 0 {
		orchestratorOpts = append(orchestratorOpts, encoding.WithRecorder(encoding.Recorders(recorders...)))
	}
	if opts.verify {
		orchestratorOpts = append(orchestratorOpts,
			encoding.WithArtifactPolicy(ffprobe.AlphaPolicy(cfg.FFmpeg.FFprobeBinary, cfg.Paths.ScratchDir, logger)))
	}
	p.orchestrator = encoding.New(p.runtime, opts.limits, orchestratorOpts...)
	return p
}

// Close releases the runtime, exports metrics, and closes history.
func (p *pipeline) Close() error {
	var errs []error
	if err := p.runtime.Dispose(); err != nil {
		errs = append(errs, err)
	}
	if p.metrics != nil {
		if err := p.metrics.WriteTextfile(p.cfg.Metrics.TextfilePath); err != nil {
			logging.WarnWithContext(p.logger, "metrics export failed", "metrics_export_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check metrics.textfile_path"),
				logging.String(logging.FieldImpact, "node exporter will serve stale alphareel metrics"),
			)
		}
	}
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
