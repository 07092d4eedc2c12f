package encoding

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"alphareel/internal/capability"
	"alphareel/internal/codecruntime"
	"alphareel/internal/command"
	"alphareel/internal/logging"
	"alphareel/internal/services"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithArtifactPolicy installs a hook that runs after a successful encode.
func WithArtifactPolicy(policy ArtifactPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithRecorder installs a recorder for job reports.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = recorder
	}
}

// Orchestrator runs encoding jobs against a codec runtime.
type Orchestrator struct {
	runtime  *codecruntime.Manager
	limits   capability.Limits
	logger   *slog.Logger
	policy   ArtifactPolicy
	recorder Recorder
	now      func() time.Time
}

// New constructs an Orchestrator that validates against limits.
func New(runtime *codecruntime.Manager, limits capability.Limits, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		runtime: runtime,
		limits:  limits,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "encoding")
	return o
}

// Limits returns the limits jobs are validated against.
func (o *Orchestrator) Limits() capability.Limits {
	return o.limits
}

// Process encodes frames into one artifact. Frames are ordered by name
// regardless of the order given. onProgress may be nil.
func (o *Orchestrator) Process(ctx context.Context, frames []Frame, opts Options, onProgress ProgressFunc) (*Artifact, error) {
	id := uuid.NewString()
	ctx = services.WithJobID(ctx, id)
	logger := logging.WithContext(ctx, o.logger)
	started := o.now()

	report := JobReport{
		ID:        id,
		Tier:      string(o.limits.Tier),
		Codec:     opts.Codec,
		Quality:   opts.Quality,
		FrameRate: opts.FrameRate,
		Frames:    len(frames),
		StartedAt: started,
	}
	for _, frame := range frames {
		report.InputBytes += frame.Size()
	}

	artifact, err := o.process(ctx, logger, frames, opts, onProgress, &report)

	report.Duration = o.now().Sub(started)
	if err != nil {
		report.Outcome = services.Kind(err)
		report.Error = err.Error()
		logging.ErrorWithContext(logger, "encoding job failed", "job_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorKind, report.Outcome),
			logging.String(logging.FieldErrorHint, errorHint(err)),
			logging.Duration("elapsed", report.Duration),
		)
	} else {
		report.Outcome = OutcomeSuccess
		report.OutputBytes = int64(len(artifact.Data))
		logger.Info("encoding job complete",
			logging.String("codec", string(artifact.Codec)),
			logging.String("mime_type", artifact.MIMEType),
			logging.Int("frames", artifact.Frames),
			logging.Int64("output_bytes", report.OutputBytes),
			logging.Duration("elapsed", report.Duration),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	}
	if o.recorder != nil {
		o.recorder.RecordJob(context.WithoutCancel(ctx), report)
	}
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, frames []Frame, opts Options, onProgress ProgressFunc, report *JobReport) (*Artifact, error) {
	if err := validateFrames(frames, o.limits); err != nil {
		return nil, err
	}
	resolved, err := resolveOptions(opts, o.limits)
	if err != nil {
		return nil, err
	}
	report.Codec = string(resolved.Codec)
	report.Quality = string(resolved.Quality)
	report.FrameRate = resolved.FrameRate
	logResolvedOptions(logger, opts, resolved)

	plan, err := command.Build(len(frames), resolved)
	if err != nil {
		return nil, err
	}

	session, err := o.runtime.Acquire(ctx)
	if err != nil {
		if errors.Is(err, services.ErrRuntimeInit) {
			return nil, err
		}
		return nil, fmt.Errorf("wait for codec runtime: %w", err)
	}

	tracker := newProgressTracker(onProgress)
	j := &job{
		session: session,
		plan:    plan,
		frames:  sortFrames(frames),
		tracker: tracker,
		logger:  logger,
	}
	artifact, err := j.run(ctx)
	if err != nil {
		tracker.detach()
		return nil, err
	}
	artifact.JobID = report.ID
	artifact.Codec = resolved.Codec

	if o.policy != nil {
		if err := o.policy(ctx, artifact); err != nil {
			tracker.detach()
			if errors.Is(err, services.ErrArtifactRejected) {
				return nil, err
			}
			return nil, services.Wrap(services.ErrArtifactRejected, "policy", "inspect artifact", "artifact policy rejected the output", err)
		}
	}
	tracker.finish()
	tracker.detach()
	return artifact, nil
}

// sortFrames returns frames ordered by name. Equal names keep their input
// order.
func sortFrames(frames []Frame) []Frame {
	sorted := slices.Clone(frames)
	slices.SortStableFunc(sorted, func(a, b Frame) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return sorted
}

func logResolvedOptions(logger *slog.Logger, requested Options, resolved command.Options) {
	var defaulted []string
	if strings.TrimSpace(requested.Codec) == "" {
		defaulted = append(defaulted, "codec")
	}
	if strings.TrimSpace(requested.Quality) == "" {
		defaulted = append(defaulted, "quality")
	}
	if requested.FrameRate == 0 {
		defaulted = append(defaulted, "frame_rate")
	}
	attrs := []logging.Attr{
		logging.String("codec", string(resolved.Codec)),
		logging.String("quality", string(resolved.Quality)),
		logging.Int("frame_rate", resolved.FrameRate),
	}
	if len(defaulted) > 0 {
		attrs = append(attrs, logging.DecisionAttrs("encoding_defaults", "tier_default",
			strings.Join(defaulted, ",")+" taken from device tier")...)
	}
	logger.Info("encoding options resolved", logging.Args(attrs...)...)
}

func errorHint(err error) string {
	switch services.Kind(err) {
	case services.KindValidation:
		return "check the frame files and the limits shown by alphareel limits"
	case services.KindRuntimeInit:
		return "run alphareel doctor to check the ffmpeg binary"
	case services.KindUnsupportedCodec:
		return "pick a codec listed by alphareel codecs"
	case services.KindStaging:
		return "check free space in the scratch directory"
	case services.KindEncodeInvocation:
		return "rerun with --log-level debug to see the encoder arguments"
	case services.KindOutputMissing:
		return "the encoder exited cleanly without output; check the encoder build supports the codec"
	case services.KindArtifactRejected:
		return "the encoded output failed verification"
	default:
		return ""
	}
}
