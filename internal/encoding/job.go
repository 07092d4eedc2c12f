package encoding

import (
	"context"
	"fmt"
	"log/slog"

	"alphareel/internal/codecruntime"
	"alphareel/internal/command"
	"alphareel/internal/logging"
	"alphareel/internal/services"
)

// job is the transient state of one Process call. It holds the session for
// its whole lifetime and is discarded when run returns.
type job struct {
	session *codecruntime.Session
	plan    command.Plan
	frames  []Frame
	tracker *progressTracker
	logger  *slog.Logger

	staged []string
}

// run stages, encodes, and extracts. Cleanup and session release always run
// before it returns.
func (j *job) run(ctx context.Context) (*Artifact, error) {
	defer j.session.Release()
	defer j.cleanup()

	if err := j.stage(); err != nil {
		return nil, err
	}
	if err := j.encode(ctx); err != nil {
		return nil, err
	}
	return j.extract()
}

func (j *job) stage() error {
	j.staged = make([]string, 0, len(j.frames))
	for i, frame := range j.frames {
		name := command.FrameName(i)
		j.staged = append(j.staged, name)
		if err := j.session.WriteFile(name, frame.Data); err != nil {
			return services.Wrap(services.ErrStaging, "stage", "write frame",
				fmt.Sprintf("frame %q as %s", frame.Name, name), err)
		}
	}
	j.logger.Debug("frames staged",
		logging.Int("frames", len(j.staged)),
		logging.String(logging.FieldEventType, "frames_staged"),
	)
	return nil
}

func (j *job) encode(ctx context.Context) error {
	sampler := logging.NewProgressSampler(25)
	count := len(j.plan.Stages)
	for i, stage := range j.plan.Stages {
		stageCtx := services.WithStage(ctx, stage.Name)
		logger := logging.WithContext(stageCtx, j.logger)
		logger.Debug("encoder stage starting",
			logging.Strings("args", stage.Args),
			logging.String(logging.FieldEventType, "stage_start"),
		)
		sink := j.tracker.stage(i, count)
		progress := Bridge(func(percent int) {
			sink(percent)
			if sampler.ShouldLog(percent, stage.Name) {
				logger.Debug("encoder progress", logging.Int("percent", percent))
			}
		})
		if err := j.session.Run(stageCtx, stage.Args, progress); err != nil {
			return services.Wrap(services.ErrEncodeInvocation, "encode", stage.Name, "encoder invocation failed", err)
		}
		if err := j.requireOutput(stage.Output, stage.Name); err != nil {
			return err
		}
	}
	return nil
}

func (j *job) requireOutput(name, stage string) error {
	exists, err := j.session.Exists(name)
	if err != nil {
		return services.Wrap(services.ErrEncodeInvocation, "encode", stage, "check runtime output", err)
	}
	if !exists {
		return services.Wrap(services.ErrOutputMissing, "encode", stage,
			fmt.Sprintf("encoder finished without writing %s", name), nil)
	}
	return nil
}

func (j *job) extract() (*Artifact, error) {
	data, err := j.session.ReadFile(j.plan.Output)
	if err != nil {
		return nil, services.Wrap(services.ErrOutputMissing, "extract", "read output", j.plan.Output, err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrOutputMissing, "extract", "read output",
			fmt.Sprintf("%s is empty", j.plan.Output), nil)
	}
	return &Artifact{
		Data:      data,
		MIMEType:  j.plan.MIMEType,
		Container: j.plan.Container,
		Frames:    len(j.frames),
	}, nil
}

// cleanup unlinks every staged frame, intermediate, and output. Unlink
// failures, including files that were never written, are ignored.
func (j *job) cleanup() {
	names := make([]string, 0, len(j.staged)+len(j.plan.Intermediates)+1)
	names = append(names, j.staged...)
	names = append(names, j.plan.Intermediates...)
	names = append(names, j.plan.Output)
	removed := 0
	for _, name := range names {
		if err := j.session.Unlink(name); err == nil {
			removed++
		}
	}
	j.logger.Debug("runtime files cleaned",
		logging.Int("removed", removed),
		logging.Int("candidates", len(names)),
		logging.String(logging.FieldEventType, "cleanup"),
	)
}
