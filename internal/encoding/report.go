package encoding

import (
	"context"
	"time"
)

// OutcomeSuccess is the JobReport outcome of a completed job. Failed jobs
// carry their services.Kind tag.
const OutcomeSuccess = "success"

// JobReport summarizes one finished job.
type JobReport struct {
	ID          string
	Tier        string
	Codec       string
	Quality     string
	FrameRate   int
	Frames      int
	InputBytes  int64
	OutputBytes int64
	Outcome     string
	Error       string
	StartedAt   time.Time
	Duration    time.Duration
}

// Recorder receives a report for every job, successful or not.
type Recorder interface {
	RecordJob(ctx context.Context, report JobReport)
}

// ArtifactPolicy inspects a finished artifact before it is returned. A
// non-nil error discards the artifact.
type ArtifactPolicy func(ctx context.Context, artifact *Artifact) error

// Recorders fans one report out to several recorders, skipping nil ones.
func Recorders(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

type multiRecorder []Recorder

func (m multiRecorder) RecordJob(ctx context.Context, report JobReport) {
	for _, r := range m {
		if r != nil {
			r.RecordJob(ctx, report)
		}
	}
}
