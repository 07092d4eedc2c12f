package logging

import (
	"context"
	"errors"
	"log/slog"
)

// runTee sends each record to the console and to the per-run log file. The
// two sinks filter levels independently, so the run log can keep debug
// records the console drops. Only run log records carry run_id.
type runTee struct {
	console slog.Handler
	runLog  slog.Handler
}

func newRunTee(console, runLog slog.Handler, runID string) slog.Handler {
	switch {
	case runLog == nil && console == nil:
		return NoopHandler{}
	case runLog == nil:
		return console
	}
	runLog = newRunIDHandler(runLog, runID)
	if console == nil {
		return runLog
	}
	return &runTee{console: console, runLog: runLog}
}

func (h *runTee) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.runLog.Enabled(ctx, level)
}

func (h *runTee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	if h.console.Enabled(ctx, record.Level) {
		if err := h.console.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if h.runLog.Enabled(ctx, record.Level) {
		if err := h.runLog.Handle(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *runTee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runTee{console: h.console.WithAttrs(attrs), runLog: h.runLog.WithAttrs(attrs)}
}

func (h *runTee) WithGroup(name string) slog.Handler {
	return &runTee{console: h.console.WithGroup(name), runLog: h.runLog.WithGroup(name)}
}
