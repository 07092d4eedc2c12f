package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"alphareel/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrStaging, "encoding", "stage frame", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrStaging) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encoding", "stage frame", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrEncodeInvocation) {
		t.Fatalf("expected default marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "encoding", "validate", "empty", nil), services.KindValidation},
		{"runtime init", services.Wrap(services.ErrRuntimeInit, "runtime", "load", "missing", errors.New("x")), services.KindRuntimeInit},
		{"unsupported codec", services.Wrap(services.ErrUnsupportedCodec, "command", "build", "av2", nil), services.KindUnsupportedCodec},
		{"staging", services.Wrap(services.ErrStaging, "encoding", "stage", "disk", nil), services.KindStaging},
		{"encode", services.Wrap(services.ErrEncodeInvocation, "encoding", "run", "crash", nil), services.KindEncodeInvocation},
		{"output missing", services.Wrap(services.ErrOutputMissing, "encoding", "extract", "absent", nil), services.KindOutputMissing},
		{"artifact rejected", services.Wrap(services.ErrArtifactRejected, "encoding", "policy", "no alpha", nil), services.KindArtifactRejected},
		{"configuration", services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), services.KindConfiguration},
		{"canceled", context.Canceled, services.KindCanceled},
		{"other", errors.New("mystery"), services.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Kind(tt.err); got != tt.want {
				t.Fatalf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if services.Retryable(services.Wrap(services.ErrValidation, "", "", "bad", nil)) {
		t.Fatal("validation errors must not be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrUnsupportedCodec, "", "", "bad", nil)) {
		t.Fatal("unsupported codec errors must not be retryable")
	}
	if !services.Retryable(services.Wrap(services.ErrRuntimeInit, "", "", "load", nil)) {
		t.Fatal("runtime init errors should be retryable")
	}
}
