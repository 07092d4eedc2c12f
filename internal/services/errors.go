package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrRuntimeInit      = errors.New("codec runtime init error")
	ErrUnsupportedCodec = errors.New("unsupported codec")
	ErrStaging          = errors.New("staging error")
	ErrEncodeInvocation = errors.New("encode invocation error")
	ErrOutputMissing    = errors.New("output missing")
	ErrConfiguration    = errors.New("configuration error")
	ErrArtifactRejected = errors.New("artifact rejected")
)

// Kind tags reported alongside every fatal error.
const (
	KindValidation       = "validation"
	KindRuntimeInit      = "runtime_init"
	KindUnsupportedCodec = "unsupported_codec"
	KindStaging          = "staging"
	KindEncodeInvocation = "encode_invocation"
	KindOutputMissing    = "output_missing"
	KindConfiguration    = "configuration"
	KindArtifactRejected = "artifact_rejected"
	KindCanceled         = "canceled"
	KindInternal         = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrEncodeInvocation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind maps an error to its taxonomy tag. Nil errors have no kind.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrRuntimeInit):
		return KindRuntimeInit
	case errors.Is(err, ErrUnsupportedCodec):
		return KindUnsupportedCodec
	case errors.Is(err, ErrStaging):
		return KindStaging
	case errors.Is(err, ErrOutputMissing):
		return KindOutputMissing
	case errors.Is(err, ErrEncodeInvocation):
		return KindEncodeInvocation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrArtifactRejected):
		return KindArtifactRejected
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}

// Retryable reports whether a caller may reasonably retry the same request.
// Runtime init failures recover on the next attempt; validation and codec
// errors never do.
func Retryable(err error) bool {
	switch Kind(err) {
	case KindRuntimeInit, KindEncodeInvocation, KindOutputMissing, KindStaging:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
