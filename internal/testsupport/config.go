package testsupport

import (
	"path/filepath"
	"testing"

	"alphareel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ScratchDir = filepath.Join(base, "scratch")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.HistoryDB = filepath.Join(base, "state", "history.db")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEncoding sets the default codec, quality, and frame rate.
func WithEncoding(codec, quality string, frameRate int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.Codec = codec
		b.cfg.Encoding.Quality = quality
		b.cfg.Encoding.FrameRate = frameRate
	}
}

// WithLimits caps the device tier ceilings.
func WithLimits(maxFrames, maxSizeMB int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Limits.MaxFrameCount = maxFrames
		b.cfg.Limits.MaxTotalSizeMB = maxSizeMB
	}
}

// WithMetricsTextfile enables metrics export into the test directory.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.TextfilePath = filepath.Join(b.baseDir, "metrics", "alphareel.prom")
	}
}

// WithoutHistory disables the job history ledger.
func WithoutHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = false
	}
}

// BaseDir returns the temp directory backing cfg's paths.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ScratchDir)
}
