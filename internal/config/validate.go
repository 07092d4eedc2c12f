package config

import (
	"errors"
	"fmt"
	"slices"
)

// Codec and quality names accepted in [encoding]. Kept in sync with the
// command package enumeration by TestEncodingNamesMatchCommandPackage.
var (
	knownCodecs    = []string{"vp9", "vp8", "h264", "gif", "prores", "qtrle"}
	knownQualities = []string{"best", "good", "realtime"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.Codec != "" && !slices.Contains(knownCodecs, c.Encoding.Codec) {
		return fmt.Errorf("encoding.codec %q is not one of %v", c.Encoding.Codec, knownCodecs)
	}
	if c.Encoding.Quality != "" && !slices.Contains(knownQualities, c.Encoding.Quality) {
		return fmt.Errorf("encoding.quality %q is not one of %v", c.Encoding.Quality, knownQualities)
	}
	if c.Encoding.FrameRate < 0 {
		return errors.New("encoding.frame_rate must be positive when set")
	}
	if c.Encoding.FrameRate > 240 {
		return errors.New("encoding.frame_rate must be at most 240")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxFrameCount < 0 {
		return errors.New("limits.max_frame_count must be >= 0")
	}
	if c.Limits.MaxFrameCount > MaxFrameCountCeiling {
		return fmt.Errorf("limits.max_frame_count must be <= %d", MaxFrameCountCeiling)
	}
	if c.Limits.MaxTotalSizeMB < 0 {
		return errors.New("limits.max_total_size_mb must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	if c.History.RetentionDays < 0 {
		return errors.New("history.retention_days must be >= 0")
	}
	return nil
}

// KnownCodecs returns the codec names accepted by [encoding].codec.
func KnownCodecs() []string {
	return slices.Clone(knownCodecs)
}

// KnownQualities returns the quality tier names accepted by [encoding].quality.
func KnownQualities() []string {
	return slices.Clone(knownQualities)
}
