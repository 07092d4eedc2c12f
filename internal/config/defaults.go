package config

const (
	defaultConfigPath            = "~/.config/alphareel/config.toml"
	defaultScratchDir            = "~/.cache/alphareel/scratch"
	defaultLogDir                = "~/.local/share/alphareel/logs"
	defaultHistoryDB             = "~/.local/share/alphareel/history.db"
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultHistoryRetentionDays  = 90
	defaultStaleWorkspaceMinutes = 360

	// MaxFrameCountCeiling bounds limits.max_frame_count so staged names fit
	// the five-digit sequence pattern.
	MaxFrameCountCeiling = 99999
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			LogDir:     defaultLogDir,
			HistoryDB:  defaultHistoryDB,
		},
		FFmpeg: FFmpeg{
			Binary:        defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled:       true,
			RetentionDays: defaultHistoryRetentionDays,
		},
		Cleanup: Cleanup{
			StaleWorkspaceMinutes: defaultStaleWorkspaceMinutes,
		},
	}
}
