package ffprobe

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"alphareel/internal/command"
	"alphareel/internal/encoding"
	"alphareel/internal/logging"
	"alphareel/internal/services"
)

// AlphaPolicy returns an artifact policy that writes the artifact to a
// temporary file under scratchDir, probes it with binary, and rejects
// output of an alpha-capable codec whose video stream lost its alpha
// channel. GIF transparency is palette based and is not probed.
func AlphaPolicy(binary, scratchDir string, logger *slog.Logger) encoding.ArtifactPolicy {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "verify")

	return func(ctx context.Context, artifact *encoding.Artifact) error {
		info, err := command.Info(artifact.Codec)
		if err != nil {
			return err
		}
		if !info.Alpha || artifact.Codec == command.CodecGIF {
			logger.Debug("alpha verification skipped",
				logging.Args(logging.DecisionAttrs("alpha_verification", "skipped", "codec has no probeable alpha channel")...)...)
			return nil
		}

		tmp, err := os.CreateTemp(scratchDir, "verify-*"+artifact.Extension())
		if err != nil {
			return services.Wrap(services.ErrArtifactRejected, "verify", "stage artifact", "could not write artifact for probing", err)
		}
		path := tmp.Name()
		defer os.Remove(path)
		if _, err := tmp.Write(artifact.Data); err != nil {
			_ = tmp.Close()
			return services.Wrap(services.ErrArtifactRejected, "verify", "stage artifact", "could not write artifact for probing", err)
		}
		if err := tmp.Close(); err != nil {
			return services.Wrap(services.ErrArtifactRejected, "verify", "stage artifact", "could not write artifact for probing", err)
		}

		result, err := Inspect(ctx, binary, path)
		if err != nil {
			return services.Wrap(services.ErrArtifactRejected, "verify", "probe artifact", "ffprobe could not read the encoded output", err)
		}
		stream, ok := result.PrimaryVideo()
		if !ok {
			return services.Wrap(services.ErrArtifactRejected, "verify", "probe artifact", "encoded output has no video stream", nil)
		}
		if !stream.HasAlpha() {
			return services.Wrap(services.ErrArtifactRejected, "verify", "alpha channel",
				fmt.Sprintf("%s output decoded as %s without alpha", artifact.Codec, stream.PixFmt), nil)
		}

		logger.Info("alpha channel verified",
			logging.String("pix_fmt", stream.PixFmt),
			logging.Int("width", stream.Width),
			logging.Int("height", stream.Height),
			logging.String(logging.FieldEventType, "alpha_verified"),
		)
		return nil
	}
}
