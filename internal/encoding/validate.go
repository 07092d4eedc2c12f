package encoding

import (
	"fmt"

	"alphareel/internal/capability"
	"alphareel/internal/command"
	"alphareel/internal/services"
)

// validateFrames checks, in order, that frames is non-empty, that every frame
// is a PNG, and that the count and total size fit limits. The first violated
// constraint is reported.
func validateFrames(frames []Frame, limits capability.Limits) error {
	if len(frames) == 0 {
		return services.Wrap(services.ErrValidation, "validate", "frames", "no frames supplied", nil)
	}
	var total int64
	for _, frame := range frames {
		if mimeType := frame.DetectedMIMEType(); mimeType != PNGMIMEType {
			return services.Wrap(services.ErrValidation, "validate", "mime type",
				fmt.Sprintf("frame %q is %s; only %s frames are accepted", frame.Name, mimeType, PNGMIMEType), nil)
		}
		total += frame.Size()
	}
	if len(frames) > limits.MaxFrameCount {
		return services.Wrap(services.ErrValidation, "validate", "frame count",
			fmt.Sprintf("%d frames exceed the frame count limit of %d for the %s tier", len(frames), limits.MaxFrameCount, limits.Tier), nil)
	}
	if total > limits.MaxTotalSizeBytes {
		return services.Wrap(services.ErrValidation, "validate", "total size",
			fmt.Sprintf("%d bytes exceed the total size limit of %d bytes for the %s tier", total, limits.MaxTotalSizeBytes, limits.Tier), nil)
	}
	return nil
}

// resolveOptions fills unset options from the tier defaults and checks them.
func resolveOptions(opts Options, limits capability.Limits) (command.Options, error) {
	codecName := opts.Codec
	if codecName == "" {
		codecName = limits.DefaultCodec
	}
	codec, err := command.ParseCodec(codecName)
	if err != nil {
		return command.Options{}, err
	}
	qualityName := opts.Quality
	if qualityName == "" {
		qualityName = limits.DefaultQuality
	}
	quality, err := command.ParseQuality(qualityName)
	if err != nil {
		return command.Options{}, err
	}
	frameRate := opts.FrameRate
	if frameRate == 0 {
		frameRate = limits.DefaultFrameRate
	}
	if frameRate < 0 {
		return command.Options{}, services.Wrap(services.ErrValidation, "validate", "frame rate",
			fmt.Sprintf("frame rate must be a positive integer, got %d", frameRate), nil)
	}
	return command.Options{
		FrameRate: frameRate,
		Codec:     codec,
		Quality:   quality,
		Scale:     opts.Scale,
	}, nil
}
