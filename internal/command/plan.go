package command

import (
	"fmt"
	"strconv"
	"strings"

	"alphareel/internal/services"
)

const (
	// InputPattern names staged frames; indexes start at 0.
	InputPattern = "frame_%05d.png"
	// PaletteName is the intermediate written by the first GIF stage.
	PaletteName = "palette.png"

	transparencyKey = "ffffff"
	evenDimensions  = "scale=trunc(iw/2)*2:trunc(ih/2)*2"
)

// FrameName returns the staged name of the frame at index.
func FrameName(index int) string {
	return fmt.Sprintf(InputPattern, index)
}

// Scale requests a target size. A zero side is derived from the other.
type Scale struct {
	Width          int
	Height         int
	PreserveAspect bool
}

// Options selects the output of one job.
type Options struct {
	FrameRate int
	Codec     Codec
	Quality   Quality
	Scale     *Scale
}

// Stage is one encoder invocation.
type Stage struct {
	Name   string
	Args   []string
	Output string
}

// Plan is the ordered list of invocations for one job.
type Plan struct {
	Stages        []Stage
	Output        string
	Intermediates []string
	Container     Container
	MIMEType      string
}

// Build returns the invocation plan for frameCount staged frames. The count is
// implied by the staged files and never appears in the arguments.
func Build(frameCount int, opts Options) (Plan, error) {
	info, err := Info(opts.Codec)
	if err != nil {
		return Plan{}, err
	}
	if err := validateOptions(frameCount, opts); err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Output:    OutputName(info.Container),
		Container: info.Container,
		MIMEType:  info.MIMEType,
	}
	if info.Codec == CodecGIF {
		plan.Stages = gifStages(opts, plan.Output)
		plan.Intermediates = []string{PaletteName}
		return plan, nil
	}
	plan.Stages = []Stage{singlePassStage(info, opts, plan.Output)}
	return plan, nil
}

func validateOptions(frameCount int, opts Options) error {
	if frameCount <= 0 {
		return services.Wrap(services.ErrValidation, "command", "build plan", "frame count must be positive", nil)
	}
	if opts.FrameRate <= 0 {
		return services.Wrap(services.ErrValidation, "command", "build plan",
			fmt.Sprintf("frame rate must be a positive integer, got %d", opts.FrameRate), nil)
	}
	if _, err := ParseQuality(string(opts.Quality)); err != nil {
		return err
	}
	if s := opts.Scale; s != nil && (s.Width < 0 || s.Height < 0) {
		return services.Wrap(services.ErrValidation, "command", "build plan",
			fmt.Sprintf("scale %dx%d must not be negative", s.Width, s.Height), nil)
	}
	return nil
}

func inputArgs(frameRate int) []string {
	return []string{"-framerate", strconv.Itoa(frameRate), "-i", InputPattern}
}

func singlePassStage(info CodecInfo, opts Options, output string) Stage {
	args := inputArgs(opts.FrameRate)

	var filters []string
	if scale := scaleFilter(opts.Scale, info.Codec == CodecH264); scale != "" {
		filters = append(filters, scale)
	}
	if info.Codec == CodecH264 {
		filters = append(filters, evenDimensions)
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}

	args = append(args, "-c:v", info.Encoder)
	if info.Codec == CodecProRes {
		args = append(args, "-profile:v", "4444")
	}
	args = append(args, "-pix_fmt", info.PixelFormat)
	if info.Codec == CodecVP8 {
		// libvpx drops the alpha plane when alt-ref frames are enabled.
		args = append(args, "-auto-alt-ref", "0")
	}
	args = append(args, qualityArgs(info.Codec, opts.Quality)...)
	if info.Codec == CodecH264 {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, output)
	return Stage{Name: "encode", Args: args, Output: output}
}

func gifStages(opts Options, output string) []Stage {
	chain := "fps=" + strconv.Itoa(opts.FrameRate)
	if scale := scaleFilter(opts.Scale, false); scale != "" {
		chain += "," + scale
	}

	palette := append(inputArgs(opts.FrameRate),
		"-vf", chain+",palettegen=stats_mode=diff:transparency_color="+transparencyKey,
		PaletteName,
	)
	use := append(inputArgs(opts.FrameRate),
		"-i", PaletteName,
		"-lavfi", fmt.Sprintf("%s [x]; [x][1:v] paletteuse=dither=bayer:bayer_scale=%d:diff_mode=rectangle",
			chain, bayerScale(opts.Quality)),
		"-gifflags", "+transdiff",
		output,
	)
	return []Stage{
		{Name: "palettegen", Args: palette, Output: PaletteName},
		{Name: "paletteuse", Args: use, Output: output},
	}
}

// scaleFilter renders s as a scale filter, or "" when no scaling is asked
// for. An omitted side follows the aspect ratio; h264 needs it even.
func scaleFilter(s *Scale, evenAuto bool) string {
	if s == nil || (s.Width == 0 && s.Height == 0) {
		return ""
	}
	auto := "-1"
	if evenAuto {
		auto = "-2"
	}
	width, height := strconv.Itoa(s.Width), strconv.Itoa(s.Height)
	switch {
	case s.Width == 0:
		width = auto
	case s.Height == 0:
		height = auto
	case s.PreserveAspect:
		return fmt.Sprintf("scale=%s:%s:force_original_aspect_ratio=decrease:flags=lanczos", width, height)
	}
	return fmt.Sprintf("scale=%s:%s:flags=lanczos", width, height)
}
