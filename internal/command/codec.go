package command

import (
	"fmt"
	"strings"

	"alphareel/internal/services"
)

// Codec names an output codec.
type Codec string

const (
	CodecVP9    Codec = "vp9"
	CodecVP8    Codec = "vp8"
	CodecH264   Codec = "h264"
	CodecGIF    Codec = "gif"
	CodecProRes Codec = "prores"
	CodecQTRLE  Codec = "qtrle"
)

// Quality names an abstract speed/quality tier.
type Quality string

const (
	QualityBest     Quality = "best"
	QualityGood     Quality = "good"
	QualityRealtime Quality = "realtime"
)

// Container names an output container format.
type Container string

const (
	ContainerWebM Container = "webm"
	ContainerMP4  Container = "mp4"
	ContainerGIF  Container = "gif"
	ContainerMOV  Container = "mov"
)

// CodecInfo describes the fixed properties of one codec.
type CodecInfo struct {
	Codec       Codec
	Encoder     string
	Container   Container
	MIMEType    string
	PixelFormat string
	Alpha       bool
}

var codecTable = []CodecInfo{
	{CodecVP9, "libvpx-vp9", ContainerWebM, "video/webm", "yuva420p", true},
	{CodecVP8, "libvpx", ContainerWebM, "video/webm", "yuva420p", true},
	{CodecH264, "libx264", ContainerMP4, "video/mp4", "yuv420p", false},
	{CodecGIF, "gif", ContainerGIF, "image/gif", "pal8", true},
	{CodecProRes, "prores_ks", ContainerMOV, "video/quicktime", "yuva444p10le", true},
	{CodecQTRLE, "qtrle", ContainerMOV, "video/quicktime", "argb", true},
}

var qualities = []Quality{QualityBest, QualityGood, QualityRealtime}

// Codecs returns the supported codecs in presentation order.
func Codecs() []CodecInfo {
	return append([]CodecInfo(nil), codecTable...)
}

// Qualities returns the supported quality tiers, slowest first.
func Qualities() []Quality {
	return append([]Quality(nil), qualities...)
}

// ParseCodec normalizes name and reports an unsupported-codec error for names
// outside the enumeration.
func ParseCodec(name string) (Codec, error) {
	codec := Codec(strings.ToLower(strings.TrimSpace(name)))
	if _, err := Info(codec); err != nil {
		return "", err
	}
	return codec, nil
}

// ParseQuality normalizes name and reports a validation error for unknown tiers.
func ParseQuality(name string) (Quality, error) {
	quality := Quality(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range qualities {
		if quality == known {
			return quality, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, "command", "parse quality",
		fmt.Sprintf("quality tier %q is not one of best, good, realtime", name), nil)
}

// Info returns the fixed properties of codec.
func Info(codec Codec) (CodecInfo, error) {
	for _, info := range codecTable {
		if info.Codec == codec {
			return info, nil
		}
	}
	return CodecInfo{}, services.Wrap(services.ErrUnsupportedCodec, "command", "resolve codec",
		fmt.Sprintf("codec %q is not supported", string(codec)), nil)
}

// OutputName returns the workspace file name of the encoded output.
func OutputName(container Container) string {
	return "output." + string(container)
}
