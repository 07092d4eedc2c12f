package encoding

import (
	"mime"
	"net/http"
	"strings"

	"alphareel/internal/command"
)

// PNGMIMEType is the only accepted frame type.
const PNGMIMEType = "image/png"

// Frame is one named PNG image. The pipeline never mutates Data.
type Frame struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Size returns the byte length of the frame.
func (f Frame) Size() int64 {
	return int64(len(f.Data))
}

// DetectedMIMEType returns the declared MIME type without parameters, or the
// sniffed type when none was declared.
func (f Frame) DetectedMIMEType() string {
	declared := strings.TrimSpace(f.MIMEType)
	if declared == "" {
		declared = http.DetectContentType(f.Data)
	}
	if mediaType, _, err := mime.ParseMediaType(declared); err == nil {
		return mediaType
	}
	return strings.ToLower(declared)
}

// Options selects the output of one job. Zero values take the device tier
// defaults.
type Options struct {
	FrameRate int
	Codec     string
	Quality   string
	Scale     *command.Scale
}

// ProgressFunc receives integer percentages in [0,100].
type ProgressFunc func(percent int)

// Artifact is the encoded output of one job.
type Artifact struct {
	JobID     string
	Data      []byte
	MIMEType  string
	Container command.Container
	Codec     command.Codec
	Frames    int
}

// Extension returns the file extension for the artifact's container.
func (a *Artifact) Extension() string {
	return "." + string(a.Container)
}
