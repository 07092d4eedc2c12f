package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"alphareel/internal/command"
)

var commandContext = exec.CommandContext

// EncoderStatus reports whether the FFmpeg build ships the encoder a codec needs.
type EncoderStatus struct {
	Codec     command.Codec
	Encoder   string
	Available bool
}

// CheckEncoders lists the encoders compiled into ffmpegBinary and matches
// them against every supported codec.
func CheckEncoders(ctx context.Context, ffmpegBinary string) ([]EncoderStatus, error) {
	binary := strings.TrimSpace(ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	cmd := commandContext(ctx, binary, "-hide_banner", "-encoders")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("list encoders: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("list encoders: %w", err)
	}

	available := parseEncoders(stdout.Bytes())
	codecs := command.Codecs()
	statuses := make([]EncoderStatus, 0, len(codecs))
	for _, info := range codecs {
		_, ok := available[info.Encoder]
		statuses = append(statuses, EncoderStatus{Codec: info.Codec, Encoder: info.Encoder, Available: ok})
	}
	return statuses, nil
}

// parseEncoders reads `ffmpeg -encoders` output. Rows after the "------"
// separator look like " V....D libvpx-vp9   libvpx VP9".
func parseEncoders(output []byte) map[string]struct{} {
	encoders := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	inTable := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inTable {
			inTable = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = struct{}{}
	}
	return encoders
}
