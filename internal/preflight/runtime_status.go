package preflight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"alphareel/internal/config"
	"alphareel/internal/deps"
)

// CheckEncoders reports which codecs the configured FFmpeg build can encode.
// The check passes when at least one alpha-capable encoder is present.
func CheckEncoders(ctx context.Context, cfg *config.Config) (Result, []deps.EncoderStatus) {
	const name = "Encoders"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}, nil
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	statuses, err := deps.CheckEncoders(checkCtx, cfg.FFmpeg.Binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("encoder listing failed (%v)", err)}, nil
	}

	var available, missing []string
	for _, status := range statuses {
		if status.Available {
			available = append(available, string(status.Codec))
		} else {
			missing = append(missing, string(status.Codec))
		}
	}
	if len(available) == 0 {
		return Result{Name: name, Detail: "no supported encoders found"}, statuses
	}
	detail := "available: " + strings.Join(available, ", ")
	if len(missing) > 0 {
		detail += "; missing: " + strings.Join(missing, ", ")
	}
	return Result{Name: name, Passed: true, Detail: detail}, statuses
}
