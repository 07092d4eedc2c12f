package capability

import (
	"fmt"
	"strings"
)

// Tier names a device capability class.
type Tier string

const (
	TierConstrained  Tier = "constrained"
	TierIntermediate Tier = "intermediate"
	TierFull         Tier = "full"
)

const (
	mib = int64(1024 * 1024)
	gib = 1024 * mib

	narrowScreenWidth = 768
	mediumScreenWidth = 1280
	lowCPUCount       = 4
	lowMemoryBytes    = 2 * gib
	mediumMemoryBytes = 8 * gib
)

// Environment is a snapshot of the signals used for classification. Zero
// values mean unknown.
type Environment struct {
	ScreenWidth    int
	ScreenHeight   int
	UserAgent      string
	MaxTouchPoints int
	CPUCount       int
	MemoryBytes    int64
}

// Limits holds the ceilings and defaults for one tier.
type Limits struct {
	Tier              Tier
	MaxFrameCount     int
	MaxTotalSizeBytes int64
	DefaultFrameRate  int
	DefaultQuality    string
	DefaultCodec      string
}

var tiers = map[Tier]Limits{
	TierConstrained: {
		Tier:              TierConstrained,
		MaxFrameCount:     150,
		MaxTotalSizeBytes: 100 * mib,
		DefaultFrameRate:  15,
		DefaultQuality:    "realtime",
		DefaultCodec:      "vp8",
	},
	TierIntermediate: {
		Tier:              TierIntermediate,
		MaxFrameCount:     500,
		MaxTotalSizeBytes: 250 * mib,
		DefaultFrameRate:  24,
		DefaultQuality:    "good",
		DefaultCodec:      "vp9",
	},
	TierFull: {
		Tier:              TierFull,
		MaxFrameCount:     1000,
		MaxTotalSizeBytes: 500 * mib,
		DefaultFrameRate:  24,
		DefaultQuality:    "good",
		DefaultCodec:      "vp9",
	},
}

// Tiers returns the limits of every tier, most constrained first.
func Tiers() []Limits {
	return []Limits{tiers[TierConstrained], tiers[TierIntermediate], tiers[TierFull]}
}

// Profile classifies env and returns the matching tier limits.
func Profile(env Environment) Limits {
	return tiers[Classify(env)]
}

// Classify returns the tier for env.
func Classify(env Environment) Tier {
	ua := strings.ToLower(env.UserAgent)
	touch := env.MaxTouchPoints > 0
	width := env.ScreenWidth

	switch {
	case isMobileAgent(ua),
		touch && width > 0 && width < narrowScreenWidth,
		env.MemoryBytes > 0 && env.MemoryBytes < lowMemoryBytes:
		return TierConstrained
	case isTabletAgent(ua),
		touch && width > 0 && width < mediumScreenWidth,
		env.CPUCount > 0 && env.CPUCount <= lowCPUCount,
		env.MemoryBytes > 0 && env.MemoryBytes < mediumMemoryBytes:
		return TierIntermediate
	default:
		return TierFull
	}
}

func isMobileAgent(ua string) bool {
	if ua == "" || isTabletAgent(ua) {
		return false
	}
	for _, marker := range []string{"mobi", "iphone", "ipod", "windows phone", "blackberry", "opera mini"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}

func isTabletAgent(ua string) bool {
	if ua == "" {
		return false
	}
	for _, marker := range []string{"ipad", "tablet", "kindle", "silk/", "playbook"} {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	// Android tablets omit the "Mobile" token.
	return strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")
}

// ForceTier returns the limits of the named tier.
func ForceTier(name string) (Limits, error) {
	limits, ok := tiers[Tier(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Limits{}, fmt.Errorf("unknown capability tier %q (want constrained, intermediate, or full)", name)
	}
	return limits, nil
}

// Cap lowers the ceilings to maxFrames and maxBytes. Non-positive caps are
// ignored and a cap never raises a ceiling.
func (l Limits) Cap(maxFrames int, maxBytes int64) Limits {
	if maxFrames > 0 && maxFrames < l.MaxFrameCount {
		l.MaxFrameCount = maxFrames
	}
	if maxBytes > 0 && maxBytes < l.MaxTotalSizeBytes {
		l.MaxTotalSizeBytes = maxBytes
	}
	return l
}
