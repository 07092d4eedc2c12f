package command

import "strconv"

// qualityArgs maps a tier to the encoder's native speed/quality knob. Where
// three tiers do not line up with the encoder's scale, the faster preset wins.
func qualityArgs(codec Codec, quality Quality) []string {
	switch codec {
	case CodecVP9:
		return libvpxDeadline(quality, 0, 1, 5)
	case CodecVP8:
		return libvpxDeadline(quality, 0, 2, 8)
	case CodecH264:
		preset := map[Quality]string{
			QualityBest:     "slow",
			QualityGood:     "fast",
			QualityRealtime: "ultrafast",
		}[quality]
		return []string{"-preset", preset}
	case CodecProRes:
		qscale := map[Quality]int{
			QualityBest:     2,
			QualityGood:     6,
			QualityRealtime: 12,
		}[quality]
		return []string{"-qscale:v", strconv.Itoa(qscale)}
	default:
		// qtrle is lossless and has no knob; GIF quality lives in paletteuse.
		return nil
	}
}

func libvpxDeadline(quality Quality, best, good, realtime int) []string {
	switch quality {
	case QualityBest:
		return []string{"-deadline", "best", "-cpu-used", strconv.Itoa(best)}
	case QualityRealtime:
		return []string{"-deadline", "realtime", "-cpu-used", strconv.Itoa(realtime)}
	default:
		return []string{"-deadline", "good", "-cpu-used", strconv.Itoa(good)}
	}
}

// bayerScale maps a tier to paletteuse's bayer_scale.
func bayerScale(quality Quality) int {
	switch quality {
	case QualityBest:
		return 3
	case QualityRealtime:
		return 5
	default:
		return 4
	}
}
