package ffmpeg

import (
	"os"
	"regexp"
	"strconv"
	"strings"
)

// parseProgressLine converts one -progress key=value line into a ratio.
// frame=N is divided by total; progress=end reports completion.
func parseProgressLine(line string, total int) (float64, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch strings.TrimSpace(key) {
	case "frame":
		if total <= 0 {
			return 0, false
		}
		frame, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || frame < 0 {
			return 0, false
		}
		return float64(frame) / float64(total), true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return 1, true
		}
	}
	return 0, false
}

var sequenceDirective = regexp.MustCompile(`%0?(\d*)d`)

// inputPattern returns the first -i argument that names an image sequence.
func inputPattern(args []string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" && sequenceDirective.MatchString(args[i+1]) {
			return args[i+1]
		}
	}
	return ""
}

// sequenceMatcher turns a printf-style sequence pattern such as
// frame_%05d.png into an anchored regular expression.
func sequenceMatcher(pattern string) *regexp.Regexp {
	loc := sequenceDirective.FindStringSubmatchIndex(pattern)
	if loc == nil {
		return nil
	}
	digits := `\d+`
	if width := pattern[loc[2]:loc[3]]; width != "" {
		digits = `\d{` + width + `,}`
	}
	expr := "^" + regexp.QuoteMeta(pattern[:loc[0]]) + digits + regexp.QuoteMeta(pattern[loc[1]:]) + "$"
	return regexp.MustCompile(expr)
}

// countInputFrames counts workspace files that match the sequence input of
// args. It returns 0 when args have no sequence input.
func countInputFrames(workspace string, args []string) int {
	matcher := sequenceMatcher(inputPattern(args))
	if matcher == nil {
		return 0
	}
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() && matcher.MatchString(entry.Name()) {
			count++
		}
	}
	return count
}
