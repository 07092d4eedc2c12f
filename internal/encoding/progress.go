package encoding

import (
	"math"
	"sync"

	"alphareel/internal/engine"
)

// Bridge converts an engine ratio callback into a percentage callback. The
// ratio is scaled to 0-100, rounded, and clamped. A nil fn yields a no-op.
func Bridge(fn ProgressFunc) engine.RatioFunc {
	if fn == nil {
		return func(float64) {}
	}
	return func(ratio float64) {
		if math.IsNaN(ratio) {
			return
		}
		fn(clampPercent(int(math.Round(ratio * 100))))
	}
}

func clampPercent(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// progressTracker is the single progress subscriber of one job. It drops
// regressions and repeats, spreads stages evenly over 0-99, and ignores
// updates once detached. Only finish reports 100.
type progressTracker struct {
	mu       sync.Mutex
	fn       ProgressFunc
	last     int
	detached bool
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, last: -1}
}

func (t *progressTracker) report(percent int) {
	percent = clampPercent(percent)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.detached || t.fn == nil || percent <= t.last {
		return
	}
	t.last = percent
	t.fn(percent)
}

// stage returns the sink for stage index of count stages.
func (t *progressTracker) stage(index, count int) ProgressFunc {
	count = max(count, 1)
	return func(percent int) {
		t.report(min((index*100+clampPercent(percent))/count, 99))
	}
}

// finish reports 100 if it has not been reported yet.
func (t *progressTracker) finish() {
	t.report(100)
}

func (t *progressTracker) lastReported() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *progressTracker) detach() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detached = true
	t.fn = nil
}
