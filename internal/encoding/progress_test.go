package encoding

import (
	"math"
	"slices"
	"testing"
)

func TestBridgeRoundsAndClamps(t *testing.T) {
	tests := []struct {
		ratio float64
		want  int
	}{
		{0, 0},
		{0.004, 0},
		{0.005, 1},
		{0.333, 33},
		{0.999, 100},
		{1, 100},
		{1.7, 100},
		{-0.2, 0},
	}
	for _, tt := range tests {
		var got []int
		Bridge(func(p int) { got = append(got, p) })(tt.ratio)
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("Bridge(%v) = %v, want %d", tt.ratio, got, tt.want)
		}
	}
}

func TestBridgeIgnoresNaNAndNilTarget(t *testing.T) {
	called := false
	Bridge(func(int) { called = true })(math.NaN())
	if called {
		t.Fatal("expected NaN ratio to be dropped")
	}
	Bridge(nil)(0.5)
}

func TestTrackerIsNonDecreasing(t *testing.T) {
	var got []int
	tracker := newProgressTracker(func(p int) { got = append(got, p) })
	for _, p := range []int{10, 5, 10, 40, 39, 100, 100} {
		tracker.report(p)
	}
	tracker.finish()
	if want := []int{10, 40, 100}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTrackerMapsStages(t *testing.T) {
	var got []int
	tracker := newProgressTracker(func(p int) { got = append(got, p) })
	first, second := tracker.stage(0, 2), tracker.stage(1, 2)
	first(0)
	first(50)
	first(100)
	second(0)
	second(40)
	second(100)
	tracker.finish()
	if want := []int{0, 25, 50, 70, 99, 100}; !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTrackerHoldsBackCompletion(t *testing.T) {
	var got []int
	tracker := newProgressTracker(func(p int) { got = append(got, p) })
	tracker.stage(0, 1)(100)
	if !slices.Equal(got, []int{99}) {
		t.Fatalf("expected stage progress to stop at 99, got %v", got)
	}
	tracker.finish()
	if !slices.Equal(got, []int{99, 100}) {
		t.Fatalf("expected finish to report 100, got %v", got)
	}
}

func TestTrackerDetachStopsDelivery(t *testing.T) {
	var got []int
	tracker := newProgressTracker(func(p int) { got = append(got, p) })
	tracker.report(30)
	tracker.detach()
	tracker.report(60)
	tracker.finish()
	if !slices.Equal(got, []int{30}) {
		t.Fatalf("expected no updates after detach, got %v", got)
	}
}

func TestTrackerWithoutSubscriber(t *testing.T) {
	tracker := newProgressTracker(nil)
	tracker.report(50)
	tracker.finish()
	if tracker.lastReported() != -1 {
		t.Fatalf("expected nothing recorded without a subscriber, got %d", tracker.lastReported())
	}
}
