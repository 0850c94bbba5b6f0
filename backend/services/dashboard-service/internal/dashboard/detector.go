package dashboard

import "math"

// Basis names the statistic a prediction request was keyed on.
type Basis string

const (
	BasisLast    Basis = "last"
	BasisAverage Basis = "avg"
)

// Trigger is a decision to request a prediction for Value.
type Trigger struct {
	Basis Basis
	Value float64
	Last  float64
	Avg   float64
}

// ChangeDetector decides, poll by poll, whether the recent readings moved enough
// to justify a new prediction request.
//
// The latest reading is checked first. The average of the window is only consulted
// when the latest reading is unchanged, so slow drifts still surface. Each baseline
// is only updated when it fires.
type ChangeDetector struct {
	tolerance float64
	window    int

	prevLast float64
	hasLast  bool
	prevAvg  float64
	hasAvg   bool
}

// NewChangeDetector returns a detector; window < 1 means 3.
func NewChangeDetector(tolerance float64, window int) *ChangeDetector {
	if window < 1 {
		window = 3
	}
	return &ChangeDetector{tolerance: tolerance, window: window}
}

// Evaluate inspects the usage sequence and reports whether a prediction is due.
func (d *ChangeDetector) Evaluate(usage []float64) (Trigger, bool) {
	last, avg, ok := RecentStats(usage, d.window)
	if !ok {
		return Trigger{}, false
	}

	if !d.hasLast || math.Abs(last-d.prevLast) > d.tolerance {
		d.prevLast, d.hasLast = last, true
		return Trigger{Basis: BasisLast, Value: last, Last: last, Avg: avg}, true
	}

	if !d.hasAvg || math.Abs(avg-d.prevAvg) > d.tolerance {
		d.prevAvg, d.hasAvg = avg, true
		return Trigger{Basis: BasisAverage, Value: avg, Last: last, Avg: avg}, true
	}

	return Trigger{Basis: BasisLast, Value: last, Last: last, Avg: avg}, false
}

// RecentStats returns the most recent reading and the mean of the last window readings.
func RecentStats(usage []float64, window int) (last, avg float64, ok bool) {
	if len(usage) == 0 {
		return 0, 0, false
	}
	if window < 1 {
		window = 1
	}
	recent := usage
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return recent[len(recent)-1], sum / float64(len(recent)), true
}
