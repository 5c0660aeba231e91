// Package anomaly implements the robust online net-volume anomaly detector.
//
// The detector keeps a bounded rolling window of the most recent samples and
// scores each new sample against the window's median and a one-sided median
// absolute deviation. Median + one-sided MAD tolerates the skewed, fat-tailed
// shape of volume spikes: a run of large buy-side spikes does not raise the
// detection threshold for sell-side spikes, and the cost stays O(window) per
// sample with no distributional assumption.
package anomaly

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

const (
	// WindowSize is the rolling sample window length, counted in ticks
	// rather than wall-clock time.
	WindowSize = 60

	// Threshold is the z-score above which a sample is flagged.
	Threshold = 3.0

	// Retention is how long a flagged anomaly stays in the active list.
	Retention = 10 * time.Minute

	// MaxRecords caps the active anomaly list; oldest detections go first.
	MaxRecords = 10

	// HistorySize bounds the retained tick history used to resolve an
	// anomaly back to a display index.
	HistorySize = 100

	// madScale makes the MAD a consistent estimator of the standard
	// deviation under normality.
	madScale = 1.4826
)

// Clock supplies wall-clock time. Tests inject a simulated clock to drive
// retention deterministically.
type Clock func() time.Time

type tickPoint struct {
	ts    time.Time
	value float64
}

// Detector is the stateful per-symbol detection engine. It is not safe for
// concurrent use; the tick-processing goroutine is its only caller.
type Detector struct {
	symbol    string
	clock     Clock
	window    []float64
	history   []tickPoint
	anomalies []domain.AnomalyRecord
}

// NewDetector creates a Detector for symbol. A nil clock defaults to
// time.Now.
func NewDetector(symbol string, clock Clock) *Detector {
	if clock == nil {
		clock = time.Now
	}
	return &Detector{
		symbol:  symbol,
		clock:   clock,
		window:  make([]float64, 0, WindowSize),
		history: make([]tickPoint, 0, HistorySize),
	}
}

// Observe pushes one net-volume sample into the rolling window, scores it,
// and returns the new AnomalyRecord if it crossed the threshold, or nil.
// Every call also ages out expired anomalies, so the active list shrinks over
// time even when nothing new is flagged. Well-formed numeric input never
// fails: a flat window has mad == 0 and therefore zScore == 0.
func (d *Detector) Observe(sample float64, tickTime time.Time) *domain.AnomalyRecord {
	d.push(sample, tickTime)

	median, posMAD, negMAD := stats(d.window)

	deviation := sample - median
	mad := posMAD
	if deviation < 0 {
		mad = negMAD
	}
	zScore := 0.0
	if mad != 0 {
		zScore = deviation / mad
		if zScore < 0 {
			zScore = -zScore
		}
	}

	var rec *domain.AnomalyRecord
	if zScore > Threshold {
		direction := domain.AnomalyAbove
		if deviation < 0 {
			direction = domain.AnomalyBelow
		}
		r := domain.AnomalyRecord{
			ID:         uuid.New().String(),
			Symbol:     d.symbol,
			DetectedAt: d.clock(),
			SourceTick: tickTime,
			Value:      sample,
			ZScore:     zScore,
			Direction:  direction,
		}
		d.anomalies = append(d.anomalies, r)
		rec = &r
	}

	d.evict()
	return rec
}

// push appends the sample to the rolling window and tick history, evicting
// the oldest entries once the caps are exceeded.
func (d *Detector) push(sample float64, tickTime time.Time) {
	d.window = append(d.window, sample)
	if len(d.window) > WindowSize {
		d.window = d.window[1:]
	}
	d.history = append(d.history, tickPoint{ts: tickTime, value: sample})
	if len(d.history) > HistorySize {
		d.history = d.history[1:]
	}
}

// evict drops anomalies older than Retention and caps the list at MaxRecords,
// keeping the most recently detected.
func (d *Detector) evict() {
	cutoff := d.clock().Add(-Retention)
	kept := d.anomalies[:0]
	for _, a := range d.anomalies {
		if a.DetectedAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	if len(kept) > MaxRecords {
		kept = kept[len(kept)-MaxRecords:]
	}
	d.anomalies = kept
}

// Active returns the current anomaly list, newest detection first. The slice
// is a copy and safe to hand across the publish boundary.
func (d *Detector) Active() []domain.AnomalyRecord {
	d.evict()
	out := make([]domain.AnomalyRecord, len(d.anomalies))
	for i, a := range d.anomalies {
		out[len(out)-1-i] = a
	}
	return out
}

// Indices resolves the active anomalies to positions in the retained tick
// history (by source tick timestamp). Anomalies whose tick has been evicted
// from the history are omitted.
func (d *Detector) Indices() []int {
	var out []int
	for _, a := range d.Active() {
		for i, p := range d.history {
			if p.ts.Equal(a.SourceTick) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// Baseline returns the trailing moving average of the retained history: for
// each index i the mean of the window ending at i, of length min(i+1,
// WindowSize). Display-only; it plays no part in detection.
func (d *Detector) Baseline() []float64 {
	out := make([]float64, len(d.history))
	for i := range d.history {
		start := i - WindowSize + 1
		if start < 0 {
			start = 0
		}
		var sum float64
		for _, p := range d.history[start : i+1] {
			sum += p.value
		}
		out[i] = sum / float64(i+1-start)
	}
	return out
}

// stats computes the window median and the one-sided MADs. Ties on even
// window lengths resolve to the element at index len/2 of the sorted window;
// this exact tie-break is load-bearing for reproducibility and must not be
// "corrected".
func stats(window []float64) (median, posMAD, negMAD float64) {
	if len(window) == 0 {
		return 0, 0, 0
	}

	sorted := make([]float64, len(window))
	copy(sorted, window)
	sort.Float64s(sorted)
	median = sorted[len(sorted)/2]

	var posDev, negDev []float64
	for _, v := range window {
		d := v - median
		if d >= 0 {
			posDev = append(posDev, d)
		} else {
			negDev = append(negDev, -d)
		}
	}

	posMAD = oneSidedMAD(posDev)
	negMAD = oneSidedMAD(negDev)
	return median, posMAD, negMAD
}

// oneSidedMAD returns the scaled median of absolute deviations for one side
// of the window, or 0 when the side is empty.
func oneSidedMAD(devs []float64) float64 {
	if len(devs) == 0 {
		return 0
	}
	sort.Float64s(devs)
	return devs[len(devs)/2] * madScale
}
