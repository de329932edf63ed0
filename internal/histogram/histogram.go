// Package histogram accumulates scalar samples into fixed-width bins.
package histogram

import (
	"fmt"
	"math"

	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/utils"
)

// Histogram splits [min, max) into equal-width bins. Values outside the range
// go to the underflow and overflow counters; NaN counts as overflow.
//
// Mean and variance come from a running shifted sum and sum of squares of the
// in-range values, not from bin centers. The shift is the first in-range value.
//
// A Histogram is not safe for concurrent use; parallel runs fill one
// histogram per worker and Merge them afterwards.
type Histogram struct {
	bins      []int64
	min, max  float64
	width     float64
	underflow int64
	overflow  int64
	fills     int64

	inRange  int64
	shift    float64
	sum      float64 // sum of (x - shift)
	sumSq    float64 // sum of (x - shift)^2
	hasShift bool
}

func New(bins int, min, max float64) (*Histogram, error) {
	if bins < 1 {
		return nil, errs.Config("bins", "need at least one bin, got %d", bins)
	}
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return nil, errs.Config("range", "edges must be finite, got [%v, %v)", min, max)
	}
	if min >= max {
		return nil, errs.Config("range", "range_min %v must be below range_max %v", min, max)
	}
	return &Histogram{
		bins:  make([]int64, bins),
		min:   min,
		max:   max,
		width: (max - min) / float64(bins),
	}, nil
}

func (h *Histogram) Fill(v float64) {
	h.fills++
	switch {
	case math.IsNaN(v) || v >= h.max:
		h.overflow++
		return
	case v < h.min:
		h.underflow++
		return
	}
	idx := int((v - h.min) / h.width)
	if idx >= len(h.bins) { // v just below max rounding up
		idx = len(h.bins) - 1
	}
	h.bins[idx]++

	if !h.hasShift {
		h.shift = v
		h.hasShift = true
	}
	d := v - h.shift
	h.inRange++
	h.sum += d
	h.sumSq += d * d
}

func (h *Histogram) Len() int { return len(h.bins) }

func (h *Histogram) Range() (float64, float64) { return h.min, h.max }

func (h *Histogram) Width() float64 { return h.width }

// Entries is the number of Fill calls, in range or not.
func (h *Histogram) Entries() int64 { return h.fills }

func (h *Histogram) Underflow() int64 { return h.underflow }

func (h *Histogram) Overflow() int64 { return h.overflow }

// Count returns the content of bin i.
func (h *Histogram) Count(i int) int64 { return h.bins[i] }

// Mean of the in-range values, NaN when there are none.
func (h *Histogram) Mean() float64 {
	if h.inRange == 0 {
		return math.NaN()
	}
	return h.shift + h.sum/float64(h.inRange)
}

// Variance is the unbiased sample variance of the in-range values, 0 for
// fewer than two of them.
func (h *Histogram) Variance() float64 {
	if h.inRange < 2 {
		return 0
	}
	n := float64(h.inRange)
	v := (h.sumSq - h.sum*h.sum/n) / (n - 1)
	return math.Max(v, 0)
}

func (h *Histogram) StdDev() float64 { return math.Sqrt(h.Variance()) }

func (h *Histogram) binLow(i int) float64 {
	return h.min + float64(i)*h.width
}

func (h *Histogram) binHigh(i int) float64 {
	if i == len(h.bins)-1 {
		return h.max
	}
	return h.min + float64(i+1)*h.width
}

// Integral counts the entries of the bins whose centers lie in [lo, hi).
func (h *Histogram) Integral(lo, hi float64) int64 {
	var total int64
	for i := range h.bins {
		c := 0.5 * (h.binLow(i) + h.binHigh(i))
		if lo <= c && c < hi {
			total += h.bins[i]
		}
	}
	return total
}

// SameGeometry reports whether both histograms have identical bin edges.
func (h *Histogram) SameGeometry(o *Histogram) bool {
	return len(h.bins) == len(o.bins) && h.min == o.min && h.max == o.max
}

// Merge adds the contents of o bin by bin. Counts are commutative and
// associative under Merge; the running sums are re-based onto h's shift.
func (h *Histogram) Merge(o *Histogram) error {
	if !h.SameGeometry(o) {
		return fmt.Errorf("merge: geometry mismatch: %d bins [%v, %v) vs %d bins [%v, %v)",
			len(h.bins), h.min, h.max, len(o.bins), o.min, o.max)
	}
	for i := range h.bins {
		h.bins[i] += o.bins[i]
	}
	h.underflow += o.underflow
	h.overflow += o.overflow
	h.fills += o.fills

	if o.inRange == 0 {
		return nil
	}
	if !h.hasShift {
		h.shift = o.shift
		h.hasShift = true
	}
	delta := o.shift - h.shift
	n := float64(o.inRange)
	h.sumSq += o.sumSq + 2.*delta*o.sum + n*delta*delta
	h.sum += o.sum + n*delta
	h.inRange += o.inRange
	return nil
}

// Reset clears every counter but keeps the geometry.
func (h *Histogram) Reset() {
	clear(h.bins)
	*h = Histogram{bins: h.bins, min: h.min, max: h.max, width: h.width}
}

// Snapshot copies the current state.
func (h *Histogram) Snapshot() Snapshot {
	s := Snapshot{
		Bins:      make([]Bin, len(h.bins)),
		Min:       h.min,
		Max:       h.max,
		Width:     h.width,
		Entries:   h.fills,
		Underflow: h.underflow,
		Overflow:  h.overflow,
		Mean:      h.Mean(),
		Variance:  h.Variance(),
		StdDev:    h.StdDev(),
	}
	for i := range h.bins {
		low, high := h.binLow(i), h.binHigh(i)
		s.Bins[i] = Bin{Low: low, High: high, Center: 0.5 * (low + high), Count: h.bins[i]}
	}
	s.InRange = utils.SumSlice(h.bins)
	return s
}
