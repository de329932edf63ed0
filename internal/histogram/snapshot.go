package histogram

import "github.com/wildstyl3r/mcfit/internal/utils"

type Bin struct {
	Low, High float64
	Center    float64
	Count     int64
}

func (b Bin) Width() float64 { return b.High - b.Low }

// Snapshot is an immutable copy of a histogram. Treat Bins as read-only;
// Counts and Centers return fresh slices.
type Snapshot struct {
	Bins      []Bin
	Min, Max  float64
	Width     float64
	Entries   int64 // every Fill call
	InRange   int64 // sum of bin counts
	Underflow int64
	Overflow  int64

	Mean     float64
	Variance float64
	StdDev   float64
}

func (s Snapshot) Len() int { return len(s.Bins) }

func (s Snapshot) Centers() []float64 {
	c := make([]float64, len(s.Bins))
	for i := range s.Bins {
		c[i] = s.Bins[i].Center
	}
	return c
}

func (s Snapshot) Counts() []float64 {
	c := make([]float64, len(s.Bins))
	for i := range s.Bins {
		c[i] = float64(s.Bins[i].Count)
	}
	return c
}

// Mode is the center of the fullest bin.
func (s Snapshot) Mode() float64 {
	if len(s.Bins) == 0 {
		return 0
	}
	return s.Bins[utils.Argmax(s.Counts())].Center
}

// Consistent checks bins + underflow + overflow == entries.
func (s Snapshot) Consistent() bool {
	return s.InRange+s.Underflow+s.Overflow == s.Entries
}

// Equal compares geometry and every counter, ignoring the floating point
// running statistics.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.Bins) != len(o.Bins) || s.Min != o.Min || s.Max != o.Max ||
		s.Entries != o.Entries || s.Underflow != o.Underflow || s.Overflow != o.Overflow {
		return false
	}
	for i := range s.Bins {
		if s.Bins[i] != o.Bins[i] {
			return false
		}
	}
	return true
}
