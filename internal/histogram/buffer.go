package histogram

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"
)

// Buffer keeps raw sample values for diagnostics and threshold queries.
type Buffer struct {
	values []float64 // insertion order
	sorted []float64 // ascending copy for threshold queries, nil when stale
}

func NewBuffer(capacity int) *Buffer {
	return &Buffer{values: make([]float64, 0, capacity)}
}

func (b *Buffer) Add(v float64) {
	b.values = append(b.values, v)
	b.sorted = nil
}

// Append moves the contents of o to the end of b.
func (b *Buffer) Append(o *Buffer) {
	b.values = append(b.values, o.values...)
	b.sorted = nil
}

func (b *Buffer) Len() int { return len(b.values) }

// Values returns a copy in insertion order.
func (b *Buffer) Values() []float64 {
	return append([]float64(nil), b.values...)
}

// AtLeast counts the buffered values v with v >= threshold.
func (b *Buffer) AtLeast(threshold float64) int {
	if b.sorted == nil {
		b.sorted = append(make([]float64, 0, len(b.values)), b.values...)
		sort.Float64s(b.sorted)
	}
	return len(b.sorted) - sort.SearchFloat64s(b.sorted, threshold)
}

type Summary struct {
	N            int
	Min, Max     float64
	Mean, Median float64
	StdDev       float64 // sample standard deviation
	P05, P95     float64
}

// Summary describes the buffered values. Percentiles use the nearest rank,
// so they are defined for any non-empty buffer.
func (b *Buffer) Summary() (Summary, error) {
	data := stats.Float64Data(b.values)
	s := Summary{N: data.Len()}
	var err error
	if s.Min, err = stats.Min(data); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	if s.Max, err = stats.Max(data); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	if s.Median, err = stats.Median(data); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	if s.N > 1 {
		if s.StdDev, err = stats.StandardDeviationSample(data); err != nil {
			return s, fmt.Errorf("summary: %w", err)
		}
	}
	if s.P05, err = stats.PercentileNearestRank(data, 5); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	if s.P95, err = stats.PercentileNearestRank(data, 95); err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}
