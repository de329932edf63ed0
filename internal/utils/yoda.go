package utils

import (
	"fmt"
	"io"

	"go-hep.org/x/hep/hbook"
)

// Histogram1D is the plain content of a fixed-width histogram.
type Histogram1D struct {
	Name, Title         string
	Min, Max            float64
	Counts              []int64
	Underflow, Overflow int64
}

// ToH1D rebuilds h as an hbook histogram with unit weights, outflows
// included.
func ToH1D(h Histogram1D) *hbook.H1D {
	out := hbook.NewH1D(len(h.Counts), h.Min, h.Max)
	out.Annotation()["name"] = h.Name
	if h.Title != "" {
		out.Annotation()["title"] = h.Title
	}
	width := (h.Max - h.Min) / float64(len(h.Counts))
	for i, n := range h.Counts {
		x := h.Min + (float64(i)+0.5)*width
		for range n {
			out.Fill(x, 1)
		}
	}
	for range h.Underflow {
		out.Fill(h.Min-width, 1)
	}
	for range h.Overflow {
		out.Fill(h.Max+width, 1)
	}
	return out
}

// WriteYODA writes every histogram as a YODA block.
func WriteYODA(w io.Writer, hists ...Histogram1D) error {
	for _, h := range hists {
		raw, err := ToH1D(h).MarshalYODA()
		if err != nil {
			return fmt.Errorf("yoda %s: %w", h.Name, err)
		}
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("yoda %s: %w", h.Name, err)
		}
	}
	return nil
}
