// Package report summarises the compression achieved over a run and renders
// it as text, a PNG histogram and an HTML page.
package report

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/xypicmic/internal/picmic/codec"
)

// ErrNoEvents is returned when there is nothing to report.
var ErrNoEvents = errors.New("no encoded events to report")

// Summary describes the distribution of the per-event saved ratio.
type Summary struct {
	Events int
	Total  codec.Stats

	Mean   float64
	StdDev float64
	Min    float64
	Median float64
	P90    float64
	Max    float64

	MeanWords float64 // encoded words per event
}

// SavedRatios returns the saved ratio of each event, in order.
func SavedRatios(stats []codec.Stats) []float64 {
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = s.SavedRatio()
	}
	return out
}

// Summarize computes the Summary of per-event statistics.
func Summarize(stats []codec.Stats) (Summary, error) {
	if len(stats) == 0 {
		return Summary{}, ErrNoEvents
	}

	s := Summary{Events: len(stats)}
	words := make([]float64, len(stats))
	for i, st := range stats {
		s.Total.Add(st)
		words[i] = float64(st.Words)
	}

	ratios := SavedRatios(stats)
	sort.Float64s(ratios)
	s.Mean, s.StdDev = stat.MeanStdDev(ratios, nil)
	if len(ratios) < 2 {
		s.StdDev = 0
	}
	s.Min = ratios[0]
	s.Max = ratios[len(ratios)-1]
	s.Median = stat.Quantile(0.5, stat.Empirical, ratios, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, ratios, nil)
	s.MeanWords = stat.Mean(words, nil)
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("%d events, %s\nsaved ratio per event: mean %.3f stddev %.3f min %.3f median %.3f p90 %.3f max %.3f\nmean encoded words per event: %.1f",
		s.Events, s.Total, s.Mean, s.StdDev, s.Min, s.Median, s.P90, s.Max, s.MeanWords)
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo, Hi float64
	Count  int
}

// Histogram buckets the saved ratios into n equal-width bins spanning their
// range.
func Histogram(ratios []float64, n int) []Bin {
	if len(ratios) == 0 || n <= 0 {
		return nil
	}
	sorted := append([]float64(nil), ratios...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		hi = lo + 1e-6
	}
	// stat.Histogram needs the last divider strictly above the largest value.
	dividers := floats.Span(make([]float64, n+1), lo, hi+1e-9)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	bins := make([]Bin, n)
	for i := range bins {
		bins[i] = Bin{Lo: dividers[i], Hi: dividers[i+1], Count: int(counts[i])}
	}
	return bins
}
