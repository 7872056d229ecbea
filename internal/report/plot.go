package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/xypicmic/internal/picmic/codec"
)

// HistogramBins is the number of bins in the rendered histograms.
const HistogramBins = 20

// WriteHistogramPNG renders the per-event saved ratio histogram as a PNG.
func WriteHistogramPNG(w io.Writer, stats []codec.Stats) error {
	if len(stats) == 0 {
		return ErrNoEvents
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Per-event data rate saving (%d events)", len(stats))
	p.X.Label.Text = "saved ratio"
	p.Y.Label.Text = "events"

	h, err := plotter.NewHist(plotter.Values(SavedRatios(stats)), HistogramBins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(1)
	p.Add(h)
	p.Add(plotter.NewGrid())

	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render histogram: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write histogram: %w", err)
	}
	return nil
}
