package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/xypicmic/internal/picmic/codec"
)

// WriteHTML renders an interactive page with the saved ratio histogram and
// the raw and encoded size of every event.
func WriteHTML(w io.Writer, stats []codec.Stats) error {
	summary, err := Summarize(stats)
	if err != nil {
		return err
	}

	bins := Histogram(SavedRatios(stats), HistogramBins)
	labels := make([]string, len(bins))
	counts := make([]opts.BarData, len(bins))
	for i, b := range bins {
		labels[i] = fmt.Sprintf("%.2f", b.Lo)
		counts[i] = opts.BarData{Value: b.Count}
	}

	hist := charts.NewBar()
	hist.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "PICMIC line codec", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-event saved ratio", Subtitle: summary.Total.String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "saved ratio", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "events"}),
	)
	hist.SetXAxis(labels).AddSeries("events", counts)

	x := make([]int, len(stats))
	raw := make([]opts.LineData, len(stats))
	encoded := make([]opts.LineData, len(stats))
	for i, s := range stats {
		x[i] = i + 1
		raw[i] = opts.LineData{Value: s.Addresses}
		encoded[i] = opts.LineData{Value: s.Words}
	}

	sizes := charts.NewLine()
	sizes.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Words per event", Subtitle: fmt.Sprintf("mean encoded %.1f words", summary.MeanWords)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	sizes.SetXAxis(x).
		AddSeries("raw addresses", raw).
		AddSeries("encoded words", encoded)

	page := components.NewPage()
	page.PageTitle = "PICMIC line codec"
	page.AddCharts(hist, sizes)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}
