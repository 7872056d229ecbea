package report

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/xypicmic/internal/fsutil"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
)

// Output file names inside the report directory.
const (
	SummaryFile   = "summary.txt"
	HistogramFile = "saved_ratio.png"
	HTMLFile      = "report.html"
)

// Write renders the full report for stats into dir on the local filesystem,
// creating it if needed.
func Write(dir string, stats []codec.Stats) (Summary, error) {
	return WriteTo(fsutil.OSFileSystem{}, dir, stats)
}

// WriteTo renders the full report for stats into dir on fsys.
func WriteTo(fsys fsutil.FileSystem, dir string, stats []codec.Stats) (Summary, error) {
	summary, err := Summarize(stats)
	if err != nil {
		return Summary{}, err
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("failed to create report directory: %w", err)
	}

	if err := fsys.WriteFile(filepath.Join(dir, SummaryFile), []byte(summary.String()+"\n"), 0o644); err != nil {
		return Summary{}, fmt.Errorf("failed to write summary: %w", err)
	}

	f, err := fsys.Create(filepath.Join(dir, HistogramFile))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to create %s: %w", HistogramFile, err)
	}
	if err := WriteHistogramPNG(f, stats); err != nil {
		f.Close()
		return Summary{}, err
	}
	if err := f.Close(); err != nil {
		return Summary{}, err
	}

	var html bytes.Buffer
	if err := WriteHTML(&html, stats); err != nil {
		return Summary{}, err
	}
	if err := fsys.WriteFile(filepath.Join(dir, HTMLFile), html.Bytes(), 0o644); err != nil {
		return Summary{}, fmt.Errorf("failed to write %s: %w", HTMLFile, err)
	}
	return summary, nil
}
