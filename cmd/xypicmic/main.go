package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/banshee-data/xypicmic/internal/config"
	"github.com/banshee-data/xypicmic/internal/db"
	"github.com/banshee-data/xypicmic/internal/eventsource"
	"github.com/banshee-data/xypicmic/internal/monitoring"
	"github.com/banshee-data/xypicmic/internal/picmic/address"
	"github.com/banshee-data/xypicmic/internal/picmic/codec"
	"github.com/banshee-data/xypicmic/internal/picmic/lines"
	"github.com/banshee-data/xypicmic/internal/pipeline"
	"github.com/banshee-data/xypicmic/internal/report"
	"github.com/banshee-data/xypicmic/internal/version"
)

var (
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	tablePath   = flag.String("table", "picmic_adress_table.tab", "Address table mapping sensor addresses to lines")
	eventsPath  = flag.String("events", "", "Event log to encode")
	port        = flag.String("port", "", "Serial port streaming events from the readout board (overrides -events)")
	dbPath      = flag.String("db", "", "sqlite database recording the run (disabled when empty)")
	reportDir   = flag.String("report", "", "Directory for the compression report (disabled when empty)")
	outPath     = flag.String("out", "", "Write encoded events as length-prefixed big-endian frames")
	printWords  = flag.Bool("print", false, "Print the encoded words of every event")
	decodeWords = flag.String("decode", "", "Decode a space-separated hex word stream and print its lines")
	framesPath  = flag.String("frames", "", "Decode a frame file written by -out and print its lines")
	strict      = flag.Bool("strict", false, "Fail on the first rejected event")
	workers     = flag.Int("workers", 0, "Encoder goroutines (0 = one per CPU)")
	progress    = flag.Int("progress", 1000, "Log a running summary every N events (0 disables)")
	trace       = flag.Bool("trace", false, "Log the packets of every event")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case *decodeWords != "":
		err = decodeHex(os.Stdout, *decodeWords)
	case *framesPath != "":
		err = decodeFrameFile(os.Stdout, *framesPath)
	default:
		var cfg *config.Config
		cfg, err = buildConfig()
		if err == nil {
			err = encode(ctx, cfg, encodeOptions{
				source:   *eventsPath,
				port:     *port,
				out:      *outPath,
				print:    *printWords,
				progress: *progress,
				trace:    *trace,
			}, os.Stdout)
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("xypicmic: %v", err)
	}
}

// buildConfig loads -config, if any, and applies the command-line overrides
// that were set explicitly.
func buildConfig() (*config.Config, error) {
	cfg := config.Empty()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "table":
			cfg.SetTablePath(*tablePath)
		case "db":
			cfg.SetDBPath(*dbPath)
		case "report":
			cfg.SetReportDir(*reportDir)
		case "strict":
			cfg.SetStrict(*strict)
		case "workers":
			cfg.SetWorkers(*workers)
		}
	})
	if cfg.GetTablePath() == "" {
		cfg.SetTablePath(*tablePath)
	}
	return cfg, cfg.Validate()
}

type encodeOptions struct {
	source   string // event log path
	port     string // serial device; takes precedence over source
	out      string // frame file
	print    bool
	progress int
	trace    bool
}

func openSource(o encodeOptions, cfg *config.Config) (eventsource.Source, string, error) {
	if o.port != "" {
		src, err := eventsource.OpenSerial(o.port, cfg.GetSerial())
		if err != nil {
			return nil, "", fmt.Errorf("failed to open serial port %s: %w", o.port, err)
		}
		return src, o.port, nil
	}
	if o.source == "" {
		return nil, "", errors.New("one of -events or -port is required")
	}
	src, err := eventsource.OpenFile(o.source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open event log: %w", err)
	}
	return src, filepath.Base(o.source), nil
}

// encode runs the event source through the pipeline and fans the results out
// to stdout, the frame file, the run database and the report.
func encode(ctx context.Context, cfg *config.Config, o encodeOptions, stdout io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var diag io.Writer
	if cfg.GetLogDiagnostics() {
		diag = os.Stderr
	}
	var traceW io.Writer
	if o.trace {
		traceW = os.Stderr
	}
	lines.SetLogWriters(diag)
	pipeline.SetLogWriters(os.Stderr, diag, traceW)

	table, err := address.LoadTableFile(cfg.GetTablePath())
	if err != nil {
		return err
	}
	monitoring.Logf("loaded %d addresses (%d dummy) from %s", table.Entries(), table.Dummies(), cfg.GetTablePath())

	src, sourceName, err := openSource(o, cfg)
	if err != nil {
		return err
	}
	_, rawLines := src.Subscribe()

	monitorErr := make(chan error, 1)
	go func() {
		err := src.Monitor(ctx)
		// Close ends the subscription so the pipeline drains and stops.
		src.Close()
		monitorErr <- err
	}()

	var frames *os.File
	if o.out != "" {
		if frames, err = os.Create(filepath.Clean(o.out)); err != nil {
			return fmt.Errorf("failed to create %s: %w", o.out, err)
		}
		defer frames.Close()
	}

	var store *db.DB
	var run db.Run
	if path := cfg.GetDBPath(); path != "" {
		if store, err = db.NewDB(path); err != nil {
			return fmt.Errorf("failed to open run database: %w", err)
		}
		defer store.Close()
		if run, err = store.CreateRun(sourceName, cfg.GetTablePath()); err != nil {
			return err
		}
		monitoring.Logf("recording run %s in %s", run.ID, path)
	}

	p := pipeline.New(table, pipeline.OptionsFromConfig(cfg))
	results := p.Run(ctx, pipeline.Records(ctx, rawLines))

	prog := monitoring.NewProgress(o.progress)
	var (
		skipped  int
		perEvent []codec.Stats
		firstErr error
	)
	for res := range results {
		if store != nil {
			if err := store.RecordResult(run.ID, res); err != nil {
				return err
			}
		}
		switch {
		case res.Err != nil:
			prog.Reject()
			if cfg.GetStrict() && firstErr == nil {
				firstErr = res.Err
				cancel()
			}
			continue
		case res.Skipped:
			skipped++
			continue
		}

		prog.Observe(res.Stats)
		perEvent = append(perEvent, res.Stats)
		if o.print {
			fmt.Fprintf(stdout, "%d: %s\n", res.Record.Event.Number, codec.FormatWords(res.Words))
		}
		if frames != nil {
			if err := codec.WriteFrame(frames, res.Words); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
	}

	if err := <-monitorErr; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("event source failed: %w", err)
	}
	if firstErr != nil {
		return fmt.Errorf("strict mode: %w", firstErr)
	}
	if err := ctx.Err(); err != nil {
		monitoring.Logf("interrupted, results are partial")
	}

	prog.Summary()
	events, rejected, total := prog.Total()
	fmt.Fprintln(stdout, total)

	if store != nil {
		if err := store.FinishRun(run.ID, events, skipped, rejected, total); err != nil {
			return err
		}
	}
	if dir := cfg.GetReportDir(); dir != "" {
		summary, err := report.Write(dir, perEvent)
		switch {
		case errors.Is(err, report.ErrNoEvents):
			monitoring.Logf("no encoded events, report skipped")
		case err != nil:
			return err
		default:
			monitoring.Logf("report written to %s\n%s", dir, summary)
		}
	}
	if frames != nil {
		return frames.Close()
	}
	return nil
}

func printLines(w io.Writer, label string, words []uint16) error {
	l, err := codec.Decode(words)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	fmt.Fprintf(w, "%s: Y=%v R=%v B=%v\n", label, []int(l.Y), []int(l.R), []int(l.B))
	return nil
}

func decodeHex(w io.Writer, s string) error {
	words, err := codec.ParseWords(s)
	if err != nil {
		return err
	}
	return printLines(w, "event", words)
}

func decodeFrameFile(w io.Writer, path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()

	for n := 1; ; n++ {
		words, err := codec.ReadFrame(f)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("frame %d: %w", n, err)
		}
		if err := printLines(w, fmt.Sprintf("frame %d", n), words); err != nil {
			return err
		}
	}
}
