package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-sku-patch/config"
	"github.com/aluiziolira/go-sku-patch/metrics"
	"github.com/aluiziolira/go-sku-patch/models"
	"github.com/aluiziolira/go-sku-patch/pipeline"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	p, err := pipeline.NewPipeline(cfg, m)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting patch",
		slog.String("html", cfg.InputPath),
		slog.String("csv", cfg.CSVPath),
		slog.String("output", cfg.OutputFile),
	)

	result, runErr := p.Run(ctx)
	if runErr != nil {
		m.IncFailure(runErr)
	}
	if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
		slog.Error("metrics textfile", slog.Any("error", err))
	}
	if runErr != nil {
		slog.Error("patch failed",
			slog.String("kind", models.ErrorKind(runErr)),
			slog.Any("error", runErr),
		)
		os.Exit(1)
	}

	if retries := p.Loader().Retries(); retries > 0 {
		slog.Debug("catalog fetched after retries", slog.Int("retries", retries))
	}
	printSummary(os.Stdout, result)
}

// parseConfig reads env defaults and command line flags. Flags may appear
// before, between or after the two positional arguments.
func parseConfig(args []string, stderr io.Writer) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if value, ok := config.EnvString("SKUPATCH_OUTPUT"); ok {
		cfg.OutputFile = value
	}
	if value, ok := config.EnvString("SKUPATCH_REPORT"); ok {
		cfg.ReportFile = value
	}
	if value, ok := config.EnvString("SKUPATCH_METRICS_FILE"); ok {
		cfg.MetricsFile = value
	}
	if value, ok, err := config.EnvInt("SKUPATCH_MAX_RETRIES"); err != nil {
		return nil, fmt.Errorf("invalid SKUPATCH_MAX_RETRIES: %w", err)
	} else if ok {
		cfg.MaxRetries = value
	}

	fs := flag.NewFlagSet("skupatch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: skupatch [flags] html_in csv_path")
		fmt.Fprintln(fs.Output(), "Replaces hidden product_id fields with sku_id taken from the CSV columns «Код артикула» and «ID артикула».")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.OutputFile, "o", cfg.OutputFile, "Where to write the patched HTML (shorthand)")
	fs.StringVar(&cfg.OutputFile, "output", cfg.OutputFile, "Where to write the patched HTML")
	fs.StringVar(&cfg.ReportFile, "report", cfg.ReportFile, "Optional per-block report file (.csv or .jsonl)")
	fs.StringVar(&cfg.ReportFormat, "report-format", cfg.ReportFormat, "Report format: csv, json, or dual (default: by extension)")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.ItemSelector, "item-selector", cfg.ItemSelector, "CSS selector of catalog entry blocks")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Request timeout when html_in is a URL")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Maximum retry attempts when html_in is a URL")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable verbose logging")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
	if len(positional) != 2 {
		fs.Usage()
		return nil, fmt.Errorf("expected html_in and csv_path, got %d argument(s)", len(positional))
	}

	cfg.InputPath = positional[0]
	cfg.CSVPath = positional[1]
	cfg.ReportFormat = strings.ToLower(cfg.ReportFormat)
	return cfg, nil
}

func printSummary(w io.Writer, result *models.Result) {
	var patched int
	for _, o := range result.Outcomes {
		if o.Action.Mutated() {
			patched++
		}
	}
	skipped := len(result.Outcomes) - patched

	fmt.Fprintf(w, "✓ Updated HTML saved to «%s».\n", result.OutputFile)
	fmt.Fprintf(w, "  Codes:    %d (from %d rows)\n", result.Codes, result.Mapping.Rows)
	fmt.Fprintf(w, "  Blocks:   %d patched, %d skipped\n", patched, skipped)
	fmt.Fprintf(w, "  Duration: %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
