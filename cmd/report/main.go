package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"etf-flow-lab/internal/config"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/reporting"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "configs/oil-etfs.yaml", "Path to the YAML config file")
	format := flag.String("format", "markdown", "Output format: markdown or csv")
	output := flag.String("output", "-", "Output file (- for stdout)")
	flag.Parse()

	if *format != "markdown" && *format != "csv" {
		fmt.Fprintf(os.Stderr, "Error: unknown format %q (want markdown or csv)\n", *format)
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	var w io.Writer = os.Stdout
	if *output != "-" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := run(context.Background(), cfg, *format, w); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, format string, w io.Writer) error {
	store, closeStore, err := cfg.OpenTableStore(ctx)
	if err != nil {
		return fmt.Errorf("open table store: %w", err)
	}
	defer closeStore()

	engine := metrics.NewEngine(cfg.Windows(), cfg.Metrics.MovingAverage)
	report, rows, err := reporting.NewGenerator(store, engine, cfg.Dataset).Generate(ctx)
	if err != nil {
		return err
	}

	var out string
	switch format {
	case "csv":
		out = reporting.RenderMetricsCSV(rows, engine.Windows())
	default:
		out = reporting.RenderMarkdown(report, reporting.Options{
			Title:          cfg.Notify.Title,
			Unit:           cfg.Notify.Unit,
			NoChangesLabel: cfg.Notify.NoChanges,
		})
	}

	if _, err := io.WriteString(w, out); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
