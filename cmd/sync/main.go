package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"etf-flow-lab/internal/config"
	"etf-flow-lab/internal/metrics"
	"etf-flow-lab/internal/notify"
	"etf-flow-lab/internal/observability"
	"etf-flow-lab/internal/pipeline"
	"etf-flow-lab/internal/reconcile"
	"etf-flow-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "configs/oil-etfs.yaml", "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First signal cancels the run, second one exits immediately.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig.String()).Warn("received signal, cancelling run")
		cancel()
		sig = <-sigCh
		logger.WithField("signal", sig.String()).Error("received second signal, exiting")
		os.Exit(1)
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("sync failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	store, closeStore, err := cfg.OpenTableStore(ctx)
	if err != nil {
		return fmt.Errorf("open table store: %w", err)
	}
	defer closeStore()

	exporter, closeExporter, err := cfg.OpenExporter(ctx)
	if err != nil {
		// Export is best effort; the table sync still runs.
		logger.WithError(err).Warn("flow metrics export disabled")
		exporter = nil
	}
	defer closeExporter()

	m := observability.NewMetrics("")
	syncer := pipeline.NewSyncer(
		cfg.Dataset,
		cfg.NewCollector(logger),
		store,
		reconcile.NewReconciler(cfg.Backfill()),
		metrics.NewEngine(cfg.Windows(), cfg.Metrics.MovingAverage),
		cfg.ReportWindows(),
		buildNotifier(cfg, logger),
	).
		WithLocation(cfg.Location()).
		WithLogger(logger).
		WithMetrics(m).
		WithBackendName(cfg.Store.Backend)
	if exporter != nil {
		syncer = syncer.WithExporter(exporter)
	}

	_, runErr := syncer.Run(ctx)

	if url := cfg.Observability.PushgatewayURL; url != "" {
		pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Push(pushCtx, url, cfg.Observability.Job); err != nil {
			logger.WithError(err).Warn("push metrics failed")
		}
	}

	if errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run cancelled: %w", runErr)
	}
	return runErr
}

// buildNotifier writes the change set to stdout ("-") or a file, and always
// logs a structured summary.
func buildNotifier(cfg *config.Config, logger *logrus.Logger) notify.Notifier {
	opts := reporting.Options{
		Title:          cfg.Notify.Title,
		Unit:           cfg.Notify.Unit,
		NoChangesLabel: cfg.Notify.NoChanges,
	}

	var out notify.Notifier
	if cfg.Notify.Output == "-" {
		out = notify.NewWriterNotifier(os.Stdout, opts)
	} else {
		out = notify.NewFileNotifier(cfg.Notify.Output, opts)
	}
	return notify.Multi{out, notify.NewLogNotifier(logger)}
}
