// Package commands implements CLI command handlers for coocscan.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/graphmine/coocscan/internal/scanner"
	"github.com/graphmine/coocscan/pkg/config"
	"github.com/graphmine/coocscan/pkg/observability"
	"github.com/graphmine/coocscan/pkg/version"
)

// metricsReadTimeout bounds header reads on the Prometheus endpoint.
const metricsReadTimeout = 10 * time.Second

// ScanCommand holds flags for the scan command.
type ScanCommand struct {
	configPath   string
	root         string
	indexPath    string
	universePath string
	outputDir    string
	threshold    float64
	workers      int
	limit        int
	cadence      int
	resume       bool
	metricsAddr  string
}

// NewScanCommand creates the scan cobra command.
func NewScanCommand() *cobra.Command {
	sc := &ScanCommand{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a corpus and build the co-occurrence matrix",
		Long: `Scan walks the corpus root, streams every compressed unit, accumulates
weighted concept co-occurrence, and writes the matrix and its index file.
Progress is checkpointed; an interrupted scan resumes with --resume.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return sc.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&sc.configPath, "config", "", "config file path (default .coocscan.yaml)")
	flags.StringVar(&sc.root, "root", "", "corpus root directory")
	flags.StringVar(&sc.indexPath, "index", "", "concept index file")
	flags.StringVar(&sc.universePath, "universe", "", "optional identifier universe file")
	flags.StringVarP(&sc.outputDir, "output", "o", "", "output directory")
	flags.Float64VarP(&sc.threshold, "threshold", "t", config.DefaultThreshold, "minimum annotation confidence")
	flags.IntVarP(&sc.workers, "workers", "w", config.DefaultWorkers, "unit workers (0 = CPU count)")
	flags.IntVar(&sc.limit, "limit", 0, "process only the first N units (0 = all)")
	flags.IntVar(&sc.cadence, "checkpoint-every", config.DefaultCadence, "units between checkpoint saves")
	flags.BoolVar(&sc.resume, "resume", false, "resume from a prior checkpoint")
	flags.StringVar(&sc.metricsAddr, "metrics-addr", "",
		"serve Prometheus /metrics on this address; scan metrics then go to this endpoint instead of OTLP")

	return cmd
}

func (sc *ScanCommand) run(cmd *cobra.Command) error {
	cfg, err := sc.loadConfig(cmd)
	if err != nil {
		return err
	}

	providers, err := observability.Init(observability.Config{
		ServiceName:    "coocscan",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
		LogLevel:       observability.ParseLogLevel(cfg.Logging.Level),
		LogJSON:        cfg.Logging.Format == "json",
	})
	if err != nil {
		return err
	}

	defer func() { _ = providers.Shutdown(context.Background()) }()

	meter := providers.Meter

	if cfg.Telemetry.MetricsAddr != "" {
		promMeter, stopMetrics, metricsErr := serveMetrics(cfg.Telemetry.MetricsAddr, providers)
		if metricsErr != nil {
			return metricsErr
		}

		defer stopMetrics()

		meter = promMeter
	}

	metrics, err := observability.NewScanMetrics(meter)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := scanner.NewRunner(scanner.Options{
		Root:         cfg.Corpus.Root,
		IndexPath:    cfg.Corpus.IndexPath,
		UniversePath: cfg.Corpus.UniversePath,
		Threshold:    cfg.Scan.Threshold,
		Workers:      cfg.Scan.Workers,
		Limit:        cfg.Scan.Limit,
		Cadence:      cfg.Checkpoint.Cadence,
		Resume:       cfg.Checkpoint.Resume,
		OutputDir:    cfg.Output.Dir,
	}, providers.Logger, metrics)

	res, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, scanner.ErrInterrupted) {
			// Progress statistics still reach the operator.
			if res != nil {
				scanner.WriteSummary(os.Stdout, res)
			}

			return fmt.Errorf("%w: progress checkpointed, rerun with --resume", err)
		}

		return err
	}

	scanner.WriteSummary(os.Stdout, res)

	return nil
}

// loadConfig merges the config file with explicitly set flags. Flags win.
func (sc *ScanCommand) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(sc.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("root") {
		cfg.Corpus.Root = sc.root
	}

	if flags.Changed("index") {
		cfg.Corpus.IndexPath = sc.indexPath
	}

	if flags.Changed("universe") {
		cfg.Corpus.UniversePath = sc.universePath
	}

	if flags.Changed("output") {
		cfg.Output.Dir = sc.outputDir
	}

	if flags.Changed("threshold") {
		cfg.Scan.Threshold = sc.threshold
	}

	if flags.Changed("workers") {
		cfg.Scan.Workers = sc.workers
	}

	if flags.Changed("limit") {
		cfg.Scan.Limit = sc.limit
	}

	if flags.Changed("checkpoint-every") {
		cfg.Checkpoint.Cadence = sc.cadence
	}

	if flags.Changed("resume") {
		cfg.Checkpoint.Resume = sc.resume
	}

	if flags.Changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = sc.metricsAddr
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// serveMetrics starts the Prometheus scrape endpoint and returns its meter.
func serveMetrics(addr string, providers observability.Providers) (metric.Meter, func(), error) {
	mp, handler, err := observability.PrometheusHandler()
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadTimeout,
	}

	go func() {
		serveErr := server.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			providers.Logger.Error("metrics endpoint failed", "addr", addr, "error", serveErr)
		}
	}()

	stop := func() {
		_ = server.Close()
		_ = mp.Shutdown(context.Background())
	}

	return mp.Meter("coocscan"), stop, nil
}
