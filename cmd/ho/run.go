package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thalesfsp/ho"
)

var (
	runName        string
	runResume      bool
	runMetricsAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the configured strategy against its objective",
	Long: `Run builds the strategy described by the configuration file, evaluates its
candidates against the built-in objective and checkpoints the strategy after
every trial. With --resume the stored snapshot is restored first; trials that
were in flight when it was taken are abandoned.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runName, "name", "", "strategy name (overrides the configuration)")
	runCmd.Flags().BoolVar(&runResume, "resume", false, "resume from the stored snapshot")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, st, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	defer st.Close()

	if runName != "" {
		cfg.Name = runName
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	if runMetricsAddr != "" {
		shutdown := serveMetrics(runMetricsAddr, registry, logger)
		defer shutdown()
	}

	phases, err := cfg.BuildPhases()
	if err != nil {
		return err
	}

	objective, err := newObjective(cfg.Objective, len(cfg.SearchSpace))
	if err != nil {
		return err
	}

	opts := []ho.Option{
		ho.WithName(cfg.Name),
		ho.WithLogger(logger.Named("strategy")),
		ho.WithMetrics(ho.NewMetrics(registry)),
	}

	var (
		strategy *ho.Strategy
		data     ho.Data
	)

	if runResume {
		rec, err := loadRecord(ctx, st, cfg.Name)
		if err != nil {
			return err
		}

		strategy, err = ho.RestoreStrategy(phases, rec.State, opts...)
		if err != nil {
			return err
		}

		data = rec.Data

		logger.Info("resuming strategy",
			zap.String("name", cfg.Name),
			zap.String("snapshot_id", rec.ID),
			zap.Int("trials", len(rec.State.Trials)),
			zap.Int("observations", len(data)),
		)
	} else {
		strategy, err = ho.NewStrategy(phases, opts...)
		if err != nil {
			return err
		}
	}

	runner := &ho.Runner{
		Strategy:   strategy,
		Objective:  objective,
		BatchSize:  cfg.Runner.BatchSize,
		Workers:    cfg.Runner.Workers,
		Metric:     cfg.Runner.Metric,
		Maximize:   cfg.Runner.Maximize,
		Data:       data,
		Logger:     logger.Named("runner"),
		Checkpoint: st,
	}

	start := time.Now()

	summary, err := runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "strategy %q: %d completed, %d failed, %d abandoned in %s\n",
		strategy.Name(), summary.Completed, summary.Failed, summary.Abandoned, time.Since(start).Round(time.Millisecond))

	if summary.Best == nil {
		fmt.Fprintln(out, "no trial completed")

		return nil
	}

	fmt.Fprintf(out, "best trial %d: %s = %g at %s\n",
		summary.Best.TrialID, summary.Best.Metric, summary.Best.Mean, formatPoint(cfg.Space(), summary.Best.Point))

	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(ctx)
	}
}
