// Package main implements the ho CLI: run generation strategies from a
// YAML file against built-in objectives and inspect stored snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/thalesfsp/ho/internal/config"
	"github.com/thalesfsp/ho/store"
)

var (
	// configPath is the YAML file describing the run.
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ho",
	Short: "Sequential hyperparameter optimization",
	Long: `ho runs multi-phase generation strategies (random initialization followed by
Bayesian optimization) and keeps their state in a local store so runs can be
inspected and resumed.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ho.yaml", "path to the YAML configuration")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(listCmd)
}

// newLogger builds a JSON or console zap logger at level.
func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)

	return zap.New(core), nil
}

// setup loads the configuration, logger and store shared by commands.
func setup() (*config.Config, *zap.Logger, *store.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.Open(store.Config{
		Path:       cfg.Store.Path,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: true,
		Logger:     logger.Named("badger"),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, st, nil
}
