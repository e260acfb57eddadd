package main

import (
	"fmt"
	"os"

	"github.com/arrakis-sim/dune-server-go/internal/config"
	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/random"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	version    = "dev" // set via ldflags during build
)

var rootCmd = &cobra.Command{
	Use:           "dune-server",
	Short:         "Dune battle phase server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to configuration file")
	rootCmd.AddCommand(serveCmd, simulateCmd, replayCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// newHandler builds the battle handler from the rules settings. The board
// file, when set, replaces the embedded board. A zero seed draws a fresh one
// and logs it so the run can be reproduced.
func newHandler(cfg config.RulesConfig, logger *zap.Logger) (*battle.Handler, *state.Board, error) {
	board := state.DefaultBoard()
	if cfg.BoardFile != "" {
		data, err := os.ReadFile(cfg.BoardFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read board %s: %w", cfg.BoardFile, err)
		}
		if board, err = state.ParseBoard(data); err != nil {
			return nil, nil, fmt.Errorf("parse board %s: %w", cfg.BoardFile, err)
		}
	}
	seed := cfg.Seed
	if seed == 0 {
		var err error
		if seed, err = random.NewSeed(); err != nil {
			return nil, nil, err
		}
	}
	logger.Info("battle rules configured",
		zap.Bool("advanced_combat", cfg.AdvancedCombat),
		zap.Int64("seed", seed),
	)
	opts := battle.Options{
		Board:                    board,
		AdvancedCombat:           cfg.AdvancedCombat,
		CaptureSpiceReward:       cfg.CaptureSpiceReward,
		KwisatzHaderachThreshold: cfg.KwisatzHaderachThreshold,
		Seed:                     seed,
	}
	return battle.NewHandler(opts, logger), board, nil
}

// initLogger builds the process logger. Console format gets colored levels.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging.level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.InitialFields = map[string]any{"service": "dune-battle"}
	return zapCfg.Build()
}
