package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/arrakis-sim/dune-server-go/internal/agent"
	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var simulateSeed int64

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Run a scenario's battle phase with every faction passing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if cmd.Flags().Changed("seed") {
			cfg.Rules.Seed = simulateSeed
		}
		handler, board, err := newHandler(cfg.Rules, logger)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read scenario: %w", err)
		}
		g, err := state.LoadScenario(data, board)
		if err != nil {
			return err
		}

		opts := []game.EngineOption{}
		var recorder *game.ReplayRecorder
		if cfg.Replay.Enabled {
			if err := os.MkdirAll(cfg.Replay.Directory, 0o755); err != nil {
				return fmt.Errorf("create replay directory: %w", err)
			}
			recorder = game.NewReplayRecorder(logger, cfg.Replay.Directory)
			opts = append(opts, game.WithReplayRecorder(recorder))
		}
		engine := game.NewBattleEngine(logger, handler, opts...)

		ctx := cmd.Context()
		view, err := engine.StartBattle(ctx, g)
		if err != nil {
			return err
		}
		driver := agent.NewDriver(engine, agent.PassProvider{}, logger)
		end, err := driver.Run(ctx, view)
		if err != nil {
			return err
		}

		stats, err := engine.Stats(end.SessionID)
		if err != nil {
			return err
		}
		events, err := engine.Events(end.SessionID, 0)
		if err != nil {
			return err
		}
		if _, err := engine.Finish(ctx, end.SessionID); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s: %d battles resolved in %d steps, %d events\n",
			end.SessionID, end.Resolved, end.Sequence, len(events))
		factions := make([]string, 0, len(stats.ForcesLost))
		for f := range stats.ForcesLost {
			factions = append(factions, string(f))
		}
		sort.Strings(factions)
		for _, f := range factions {
			fmt.Fprintf(out, "  %-10s lost %d forces\n", f, stats.ForcesLost[state.Faction(f)])
		}
		if recorder != nil {
			logger.Info("replay saved", zap.String("session_id", end.SessionID), zap.String("directory", cfg.Replay.Directory))
		}
		return nil
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "override the rules seed")
}
