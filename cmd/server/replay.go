package main

import (
	"fmt"

	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/spf13/cobra"
)

var replayDir string

var replayCmd = &cobra.Command{
	Use:   "replay <session-id>",
	Short: "Verify a recorded replay and print its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := replayDir
		if dir == "" {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			dir = cfg.Replay.Directory
		}

		replay, err := game.LoadReplayFromFile(dir, args[0])
		if err != nil {
			return err
		}
		if err := replay.Verify(); err != nil {
			return fmt.Errorf("replay %s: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "replay %s: %d snapshots\n", replay.SessionID, replay.Len())
		cursor := replay.Cursor()
		for snap := cursor.Next(); snap != nil; snap = cursor.Next() {
			phase := "complete"
			if cur := snap.State.Current; cur != nil {
				phase = fmt.Sprintf("%s/%d", cur.Battle.Territory, cur.Battle.Sector)
				if cur.Phase != nil {
					phase += " " + string(cur.Phase.Name())
				}
			}
			fmt.Fprintf(out, "  #%-3d %s queue=%d resolved=%d %s\n",
				snap.Sequence, snap.Timestamp.Format("15:04:05.000"), len(snap.State.Queue), snap.State.Resolved, phase)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayDir, "dir", "", "replay directory (defaults to replay.directory from config)")
}
