package cli

import (
	"fmt"

	"github.com/harun/cortex/pkg/coordinator"
	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Run store maintenance now",
	Long: `Flush the write-ahead logs of the SQLite regions and remove temporary
files left behind in the procedural region.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, cleanup, err := setup()
		if err != nil {
			return err
		}
		defer cleanup()

		c, err := coordinator.New(cfg,
			coordinator.WithLogger(log.GetZerolog()),
			coordinator.WithoutMaintenance(),
		)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.Checkpoint(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Checkpoint complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
}
