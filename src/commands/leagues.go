package commands

import (
	"mxshs/oddsportal/src/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(leaguesCmd)
}

var leaguesCmd = &cobra.Command{
	Use:   "leagues [--db] [--csv]",
	Short: "Lists the soccer leagues with a results archive.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		leagues, err := newCrawler().Leagues(ctx)
		if err != nil {
			return err
		}
		log.Info("found leagues", zap.Int("count", len(leagues)))

		if saveDB {
			conn, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.InsertLeagues(ctx, leagues); err != nil {
				return err
			}
		}

		return emit("leagues", export.LeaguesTable(leagues))
	},
}
