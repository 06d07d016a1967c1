package commands

import (
	"mxshs/oddsportal/src/domain"
	"mxshs/oddsportal/src/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(seasonsCmd)
}

func leagueFromArgs(args []string) domain.League {
	return domain.League{Country: args[0], Competition: args[1], Name: args[1]}
}

var seasonsCmd = &cobra.Command{
	Use:   "seasons <country> <competition> [--db] [--csv]",
	Short: "Lists the seasons of a league since SEASON_CUTOFF_YEAR.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		league := leagueFromArgs(args)

		seasons, err := newCrawler().Seasons(ctx, league)
		if err != nil {
			return err
		}
		log.Info("found seasons",
			zap.String("country", league.Country),
			zap.String("competition", league.Competition),
			zap.Int("count", len(seasons)),
		)

		if saveDB {
			conn, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.InsertSeasons(ctx, seasons); err != nil {
				return err
			}
		}

		return emit("seasons_"+league.Country+"_"+league.Competition, export.SeasonsTable(seasons))
	},
}
