package commands

import (
	"errors"

	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/domain"
	"mxshs/oddsportal/src/export"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(linksCmd)
}

var linksCmd = &cobra.Command{
	Use:   "links <country> <competition> [--db] [--csv]",
	Short: "Discovers the match links of every season of a league.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		league := leagueFromArgs(args)
		crawler := newCrawler()

		seasons, err := crawler.Seasons(ctx, league)
		if err != nil {
			return err
		}

		var links []domain.MatchLink
		var errs []error

		err = core.WithBrowser(ctx, browserOptions(cfg.ListingSettle), log, func(b *core.Browser) error {
			pages := crawler.On(b)
			for _, season := range seasons {
				found, err := pages.MatchLinks(ctx, season)
				if err != nil {
					log.Warn("season pagination stopped", zap.String("season", season.ID()), zap.Error(err))
					errs = append(errs, err)
				}
				log.Info("found match links", zap.String("season", season.ID()), zap.Int("count", len(found)))
				links = append(links, found...)

				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		if saveDB {
			conn, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.InsertSeasons(ctx, seasons); err != nil {
				return err
			}
			if err := conn.InsertLinks(ctx, links); err != nil {
				return err
			}
		}

		if err := emit("links_"+league.Country+"_"+league.Competition, export.LinksTable(links)); err != nil {
			return err
		}

		return errors.Join(errs...)
	},
}
