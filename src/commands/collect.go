package commands

import (
	"context"
	"fmt"
	"strings"

	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/db"
	"mxshs/oddsportal/src/domain"
	"mxshs/oddsportal/src/export"
	"mxshs/oddsportal/src/parser"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(collectCmd)
}

var collectCmd = &cobra.Command{
	Use:   "collect [season_id] [--csv]",
	Short: "Collects match info and odds for the stored match links.",
	Long: "Collects match info and odds of every link stored by `links --db`, or only those of\n" +
		"season_id (e.g. england/premier-league-2019-2020). Results go to the database.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var seasonID string
		if len(args) == 1 {
			seasonID = strings.Trim(args[0], "/")
		}

		granularity, err := parser.ParseGranularity(cfg.RetryGranularity)
		if err != nil {
			return err
		}

		conn, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		links, err := conn.Links(ctx, seasonID)
		if err != nil {
			return err
		}
		if len(links) == 0 {
			return fmt.Errorf("no stored match links for %q, run links --db first", seasonID)
		}
		log.Info("collecting", zap.Int("links", len(links)), zap.String("granularity", string(granularity)))

		feed := core.NewFeedClient(newFetcher(), cfg.FeedHost, cfg.BookiesHost, cfg.BookiesBuildID)
		crawler := newCrawler()

		var res *parser.Result
		err = core.WithBrowser(ctx, browserOptions(cfg.MatchSettle), log, func(b *core.Browser) error {
			collector := parser.NewCollector(crawler.On(b), feed, parser.Options{
				Bookmakers:    cfg.Bookmakers,
				MaxRetries:    cfg.MaxRetries,
				Granularity:   granularity,
				ProgressEvery: cfg.ProgressEvery,
			}, log)

			var err error
			res, err = collector.Collect(ctx, links)
			return err
		})
		if res == nil {
			return err
		}

		// a cancelled run still stores what it collected
		if err := store(context.WithoutCancel(ctx), conn, res); err != nil {
			return err
		}

		if saveCSV {
			if _, err := export.WriteCSV(cfg.OutputDir, "matches", export.MatchesTable(res.Matches)); err != nil {
				return err
			}
			for _, market := range domain.Markets {
				name := "odds_" + strings.ToLower(string(market))
				if _, err := export.WriteCSV(cfg.OutputDir, name, export.OddsTable(market, res.Odds[market])); err != nil {
					return err
				}
			}
		}

		if len(res.Failed) > 0 {
			log.Warn("matches left uncollected", zap.Strings("match_ids", res.Failed))
		}

		if err2 := emit("summary", export.SummaryTable(res)); err2 != nil {
			return err2
		}
		return err
	},
}

func store(ctx context.Context, conn *db.DB, res *parser.Result) error {
	if err := conn.InsertMatches(ctx, res.Matches); err != nil {
		return err
	}
	for _, market := range domain.Markets {
		if err := conn.InsertOdds(ctx, market, res.Odds[market]); err != nil {
			return err
		}
	}
	return nil
}
