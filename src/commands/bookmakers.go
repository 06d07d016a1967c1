package commands

import (
	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/export"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bookmakersCmd)
}

var bookmakersCmd = &cobra.Command{
	Use:   "bookmakers [--csv]",
	Short: "Lists bookmaker ids and names, for choosing BOOKMAKER_* values.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		feed := core.NewFeedClient(newFetcher(), cfg.FeedHost, cfg.BookiesHost, cfg.BookiesBuildID)

		bookmakers, err := feed.Bookmakers(cmd.Context())
		if err != nil {
			return err
		}

		return emit("bookmakers", export.BookmakersTable(bookmakers))
	},
}
