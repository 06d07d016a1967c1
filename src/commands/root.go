package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"mxshs/oddsportal/src/config"
	"mxshs/oddsportal/src/core"
	"mxshs/oddsportal/src/db"
	"mxshs/oddsportal/src/export"
	"mxshs/oddsportal/src/logger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger

	saveDB  bool
	saveCSV bool
)

var rootCmd = &cobra.Command{
	Use:   "oddsportal",
	Short: "oddsportal harvests historical soccer matches and odds from oddsportal.com.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log, err = logger.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&saveDB, "db", false, "Store results in the configured database.")
	rootCmd.PersistentFlags().BoolVar(&saveCSV, "csv", false, "Write results as CSV files to OUTPUT_DIR.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newFetcher() *core.HTTPClient {
	return core.NewHTTPClient(core.HTTPOptions{
		UserAgent: cfg.UserAgent,
		Referer:   cfg.Referer,
		Timeout:   cfg.HTTPTimeout,
	})
}

func newCrawler() *core.Crawler {
	return core.NewCrawler(newFetcher(), core.CrawlerOptions{
		BaseURL:    cfg.BaseURL,
		FeedHost:   cfg.FeedHost,
		CutoffYear: cfg.SeasonCutoff,
		MaxPages:   cfg.MaxPages,
	}, log)
}

func browserOptions(settle time.Duration) core.BrowserOptions {
	return core.BrowserOptions{
		Headless:   cfg.Headless,
		WindowSize: cfg.WindowSize,
		UserAgent:  cfg.UserAgent,
		Settle:     settle,
	}
}

func openDB(ctx context.Context) (*db.DB, error) {
	conn, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, err
	}
	if err := conn.InitSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// emit prints t and, with --csv, also writes it to OUTPUT_DIR.
func emit(name string, t table.Writer) error {
	t.SetOutputMirror(os.Stdout)
	t.Render()
	t.SetOutputMirror(nil)

	if !saveCSV {
		return nil
	}

	path, err := export.WriteCSV(cfg.OutputDir, name, t)
	if err != nil {
		return err
	}
	log.Info("wrote csv", zap.String("path", path))
	return nil
}
