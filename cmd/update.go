package cmd

import (
	"fmt"

	"preader/feeds"

	"github.com/urfave/cli/v2"
)

func updateCmd() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Check due feeds for new entries",
		Description: `Checks the subscribed feeds that are due and stores their new entries.

Feeds that keep failing are checked less often and are disabled after
reader.max_errors consecutive errors. Can be run as a cron job.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of feeds to check, defaults to reader.update_limit",
				EnvVars: []string{"PREADER_UPDATE_LIMIT"},
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Number of feeds fetched in parallel, defaults to reader.workers",
				EnvVars: []string{"PREADER_WORKERS"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("workers") {
				cfg.Reader.Workers = ctx.Int("workers")
			}

			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			summary, err := feeds.NewUpdater(database, cfg.Reader).Update(ctx.Context, ctx.Int("limit"))
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Checked %d feeds: %d new entries, %d failed, %d disabled\n",
				summary.Checked, summary.NewEntries, summary.Failed, summary.Disabled)
			return nil
		},
	}
}
