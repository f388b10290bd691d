/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func tidyCmd() *cli.Command {
	return &cli.Command{
		Name:  "tidy",
		Usage: "Tidy up the database",
		Description: `Tidy up the database by removing feed logs that are old.

		Remove feed logs older than the retention period from the database.
		Defaults to reader.log_retention from the config, 30 days unless set.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "retention",
				Usage:   "Keep feed logs younger than this",
				EnvVars: []string{"PREADER_LOG_RETENTION"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			retention := cfg.Reader.LogRetention
			if ctx.IsSet("retention") {
				retention = ctx.Duration("retention")
			}

			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			deleted, err := database.Tidy(ctx.Context, retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Deleted %d feed logs older than %s\n", deleted, retention)
			return nil
		},
	}
}
