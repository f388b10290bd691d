/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"io"
	"os"

	"preader/logging"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	var logFile io.Closer

	return &cli.App{
		Name:  "preader",
		Usage: "A small single user feed reader",
		Description: `A feed reader that discovers RSS and Atom feeds from web pages,
		checks subscribed feeds on a schedule and serves the entries over HTTP.

		Feeds and entries are stored in an SQLite database. Settings are read
		from a TOML file and can be overridden by flags.

		Flags can generally be set via environment variables, e.g.:

		--database => PREADER_DATABASE=preader.db
		--port => PREADER_PORT=8080
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database",
				Aliases: []string{"d"},
				Value:   "preader.db",
				Usage:   "SQLite database file location",
				EnvVars: []string{"PREADER_DATABASE"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "preader.toml",
				Usage:   "Path to the TOML configuration file",
				EnvVars: []string{"PREADER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (trace, debug, info, warn, error)",
				EnvVars: []string{"PREADER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also write logs to this file, rotated by size",
				EnvVars: []string{"PREADER_LOG_FILE"},
			},
		},
		Before: func(ctx *cli.Context) error {
			closer, err := logging.Setup(logging.Options{
				Level: ctx.String("log-level"),
				File:  ctx.String("log-file"),
			})
			logFile = closer
			return err
		},
		After: func(ctx *cli.Context) error {
			if logFile != nil {
				return logFile.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			rollbackCmd(),
			updateCmd(),
			addCmd(),
			unsubscribeCmd(),
			listCmd(),
			logsCmd(),
			renderCmd(),
			tidyCmd(),
			adminCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}

func Execute() {
	if err := RootApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
