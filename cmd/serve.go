/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"preader/db"
	"preader/feeds"
	"preader/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the reader",
		Description: `Starts the reader HTTP server.

Runs the database migrations, then serves the reader page, the JSON feed list
and the entry actions on the configured host and port. With --update-interval
the subscribed feeds are also checked in the background.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "hostname",
				Aliases: []string{"n"},
				Usage:   "The hostname to listen on",
				EnvVars: []string{"PREADER_HOSTNAME"},
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "The port to listen on",
				EnvVars: []string{"PREADER_PORT"},
			},
			&cli.DurationFlag{
				Name:    "update-interval",
				Usage:   "Check due feeds this often, 0 disables background updates",
				EnvVars: []string{"PREADER_UPDATE_INTERVAL"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("hostname") {
				cfg.Server.Hostname = ctx.String("hostname")
			}
			if ctx.IsSet("port") {
				cfg.Server.Port = ctx.Int("port")
			}

			if err := db.Migrate(ctx.String("database")); err != nil {
				return err
			}

			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			app := server.Server(&server.ServerConfig{
				FeedListUrl: cfg.Server.FeedListUrl,
				LayoutCols:  cfg.Server.LayoutCols,
				DB:          database,
				Discoverer:  feeds.NewDiscoverer(database, cfg.Reader),
			})

			// Graceful shutdown
			sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			go func() {
				<-sigCtx.Done()
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(60 * time.Second); err != nil {
					log.WithFields(log.Fields{"error": err}).Error("Shutdown failed")
				}
			}()

			if interval := ctx.Duration("update-interval"); interval > 0 {
				go updateLoop(sigCtx, feeds.NewUpdater(database, cfg.Reader), interval)
			}

			addr := fmt.Sprintf("%s:%d", cfg.Server.Hostname, cfg.Server.Port)
			log.WithFields(log.Fields{"addr": addr}).Info("Starting server")
			return app.Listen(addr)
		},
	}
}

// updateLoop runs the updater every interval until ctx is done
func updateLoop(ctx context.Context, updater *feeds.Updater, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := updater.Update(ctx, 0); err != nil {
			log.WithFields(log.Fields{"error": err}).Error("Update failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
