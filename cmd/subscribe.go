/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"preader/feeds"
	"preader/models"

	"github.com/cqroot/prompt"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
)

func addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Discover and subscribe to the feeds of a site",
		ArgsUsage: "<url>",
		Description: `Looks up the feeds behind a URL and subscribes to them.

The URL can point to a feed or to a page advertising its feeds with
<link> elements. Unless --yes is given you are asked which of the
discovered feeds to subscribe to.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Subscribe to every discovered feed without asking",
			},
		},
		Action: func(ctx *cli.Context) error {
			url := ctx.Args().First()
			if url == "" {
				return errors.New("please specify a url")
			}

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			found, err := feeds.NewDiscoverer(database, cfg.Reader).Discover(ctx.Context, url)
			if err != nil {
				return err
			}
			if len(found) == 0 {
				return fmt.Errorf("no feed urls found at %s", url)
			}

			chosen := found
			if !ctx.Bool("yes") {
				labels := lo.Map(found, func(f models.Feed, _ int) string { return feedLabel(f) })
				selected, err := prompt.New().Ask("Subscribe to:").MultiChoose(labels)
				if err != nil {
					return err
				}
				chosen = lo.Filter(found, func(f models.Feed, _ int) bool {
					return lo.Contains(selected, feedLabel(f))
				})
			}

			for _, feed := range chosen {
				subscribed, err := database.Subscribe(ctx.Context, feed.Id)
				if err != nil {
					return err
				}
				if subscribed {
					fmt.Fprintln(ctx.App.Writer, "Subscribed to", feed.FeedUrl)
				} else {
					fmt.Fprintln(ctx.App.Writer, "Already subscribed to", feed.FeedUrl)
				}
			}
			return nil
		},
	}
}

func unsubscribeCmd() *cli.Command {
	return &cli.Command{
		Name:      "unsubscribe",
		Usage:     "Unsubscribe from feeds",
		ArgsUsage: "<feed-id>...",
		Description: `Stops checking the given feeds and resets the read state of
their entries.`,
		Action: func(ctx *cli.Context) error {
			ids, err := feedIds(ctx.Args())
			if err != nil {
				return err
			}
			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			for _, id := range ids {
				if err := database.Unsubscribe(ctx.Context, id); err != nil {
					return fmt.Errorf("could not unsubscribe from feed %d: %w", id, err)
				}
				fmt.Fprintln(ctx.App.Writer, "Unsubscribed from feed", id)
			}
			return nil
		},
	}
}

func feedLabel(f models.Feed) string {
	return strconv.FormatInt(f.Id, 10) + " " + f.FeedUrl
}
