package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"preader/db"
	"preader/query"

	"github.com/urfave/cli/v2"
)

func listCmd() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List stored feeds",
		ArgsUsage: "[feed-id]...",
		Action: func(ctx *cli.Context) error {
			var filters []query.FilterStrategy
			if ctx.Args().Present() {
				ids, err := feedIds(ctx.Args())
				if err != nil {
					return err
				}
				filters = append(filters, query.IdFilter{Ids: ids})
			}

			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			stored, err := database.Feeds(ctx.Context, filters...)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBSCRIBED\tDISABLED\tNEW\tERRORS\tTITLE\tURL")
			for _, f := range stored {
				fmt.Fprintf(w, "%d\t%t\t%t\t%t\t%d\t%s\t%s\n",
					f.Id, f.Subscribed, f.Disabled, f.HasNewEntries, f.ErrorCount, f.Title, f.FeedUrl)
			}
			return w.Flush()
		},
	}
}

func logsCmd() *cli.Command {
	return &cli.Command{
		Name:      "logs",
		Usage:     "Show the latest checks of a feed",
		ArgsUsage: "<feed-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   10,
				Usage:   "Number of checks to show",
			},
		},
		Action: func(ctx *cli.Context) error {
			ids, err := feedIds(ctx.Args())
			if err != nil {
				return err
			}
			if len(ids) != 1 {
				return errors.New("please specify a single feed id")
			}

			database, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if _, err := database.FeedByID(ctx.Context, ids[0]); err != nil {
				return fmt.Errorf("feed %d: %w", ids[0], err)
			}
			logs, err := database.FeedLogs(ctx.Context, ids[0], ctx.Int("limit"))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHECKED\tSTATUS\tENTRIES\tDURATION\tNOTES")
			for _, l := range logs {
				status := "-"
				if l.StatusCode != 0 {
					status = strconv.Itoa(l.StatusCode)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					l.Created.UTC().Format(time.RFC3339), status, l.Entries, l.Duration,
					strings.ReplaceAll(l.Notes, "\n", "; "))
			}
			return w.Flush()
		},
	}
}

type feedAction func(ctx context.Context, database *db.DB, ids ...int64) (int64, error)

func adminCmd() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "Feed maintenance actions",
		Subcommands: []*cli.Command{
			adminAction("force-update", "Check feeds on the next update, ignoring cached headers",
				func(ctx context.Context, database *db.DB, ids ...int64) (int64, error) {
					return database.ForceUpdate(ctx, ids...)
				}),
			adminAction("clear-errors", "Reset the error count of feeds",
				func(ctx context.Context, database *db.DB, ids ...int64) (int64, error) {
					return database.ClearErrors(ctx, ids...)
				}),
			adminAction("disable", "Disable feeds",
				func(ctx context.Context, database *db.DB, ids ...int64) (int64, error) {
					return database.SetDisabled(ctx, true, ids...)
				}),
			adminAction("enable", "Enable feeds",
				func(ctx context.Context, database *db.DB, ids ...int64) (int64, error) {
					return database.SetDisabled(ctx, false, ids...)
				}),
		},
	}
}

func adminAction(name, usage string, action feedAction) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<feed-id>...",
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

			updated, err := action(ctx.Context, database, ids...)
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "%s: %d feeds updated\n", name, updated)
			return nil
		},
	}
}
