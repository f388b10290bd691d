package cmd

import (
	"errors"
	"fmt"
	"os"

	"preader/dom"
	"preader/elementid"
	"preader/feedlist"

	"github.com/urfave/cli/v2"
	"golang.org/x/net/html"
)

const blankPage = `<!DOCTYPE html><html><head></head><body><ul id="feedList"></ul></body></html>`

func renderCmd() *cli.Command {
	return &cli.Command{
		Name:  "render",
		Usage: "Render a feed list endpoint into a page",
		Description: `Fetches the JSON feed list from --url and appends one link per feed
to the target list of the page, then prints the page.

Without --page a blank page with an empty ul#feedList is used. With --ids
only the feed ids recovered from the rendered link ids are printed.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "Feed list endpoint",
				Required: true,
				EnvVars:  []string{"PREADER_FEED_LIST_URL"},
			},
			&cli.StringFlag{
				Name:  "page",
				Usage: "HTML page to render into",
			},
			&cli.StringFlag{
				Name:  "selector",
				Value: feedlist.DefaultSelector,
				Usage: "Selector of the list element",
			},
			&cli.BoolFlag{
				Name:  "ids",
				Usage: "Print the rendered feed ids only",
			},
		},
		Action: func(ctx *cli.Context) error {
			doc, err := loadPage(ctx.String("page"))
			if err != nil {
				return err
			}

			selector := ctx.String("selector")
			loader := feedlist.New(ctx.String("url"), feedlist.WithSelector(selector))
			result := loader.Init(ctx.Context, doc)
			if result.Err != nil {
				return result.Err
			}

			if !ctx.Bool("ids") {
				return dom.Render(ctx.App.Writer, doc)
			}

			target, err := dom.Select(doc, selector)
			if err != nil {
				return err
			}
			for _, link := range dom.SelectAll(target, "a") {
				id, err := elementid.Extract(elementid.Node(link))
				if err != nil {
					return err
				}
				fmt.Fprintln(ctx.App.Writer, id)
			}
			return nil
		},
	}
}

func loadPage(path string) (*html.Node, error) {
	if path == "" {
		return dom.ParseString(blankPage)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open page: %w", err)
	}
	defer f.Close()
	doc, err := dom.Parse(f)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("could not parse page %s", path), err)
	}
	return doc, nil
}
