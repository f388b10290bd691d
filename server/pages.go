package server

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"

	"preader/dom"
	"preader/feedlist"
	"preader/models"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

//go:embed static/*
var static embed.FS

const entryIdPrefix = "entry_"

// indexPage renders the reader page with feeds listed in the feed list
func indexPage(feedListUrl string, layoutCols int, feeds []models.Feed) ([]byte, error) {
	raw, err := static.ReadFile("static/index.html")
	if err != nil {
		return nil, err
	}
	doc, err := dom.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	list, err := dom.Select(doc, feedlist.DefaultSelector)
	if err != nil {
		return nil, err
	}
	dom.SetAttr(list, "data-feed-list-url", feedListUrl)

	layout, err := dom.Select(doc, "#layout")
	if err != nil {
		return nil, err
	}
	dom.SetAttr(layout, "class", fmt.Sprintf("cols-%d", layoutCols))
	dom.SetAttr(layout, "data-layout-cols", strconv.Itoa(layoutCols))

	feedlist.Render(list, lo.Map(feeds, func(f models.Feed, _ int) models.FeedItem {
		return models.FeedItem{PK: strconv.FormatInt(f.Id, 10), Title: f.Title}
	}))

	var buf bytes.Buffer
	if err := dom.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// entriesFragment renders the entry list of a feed
func entriesFragment(feed models.Feed, entries []models.Entry) ([]byte, error) {
	section := dom.Element("section",
		"id", fmt.Sprintf("feed_%d", feed.Id),
		"class", "entries",
	)
	heading := dom.Element("h2")
	heading.AppendChild(dom.TextNode(feed.Title))
	section.AppendChild(heading)

	for _, e := range entries {
		article, err := entryNode(e)
		if err != nil {
			return nil, err
		}
		section.AppendChild(article)
	}

	var buf bytes.Buffer
	if err := dom.Render(&buf, section); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func entryNode(e models.Entry) (*html.Node, error) {
	article := dom.Element("article",
		"id", entryIdPrefix+strconv.FormatInt(e.Id, 10),
		"class", "entry status-"+e.Status,
	)

	title := dom.Element("h3")
	link := dom.Element("a", "href", e.Link)
	link.AppendChild(dom.TextNode(e.Title))
	title.AppendChild(link)
	article.AppendChild(title)

	meta := dom.Element("p", "class", "meta")
	meta.AppendChild(dom.TextNode(e.Author + " "))
	published := dom.Element("time", "datetime", e.Published.UTC().Format("2006-01-02T15:04:05Z"))
	published.AppendChild(dom.TextNode(e.Published.UTC().Format("2 Jan 2006 15:04")))
	meta.AppendChild(published)
	article.AppendChild(meta)

	content := dom.Element("div", "class", "content")
	if err := dom.AppendHTML(content, e.Content); err != nil {
		return nil, err
	}
	article.AppendChild(content)
	return article, nil
}
