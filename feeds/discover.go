package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"preader/config"
	"preader/db"
	"preader/dom"
	"preader/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const placeholderTitle = "no title yet"

// Discoverer finds the feeds behind a URL
type Discoverer struct {
	db        *db.DB
	client    *http.Client
	userAgent string
	maxFeeds  int
	redirects int
}

func NewDiscoverer(database *db.DB, cfg config.ReaderConfig, opts ...Option) *Discoverer {
	o := buildOptions(cfg, opts)
	return &Discoverer{
		db:        database,
		client:    o.client,
		userAgent: cfg.UserAgent,
		maxFeeds:  cfg.MaxFeeds,
		redirects: cfg.MaxRedirects,
	}
}

// Discover returns the feeds found at rawURL. A URL already stored as a feed
// is returned as is. A URL serving a feed content type is itself the feed.
// Otherwise the feeds advertised by <link> elements in the page head are
// stored and returned.
func (d *Discoverer) Discover(ctx context.Context, rawURL string) ([]models.Feed, error) {
	existing, err := d.db.FeedByURL(ctx, rawURL)
	if err == nil {
		return []models.Feed{existing}, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := clientFor(d.client, &redirects{max: d.redirects}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.WithFields(log.Fields{
			"url":    rawURL,
			"status": resp.StatusCode,
		}).Warn("Discovery request failed")
		return []models.Feed{}, nil
	}

	finalURL := resp.Request.URL
	if isFeedType(resp.Header.Get("Content-Type")) {
		feed, _, err := d.db.GetOrCreateFeed(ctx, finalURL.String(), placeholderTitle)
		if err != nil {
			return nil, err
		}
		return []models.Feed{feed}, nil
	}

	doc, err := dom.Parse(resp.Body)
	if err != nil {
		return nil, err
	}

	feeds := []models.Feed{}
	for _, link := range FeedLinks(doc, finalURL, d.maxFeeds) {
		feed, _, err := d.db.GetOrCreateFeed(ctx, link, placeholderTitle)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}

	log.WithFields(log.Fields{
		"url":   rawURL,
		"count": len(feeds),
	}).Info("Discovered feeds")

	return feeds, nil
}

// FeedLinks returns the absolute hrefs of feed <link> elements in the head of
// doc, at most maxPerType for each feed type, grouped by type.
func FeedLinks(doc *html.Node, base *url.URL, maxPerType int) []string {
	head, err := dom.Select(doc, "head")
	if err != nil {
		return nil
	}
	links := dom.SelectAll(head, "link")

	var found []string
	for _, feedType := range FeedTypes {
		count := 0
		for _, link := range links {
			if count >= maxPerType {
				break
			}
			linkType, _ := dom.Attr(link, "type")
			if mediaType(linkType) != feedType {
				continue
			}
			href, ok := dom.Attr(link, "href")
			if !ok || href == "" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			found = append(found, base.ResolveReference(ref).String())
			count++
		}
	}
	return found
}
