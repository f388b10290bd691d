// Package feedlist loads the subscribed feed list from a JSON endpoint and
// renders it as links into an HTML document.
package feedlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"preader/dom"
	"preader/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

const (
	DefaultSelector = "ul#feedList"

	linkIdPrefix   = "feedLink_"
	linkHrefPrefix = "/f/"
)

// HTTPClient makes HTTP requests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*Loader)

func WithHTTPClient(client HTTPClient) Option {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// WithSelector overrides the target list element selector
func WithSelector(selector string) Option {
	return func(l *Loader) {
		l.selector = selector
	}
}

// StatusError is returned when the feed list endpoint answers with a
// non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed list %s returned HTTP %d", e.URL, e.StatusCode)
}

// Result is the outcome of a one-shot load
type Result struct {
	Appended int
	Err      error
}

// Loader renders a feed list into a page exactly once
type Loader struct {
	url        string
	selector   string
	httpClient HTTPClient

	once   sync.Once
	result Result
}

// New creates a loader for the feed list at feedListURL
func New(feedListURL string, opts ...Option) *Loader {
	l := &Loader{
		url:        feedListURL,
		selector:   DefaultSelector,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fetch retrieves and decodes the feed list
func (l *Loader) Fetch(ctx context.Context) ([]models.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed list: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: l.url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed list: %w", err)
	}

	return Decode(body)
}

// Init fetches the feed list and appends it to the target element of doc.
// Only the first call does any work; later calls return the first result.
// Failures are logged and leave doc untouched.
func (l *Loader) Init(ctx context.Context, doc *html.Node) Result {
	l.once.Do(func() {
		l.result = l.load(ctx, doc)
	})
	return l.result
}

// Start runs Init in the background. The result is delivered on the returned
// channel; doc must not be used until it arrives.
func (l *Loader) Start(ctx context.Context, doc *html.Node) <-chan Result {
	done := make(chan Result, 1)
	go func() {
		done <- l.Init(ctx, doc)
		close(done)
	}()
	return done
}

func (l *Loader) load(ctx context.Context, doc *html.Node) Result {
	target, err := dom.Select(doc, l.selector)
	if err != nil {
		log.WithFields(log.Fields{
			"selector": l.selector,
			"error":    err,
		}).Error("Feed list target not found")
		return Result{Err: err}
	}

	items, err := l.Fetch(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"url":   l.url,
			"error": err,
		}).Error("Error loading feed list")
		return Result{Err: err}
	}

	appended := Render(target, items)
	log.WithFields(log.Fields{
		"url":   l.url,
		"count": appended,
	}).Debug("Rendered feed list")

	return Result{Appended: appended}
}

// Render appends one list entry per item to target, in order, and returns
// the number of entries appended.
func Render(target *html.Node, items []models.FeedItem) int {
	for _, item := range items {
		target.AppendChild(Entry(item))
	}
	return len(items)
}

// Entry builds <li><a title id href>title</a></li> for item
func Entry(item models.FeedItem) *html.Node {
	a := dom.Element("a",
		"title", item.Title,
		"id", linkIdPrefix+item.PK,
		"href", linkHrefPrefix+item.PK,
	)
	a.AppendChild(dom.TextNode(item.Title))

	li := dom.Element("li")
	li.AppendChild(a)
	return li
}
