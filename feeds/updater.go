package feeds

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"preader/config"
	"preader/db"
	"preader/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	noTitle   = "no title"
	noAuthor  = "no author"
	noSummary = "No summary."
)

// Summary is the outcome of one update run
type Summary struct {
	Checked    int
	Failed     int
	Disabled   int
	NewEntries int
}

// Updater checks due feeds and stores their new entries
type Updater struct {
	db      *db.DB
	cfg     config.ReaderConfig
	client  *http.Client
	now     func() time.Time
	strict  *bluemonday.Policy
	content *bluemonday.Policy
}

func NewUpdater(database *db.DB, cfg config.ReaderConfig, opts ...Option) *Updater {
	o := buildOptions(cfg, opts)
	return &Updater{
		db:      database,
		cfg:     cfg,
		client:  o.client,
		now:     o.now,
		strict:  bluemonday.StrictPolicy(),
		content: contentPolicy(),
	}
}

// contentPolicy allows links, paragraphs, images and basic emphasis. Any
// of them may carry a class.
func contentPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements("p", "strong", "em")
	p.AllowAttrs("class").Globally()
	p.AllowAttrs("href", "rel").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.RequireNoFollowOnLinks(false)
	return p
}

// Update checks at most limit due feeds, using the configured update limit
// when limit is not positive.
func (u *Updater) Update(ctx context.Context, limit int) (Summary, error) {
	if limit <= 0 {
		limit = u.cfg.UpdateLimit
	}

	due, err := u.db.DueFeeds(ctx, u.now(), limit)
	if err != nil {
		return Summary{}, err
	}

	log.WithFields(log.Fields{
		"due":     len(due),
		"workers": u.cfg.Workers,
	}).Info("Updating feeds")

	var (
		mu      sync.Mutex
		summary Summary
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(u.cfg.Workers, 1))
	for _, feed := range due {
		g.Go(func() error {
			outcome, err := u.Check(ctx, feed)
			if err != nil {
				return fmt.Errorf("feed %d: %w", feed.Id, err)
			}

			mu.Lock()
			defer mu.Unlock()
			summary.Checked++
			summary.NewEntries += outcome.Entries
			if outcome.Failed {
				summary.Failed++
			}
			if outcome.Disabled {
				summary.Disabled++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, err
	}

	log.WithFields(log.Fields{
		"checked":    summary.Checked,
		"failed":     summary.Failed,
		"disabled":   summary.Disabled,
		"newEntries": summary.NewEntries,
	}).Info("Update finished")

	return summary, nil
}

// Outcome is the result of checking a single feed
type Outcome struct {
	Result   string
	Entries  int
	Failed   bool
	Disabled bool
}

// Check fetches one feed, stores its new entries and schedules its next
// check. Fetch and parse failures are recorded on the feed and its log.
// Only storage errors are returned.
func (u *Updater) Check(ctx context.Context, feed models.Feed) (Outcome, error) {
	start := u.now()
	checked := start.Truncate(time.Second)
	feed.LastChecked = &checked
	wasDisabled := feed.Disabled

	feedLog := &models.FeedLog{FeedId: feed.Id, Created: checked}
	var notes []string
	var outcome Outcome

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.FeedUrl, nil)
	if err != nil {
		return outcome, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", u.cfg.UserAgent)
	if feed.Etag != "" {
		req.Header.Set("If-None-Match", feed.Etag)
	}
	if feed.LastModified != nil {
		req.Header.Set("If-Modified-Since", feed.LastModified.UTC().Format(http.TimeFormat))
	}

	rd := &redirects{max: u.cfg.MaxRedirects}
	resp, err := clientFor(u.client, rd).Do(req)
	if err != nil {
		outcome.Result = resultFetchError
		notes = append(notes, fetchErrorNote(err))
		feed.IncrementErrorCount(u.cfg.MaxErrors)
		feedLog.Headers = formatHeaders(req.Header, nil)
	} else {
		defer func() { _ = resp.Body.Close() }()
		feedLog.StatusCode = resp.StatusCode
		feedLog.Headers = formatHeaders(resp.Request.Header, resp.Header)

		switch resp.StatusCode {
		case http.StatusNotModified:
			outcome.Result = resultNotModified
			notes = append(notes, "not modified")
		case http.StatusOK:
			added, err := u.store(ctx, &feed, resp, checked, &notes)
			if err != nil {
				return outcome, err
			}
			outcome.Entries = added
			if added >= 0 {
				outcome.Result = resultOK
			} else {
				outcome.Result = resultParseError
			}
		default:
			outcome.Result = resultHTTPError
			notes = append(notes, fmt.Sprintf("error: status %d", resp.StatusCode))
			feed.IncrementErrorCount(u.cfg.MaxErrors)
		}

		if rd.permanent() {
			if err := u.move(ctx, &feed, resp.Request.URL.String(), &notes); err != nil {
				return outcome, err
			}
		}
	}

	outcome.Entries = max(outcome.Entries, 0)
	outcome.Failed = outcome.Result != resultOK && outcome.Result != resultNotModified
	outcome.Disabled = feed.Disabled && !wasDisabled

	next := nextCheck(feed, checked)
	feed.NextChecked = &next
	if err := u.db.SaveFeed(ctx, &feed); err != nil {
		return outcome, err
	}

	feedLog.Notes = strings.Join(notes, "\n")
	feedLog.Entries = outcome.Entries
	feedLog.Duration = u.now().Sub(start)
	if err := u.db.InsertFeedLog(ctx, feedLog); err != nil {
		return outcome, err
	}

	feedChecks.WithLabelValues(outcome.Result).Inc()
	checkDuration.Observe(feedLog.Duration.Seconds())
	newEntries.Add(float64(outcome.Entries))
	if outcome.Failed {
		feedErrors.Inc()
	}
	if outcome.Disabled {
		feedsDisabled.Inc()
	}

	log.WithFields(log.Fields{
		"id":      feed.Id,
		"url":     feed.FeedUrl,
		"result":  outcome.Result,
		"entries": outcome.Entries,
		"errors":  feed.ErrorCount,
	}).Info("Checked feed")

	return outcome, nil
}

// store parses a 200 response and inserts its new entries. It returns -1
// when the body is not a feed.
func (u *Updater) store(ctx context.Context, feed *models.Feed, resp *http.Response, checked time.Time, notes *[]string) (int, error) {
	parsed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		*notes = append(*notes, fmt.Sprintf("parse error: %v", err))
		feed.IncrementErrorCount(u.cfg.MaxErrors)
		return -1, nil
	}

	feed.ResetErrorCount()
	feed.Etag = resp.Header.Get("ETag")
	if lastModified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		feed.LastModified = &lastModified
	} else {
		feed.LastModified = &checked
	}
	if title := u.text(parsed.Title); title != "" {
		feed.Title = models.Shorten(title)
	}
	feed.Description = u.text(parsed.Description)
	if parsed.Link != "" {
		feed.SiteUrl = parsed.Link
	}

	var since *time.Time
	latest, err := u.db.LatestEntry(ctx, feed.Id)
	switch {
	case err == nil:
		since = &latest.Published
	case !errors.Is(err, db.ErrNotFound):
		return 0, err
	}

	buffer := u.db.NewEntryBuffer(u.cfg.MaxBulkCreate)
	added := 0
	for _, item := range parsed.Items {
		entry := u.entry(feed.Id, item, checked)
		if since != nil && !entry.Published.After(*since) {
			break
		}
		if err := buffer.Add(ctx, entry); err != nil {
			return 0, err
		}
		added++
	}
	if err := buffer.Close(ctx); err != nil {
		return 0, err
	}

	if added > 0 {
		feed.HasNewEntries = true
	}
	*notes = append(*notes, fmt.Sprintf("%d new entries", added))
	return added, nil
}

// move follows a permanent redirect. The feed is disabled when another feed
// already has the new URL.
func (u *Updater) move(ctx context.Context, feed *models.Feed, movedTo string, notes *[]string) error {
	if movedTo == feed.FeedUrl {
		return nil
	}

	other, err := u.db.FeedByURL(ctx, movedTo)
	switch {
	case err == nil && other.Id != feed.Id:
		feed.Disabled = true
		*notes = append(*notes, fmt.Sprintf("feed moved to %s which is already stored as feed %d, disabled", movedTo, other.Id))
	case err == nil:
	case errors.Is(err, db.ErrNotFound):
		*notes = append(*notes, fmt.Sprintf("feed moved from %s to %s", feed.FeedUrl, movedTo))
		feed.FeedUrl = movedTo
	default:
		return err
	}
	return nil
}

func (u *Updater) entry(feedId int64, item *gofeed.Item, checked time.Time) models.Entry {
	entry := models.Entry{
		FeedId:    feedId,
		EntryId:   entryId(item),
		Link:      item.Link,
		Title:     models.Shorten(lo.CoalesceOrEmpty(u.text(item.Title), noTitle)),
		Author:    models.Shorten(lo.CoalesceOrEmpty(u.text(authorName(item)), noAuthor)),
		Content:   u.content.Sanitize(lo.CoalesceOrEmpty(item.Content, item.Description, noSummary)),
		Published: checked,
		Updated:   checked,
		Status:    models.StatusUnread,
	}
	if item.PublishedParsed != nil {
		entry.Published = item.PublishedParsed.Truncate(time.Second)
	} else if item.UpdatedParsed != nil {
		entry.Published = item.UpdatedParsed.Truncate(time.Second)
	}
	if item.UpdatedParsed != nil {
		entry.Updated = item.UpdatedParsed.Truncate(time.Second)
	}
	return entry
}

// text strips all markup and returns plain text
func (u *Updater) text(s string) string {
	return strings.TrimSpace(html.UnescapeString(u.strict.Sanitize(s)))
}

func authorName(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}

// entryId is the sha1 hex of the item's guid, falling back to its link and
// then its title
func entryId(item *gofeed.Item) string {
	sum := sha1.Sum([]byte(lo.CoalesceOrEmpty(item.GUID, item.Link, item.Title)))
	return hex.EncodeToString(sum[:])
}

// nextCheck schedules the following check check_frequency hours after last.
// Outstanding errors stretch the interval.
func nextCheck(feed models.Feed, last time.Time) time.Time {
	hours := feed.CheckFrequency
	if hours <= 0 {
		hours = models.DefaultCheckHours
	}
	interval := time.Duration(hours) * time.Hour
	if feed.ErrorCount > 0 {
		interval = max(interval, retryDelay(feed.ErrorCount))
	}
	return last.Add(interval)
}

// retryDelay is the backoff interval after errorCount consecutive errors
func retryDelay(errorCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 30 * time.Minute
	b.Multiplier = 2
	b.MaxInterval = 24 * time.Hour
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // Never stop
	b.Reset()

	var d time.Duration
	for range errorCount {
		d = b.NextBackOff()
	}
	return d
}

func fetchErrorNote(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, ErrTooManyRedirects):
		return "too many redirects"
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout error"
	default:
		return fmt.Sprintf("connection error: %v", err)
	}
}

// formatHeaders renders request and response headers for a feed log
func formatHeaders(request, response http.Header) string {
	var b strings.Builder
	writeHeaders(&b, request)
	b.WriteString("--\n")
	writeHeaders(&b, response)
	return b.String()
}

func writeHeaders(b *strings.Builder, h http.Header) {
	keys := lo.Keys(map[string][]string(h))
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s=%q\n", k, strings.Join(h[k], ", "))
	}
}
