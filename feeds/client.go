package feeds

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"preader/config"
)

// FeedTypes are the content types treated as syndication feeds
var FeedTypes = []string{
	"application/atom+xml",
	"application/rss+xml",
	"text/xml",
}

var ErrTooManyRedirects = errors.New("too many redirects")

type Option func(*options)

type options struct {
	client *http.Client
	now    func() time.Time
}

// WithHTTPClient replaces the HTTP client built from the reader config.
// Its redirect policy is replaced per request.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(cfg config.ReaderConfig, opts []Option) options {
	o := options{
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// redirects records the redirect chain of one request
type redirects struct {
	max        int
	lastStatus int
	count      int
}

func (r *redirects) check(req *http.Request, via []*http.Request) error {
	if len(via) > r.max {
		return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, r.max)
	}
	r.count++
	if req.Response != nil {
		r.lastStatus = req.Response.StatusCode
	}
	return nil
}

// permanent reports whether the final hop was a permanent redirect
func (r *redirects) permanent() bool {
	return r.count > 0 && (r.lastStatus == http.StatusMovedPermanently || r.lastStatus == http.StatusPermanentRedirect)
}

// clientFor returns a copy of base that records redirects into r
func clientFor(base *http.Client, r *redirects) *http.Client {
	client := *base
	client.CheckRedirect = r.check
	return &client
}

// mediaType strips parameters from a Content-Type header value
func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func isFeedType(contentType string) bool {
	mt := mediaType(contentType)
	for _, t := range FeedTypes {
		if mt == t {
			return true
		}
	}
	return false
}
