package server

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"preader/db"
	"preader/feeds"
	"preader/models"
	"preader/query"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

type ServerConfig struct {
	// The URL the page fetches its feed list from
	FeedListUrl string

	// Number of layout columns on the reader page
	LayoutCols int

	DB *db.DB

	// Finds the feeds behind submitted URLs
	Discoverer *feeds.Discoverer
}

type addURLRequest struct {
	URL string `json:"url" form:"url"`
}

type subscribeRequest struct {
	Feeds []int64 `json:"feeds" form:"feeds"`
}

type subscription struct {
	Id      int64  `json:"id"`
	FeedUrl string `json:"feedUrl,omitempty"`
	Status  string `json:"status"`
}

type entryStatus struct {
	Id     int64  `json:"id"`
	Status string `json:"status"`
}

// Returns a fiber.App instance serving the reader pages and its JSON API
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New()

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.WithFields(log.Fields{
			"method":  c.Method(),
			"route":   c.Route().Path,
			"status":  c.Response().StatusCode(),
			"latency": time.Since(start),
		}).Info("Request")
		return err
	})

	app.Use(requestid.New(requestid.ConfigDefault))
	app.Use(compress.New())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/", func(c *fiber.Ctx) error {
		subscribed, err := config.DB.SubscribedFeeds(c.UserContext())
		if err != nil {
			return sendError(c, err)
		}
		page, err := indexPage(config.FeedListUrl, config.LayoutCols, subscribed)
		if err != nil {
			return sendError(c, err)
		}
		c.Type("html", "utf-8")
		return c.Send(page)
	})

	app.Get("/f/feeds/", func(c *fiber.Ctx) error {
		subscribed, err := config.DB.SubscribedFeeds(c.UserContext())
		if err != nil {
			return sendError(c, err)
		}
		log.WithFields(log.Fields{
			"count": len(subscribed),
		}).Debug("Feed list")
		return c.JSON(lo.Map(subscribed, func(f models.Feed, _ int) models.SerializedFeed {
			return models.SerializeFeed(f)
		}))
	})

	app.Post("/f/add/url/", func(c *fiber.Ctx) error {
		var req addURLRequest
		if err := c.BodyParser(&req); err != nil || !validURL(req.URL) {
			return c.Status(http.StatusBadRequest).SendString("Please enter a valid URL.")
		}

		found, err := config.Discoverer.Discover(c.UserContext(), req.URL)
		if err != nil {
			return sendError(c, err)
		}
		if len(found) == 0 {
			return c.Status(http.StatusNotFound).SendString("No feed urls found.")
		}
		return c.JSON(found)
	})

	app.Post("/f/subscribe/", func(c *fiber.Ctx) error {
		var req subscribeRequest
		if err := c.BodyParser(&req); err != nil || len(req.Feeds) == 0 {
			return c.Status(http.StatusBadRequest).SendString("No feeds selected.")
		}

		result := []subscription{}
		for _, id := range lo.Uniq(req.Feeds) {
			feed, err := config.DB.FeedByID(c.UserContext(), id)
			if errors.Is(err, db.ErrNotFound) {
				result = append(result, subscription{Id: id, Status: "not found"})
				continue
			}
			if err != nil {
				return sendError(c, err)
			}

			subscribed, err := config.DB.Subscribe(c.UserContext(), id)
			if err != nil {
				return sendError(c, err)
			}
			status := "already subscribed"
			if subscribed {
				status = "subscribed"
			}
			result = append(result, subscription{Id: id, FeedUrl: feed.FeedUrl, Status: status})
		}
		return c.JSON(result)
	})

	app.Get("/f/:feed_id/", func(c *fiber.Ctx) error {
		feedId, err := c.ParamsInt("feed_id")
		if err != nil {
			return c.SendStatus(http.StatusNotFound)
		}
		feed, err := config.DB.FeedByID(c.UserContext(), int64(feedId))
		if err != nil {
			return sendError(c, err)
		}
		if !feed.Subscribed || feed.Disabled {
			return c.SendStatus(http.StatusNotFound)
		}

		filters := []query.FilterStrategy{query.FeedFilter{FeedId: feed.Id}}
		if status := c.Query("status"); status != "" {
			if !models.ValidStatus(status) {
				return c.Status(http.StatusBadRequest).SendString("Unknown entry status.")
			}
			filters = append(filters, query.StatusFilter{Status: status})
		}

		entries, err := config.DB.Entries(c.UserContext(), filters...)
		if err != nil {
			return sendError(c, err)
		}
		fragment, err := entriesFragment(feed, entries)
		if err != nil {
			return sendError(c, err)
		}
		if feed.HasNewEntries {
			if err := config.DB.ClearNewEntries(c.UserContext(), feed.Id); err != nil {
				return sendError(c, err)
			}
		}
		c.Type("html", "utf-8")
		return c.Send(fragment)
	})

	app.Post("/f/:feed_id/:entry_id/read", entryAction(config.DB, models.StatusRead))
	app.Post("/f/:feed_id/:entry_id/clear", entryAction(config.DB, models.StatusUnread))
	app.Post("/f/:feed_id/:entry_id/save", entryAction(config.DB, models.StatusSaved))

	app.Use("/static", filesystem.New(filesystem.Config{
		Browse:     false,
		Root:       http.FS(static),
		PathPrefix: "/static",
	}))

	return app
}

// entryAction sets the status of an entry of a subscribed feed
func entryAction(database *db.DB, status string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		feedId, err := c.ParamsInt("feed_id")
		if err != nil {
			return c.SendStatus(http.StatusNotFound)
		}
		entryId, err := c.ParamsInt("entry_id")
		if err != nil {
			return c.SendStatus(http.StatusNotFound)
		}

		entry, err := database.EntryByID(c.UserContext(), int64(feedId), int64(entryId))
		if err != nil {
			return sendError(c, err)
		}
		feed, err := database.FeedByID(c.UserContext(), entry.FeedId)
		if err != nil {
			return sendError(c, err)
		}
		if !feed.Subscribed {
			return c.SendStatus(http.StatusNotFound)
		}

		if err := database.SetEntryStatus(c.UserContext(), entry.Id, status); err != nil {
			return sendError(c, err)
		}
		return c.JSON(entryStatus{Id: entry.Id, Status: status})
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sendError(c *fiber.Ctx, err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return c.SendStatus(http.StatusNotFound)
	}
	log.WithFields(log.Fields{
		"path":  c.Path(),
		"error": err,
	}).Error("Request failed")
	return c.Status(http.StatusInternalServerError).SendString("Internal server error")
}
