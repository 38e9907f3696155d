package httpapi

import (
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/road-watch/internal/watch"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *watch.Service) {
	app.Get("/health", health)

	v1 := app.Group("/api/v1")
	v1.Get("/health", health)

	v1.Get("/cities", func(c *fiber.Ctx) error {
		return c.JSON(service.Cities())
	})

	road := v1.Group("/road")

	road.Get("/conditions", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return err
		}
		report, err := service.RoadConditions(c.UserContext(), q.City)
		if err != nil {
			return err
		}
		return c.JSON(report)
	})

	road.Get("/messages", func(c *fiber.Ctx) error {
		q := messagesQuery{City: c.Query("city"), SituationType: c.Query("situationType")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		msgs, err := service.TrafficMessages(c.UserContext(), q.City, q.SituationType)
		if err != nil {
			return err
		}
		return c.JSON(msgs)
	})

	road.Get("/maintenance", func(c *fiber.Ctx) error {
		var q maintenanceQuery
		if err := q.bind(c); err != nil {
			return err
		}
		tasks, err := service.Maintenance(c.UserContext(), q.City, q.From, q.To, q.Task)
		if err != nil {
			return err
		}
		return c.JSON(tasks)
	})

	road.Get("/camera", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return err
		}
		img, err := service.Camera(c.UserContext(), q.City)
		if err != nil {
			return err
		}
		contentType := img.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		c.Set(fiber.HeaderContentType, contentType)
		if img.URL != "" {
			c.Set("X-Image-Url", img.URL)
		}
		return c.Send(img.Data)
	})

	v1.Get("/weather", func(c *fiber.Ctx) error {
		var q weatherQuery
		if err := q.bind(c); err != nil {
			return err
		}
		series, err := service.Weather(c.UserContext(), q.City, q.kind(), q.From, q.To)
		if err != nil {
			return err
		}
		return c.JSON(series)
	})

	v1.Post("/search", func(c *fiber.Ctx) error {
		sel, err := parseSelection(c)
		if err != nil {
			return err
		}
		snap, err := service.Search(c.UserContext(), sel)
		if err != nil {
			return err
		}
		return c.JSON(snap)
	})

	snapshots := v1.Group("/snapshots")

	snapshots.Get("/latest", func(c *fiber.Ctx) error {
		q, err := parseCityQuery(c)
		if err != nil {
			return err
		}
		snap, err := service.Latest(q.City)
		if err != nil {
			return err
		}
		return c.JSON(snap)
	})

	snapshots.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return err
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snaps, err := service.History(req.City, req.From, req.To)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"city":      req.City,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snaps,
		})
	})

	favourites := v1.Group("/favourites")

	favourites.Get("/", func(c *fiber.Ctx) error {
		favs, err := service.Favourites()
		if err != nil {
			return err
		}
		return c.JSON(favs)
	})

	favourites.Get("/:name", func(c *fiber.Ctx) error {
		name, err := pathParam(c, "name")
		if err != nil {
			return err
		}
		sel, err := service.Favourite(name)
		if err != nil {
			return err
		}
		return c.JSON(sel)
	})

	favourites.Put("/:name", func(c *fiber.Ctx) error {
		name, err := pathParam(c, "name")
		if err != nil {
			return err
		}
		sel, err := parseSelection(c)
		if err != nil {
			return err
		}
		saved, err := service.SaveFavourite(name, sel)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"name": saved, "settings": sel})
	})

	favourites.Delete("/:name", func(c *fiber.Ctx) error {
		name, err := pathParam(c, "name")
		if err != nil {
			return err
		}
		if err := service.DeleteFavourite(name); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	timelines := v1.Group("/timelines")

	timelines.Post("/", func(c *fiber.Ctx) error {
		sel, err := parseSelection(c)
		if err != nil {
			return err
		}
		t, err := service.SaveTimeline(c.UserContext(), sel)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	})

	timelines.Get("/", func(c *fiber.Ctx) error {
		titles, err := service.Timelines()
		if err != nil {
			return err
		}
		return c.JSON(titles)
	})

	// Registered before /:title so "compare" is not taken as a title.
	timelines.Get("/compare", func(c *fiber.Ctx) error {
		q := compareQuery{Left: c.Query("left"), Right: c.Query("right")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		left, right, err := service.CompareTimelines(q.Left, q.Right)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"left": left, "right": right})
	})

	timelines.Get("/:title", func(c *fiber.Ctx) error {
		title, err := pathParam(c, "title")
		if err != nil {
			return err
		}
		t, err := service.Timeline(title)
		if err != nil {
			return err
		}
		return c.JSON(t)
	})
}

func health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "road-watch",
	})
}

// cityQuery holds the query parameter identifying a city.
type cityQuery struct {
	City string `validate:"required"`
}

func parseCityQuery(c *fiber.Ctx) (cityQuery, error) {
	q := cityQuery{City: c.Query("city")}
	if err := validate.Struct(q); err != nil {
		return q, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return q, nil
}

type messagesQuery struct {
	City          string `validate:"required"`
	SituationType string `validate:"omitempty,oneof=TRAFFIC_ANNOUNCEMENT EXEMPTED_TRANSPORT WEIGHT_RESTRICTION ROAD_WORK"`
}

// maintenanceQuery holds the maintenance filter. Zero times mean the default window.
type maintenanceQuery struct {
	City string `validate:"required"`
	From time.Time
	To   time.Time
	Task string `validate:"omitempty,max=64"`
}

func (m *maintenanceQuery) bind(c *fiber.Ctx) error {
	m.City = c.Query("city")
	m.Task = c.Query("task")
	if err := validate.Struct(m); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var err error
	if m.From, err = optionalTime(c, "from"); err != nil {
		return err
	}
	m.To, err = optionalTime(c, "to")
	return err
}

type weatherQuery struct {
	City string `validate:"required"`
	Kind string `validate:"omitempty,oneof=observations daily forecast"`
	From time.Time
	To   time.Time
}

func (w *weatherQuery) bind(c *fiber.Ctx) error {
	w.City = c.Query("city")
	w.Kind = c.Query("kind")
	if err := validate.Struct(w); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	var err error
	if w.From, err = optionalTime(c, "from"); err != nil {
		return err
	}
	w.To, err = optionalTime(c, "to")
	return err
}

// kind defaults to observations when a range is given and to a forecast otherwise.
func (w weatherQuery) kind() watch.WeatherKind {
	if w.Kind != "" {
		return watch.WeatherKind(w.Kind)
	}
	if !w.From.IsZero() || !w.To.IsZero() {
		return watch.WeatherObservations
	}
	return watch.WeatherForecast
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	City string    `validate:"required"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.City = c.Query("city")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	to, err := parseTime(toStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	h.From = from
	h.To = to
	return nil
}

type compareQuery struct {
	Left  string `validate:"required"`
	Right string `validate:"required"`
}

func parseSelection(c *fiber.Ctx) (watch.Selection, error) {
	var sel watch.Selection
	if err := c.BodyParser(&sel); err != nil {
		return sel, fiber.NewError(fiber.StatusBadRequest, "invalid selection body: "+err.Error())
	}
	return sel, nil
}

func pathParam(c *fiber.Ctx, key string) (string, error) {
	v, err := url.PathUnescape(c.Params(key))
	if err != nil || v == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid "+key)
	}
	return v, nil
}

func optionalTime(c *fiber.Ctx, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}, fiber.NewError(fiber.StatusBadRequest, key+": "+err.Error())
	}
	return t, nil
}

// parseTime tries RFC3339, a plain date, or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse("2006-01-02", s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339, YYYY-MM-DD or unix seconds")
}
