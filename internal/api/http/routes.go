package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/ambient-display/internal/display"
	"github.com/i474232898/ambient-display/internal/scheduler"
	"github.com/i474232898/ambient-display/internal/store"
)

var validate = validator.New()

// Trigger starts an out-of-schedule poll of the named feed.
type Trigger interface {
	Trigger(name string) error
}

// Deps are the read-only views the status API serves. Trigger may be nil, in
// which case the refresh endpoint is not registered.
type Deps struct {
	State     *display.State
	Schedules *store.MemoryStore
	Trigger   Trigger
	Now       func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	v1 := app.Group("/api/v1")

	v1.Get("/display", func(c *fiber.Ctx) error {
		return c.JSON(deps.State.Snapshot())
	})

	v1.Get("/feeds", func(c *fiber.Ctx) error {
		schedules := deps.Schedules.Schedules()
		out := make([]feedView, 0, len(schedules))
		for _, s := range schedules {
			out = append(out, newFeedView(s, now()))
		}
		return c.JSON(out)
	})

	v1.Get("/feeds/:name", func(c *fiber.Ctx) error {
		name := c.Params("name")
		s, err := deps.Schedules.Schedule(name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "unknown feed "+name)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read feed schedule")
		}
		return c.JSON(newFeedView(s, now()))
	})

	v1.Get("/feeds/:name/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		attempts, err := deps.Schedules.History(req.Feed, req.Limit)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no poll history for feed "+req.Feed)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read poll history")
		}

		return c.JSON(fiber.Map{
			"feed":     req.Feed,
			"attempts": attempts,
		})
	})

	if deps.Trigger == nil {
		return
	}

	v1.Post("/feeds/:name/refresh", func(c *fiber.Ctx) error {
		name := c.Params("name")
		if err := deps.Trigger.Trigger(name); err != nil {
			if errors.Is(err, scheduler.ErrUnknownJob) {
				return fiber.NewError(fiber.StatusNotFound, "unknown feed "+name)
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to trigger poll")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"feed":   name,
			"status": "queued",
		})
	})
}

// feedView is a schedule plus human-readable ages for the dashboard operator.
type feedView struct {
	store.Schedule
	LastSuccessAgo string `json:"lastSuccessAgo"`
	Every          string `json:"every"`
}

func newFeedView(s store.Schedule, now time.Time) feedView {
	v := feedView{Schedule: s, LastSuccessAgo: "never", Every: "on demand"}
	if !s.LastSuccess.IsZero() {
		v.LastSuccessAgo = humanize.RelTime(s.LastSuccess, now, "ago", "from now")
	}
	if s.Interval > 0 {
		v.Every = s.Interval.String()
	}
	return v
}

// historyQuery holds path and query parameters for the history endpoint.
type historyQuery struct {
	Feed  string `validate:"required"`
	Limit int    `validate:"omitempty,min=1,max=500"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.Feed = c.Params("name")
	limit := c.Query("limit")
	if limit == "" {
		return nil
	}
	n, err := strconv.Atoi(limit)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	h.Limit = n
	return nil
}
