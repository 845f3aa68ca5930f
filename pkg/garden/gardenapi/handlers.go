package gardenapi

import (
	"bufio"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/Abraxas-365/verdant/pkg/errx"
	"github.com/Abraxas-365/verdant/pkg/garden"
	"github.com/Abraxas-365/verdant/pkg/garden/gardensrv"
	"github.com/Abraxas-365/verdant/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// snapshotTimeout bounds how long a snapshot request waits for the first
// projection.
const snapshotTimeout = 10 * time.Second

// Handlers exposes the plant catalog over HTTP.
type Handlers struct {
	svc *gardensrv.Service
}

// NewHandlers creates the HTTP handlers over svc.
func NewHandlers(svc *gardensrv.Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes mounts all catalog routes. Refresh operations go through
// auth; reads do not.
func (h *Handlers) RegisterRoutes(app *fiber.App, auth *TokenMiddleware) {
	api := app.Group("/api/v1")

	api.Get("/plants", h.listPlants)
	api.Get("/plants/watch", h.watchPlants)
	api.Get("/zones/:zone/plants", h.listZonePlants)

	api.Post("/refresh", auth.Authenticate(), h.refreshAll)
	api.Post("/zones/:zone/refresh", auth.Authenticate(), h.refreshZone)
}

// listPlants returns the current sorted projection of the full catalog.
func (h *Handlers) listPlants(c *fiber.Ctx) error {
	proj, err := h.snapshot(c.Context(), func(ctx context.Context) (<-chan garden.Projection, context.CancelFunc) {
		return h.svc.Plants(ctx)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plants": proj})
}

// listZonePlants returns the current sorted projection for one zone.
func (h *Handlers) listZonePlants(c *fiber.Ctx) error {
	zone, err := zoneParam(c)
	if err != nil {
		return respondError(c, err)
	}
	proj, err := h.snapshot(c.Context(), func(ctx context.Context) (<-chan garden.Projection, context.CancelFunc) {
		return h.svc.PlantsInZone(ctx, zone)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"zone": zone, "plants": proj})
}

// watchPlants streams projections as server-sent events until the client
// disconnects. Delivery inherits the pipeline's conflation: a slow client
// only ever receives the newest state.
func (h *Handlers) watchPlants(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		updates, cancel := h.svc.Plants(context.Background())
		defer cancel()

		for proj := range updates {
			payload, err := json.Marshal(proj)
			if err != nil {
				logx.WithError(err).Error("failed to marshal projection for SSE")
				return
			}
			if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				// Client went away; cancel releases the pipeline watch.
				return
			}
		}
	}))
	return nil
}

// refreshAll triggers a full catalog refresh.
func (h *Handlers) refreshAll(c *fiber.Ctx) error {
	if err := h.svc.RefreshAll(c.Context()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "refreshed"})
}

// refreshZone triggers a refresh for one zone.
func (h *Handlers) refreshZone(c *fiber.Ctx) error {
	zone, err := zoneParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.RefreshZone(c.Context(), zone); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "refreshed", "zone": zone})
}

// snapshot subscribes, waits for the first projection and releases the watch.
func (h *Handlers) snapshot(parent context.Context, watch func(context.Context) (<-chan garden.Projection, context.CancelFunc)) (garden.Projection, error) {
	ctx, cancelCtx := context.WithTimeout(parent, snapshotTimeout)
	defer cancelCtx()

	updates, cancel := watch(ctx)
	defer cancel()

	select {
	case proj, ok := <-updates:
		if !ok {
			return nil, errx.Internal("projection stream closed before first value")
		}
		return proj, nil
	case <-ctx.Done():
		return nil, errx.Wrap(ctx.Err(), "timed out waiting for projection", errx.TypeInternal)
	}
}

func zoneParam(c *fiber.Ctx) (garden.Zone, error) {
	n, err := strconv.Atoi(c.Params("zone"))
	if err != nil {
		return 0, errx.Validation("zone must be a number").WithDetail("zone", c.Params("zone"))
	}
	return garden.Zone(n), nil
}

// respondError renders errx errors with their suggested status.
func respondError(c *fiber.Ctx, err error) error {
	var e *errx.Error
	if errx.As(err, &e) {
		return c.Status(e.HTTPStatus).JSON(e.ToHTTPResponse())
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
