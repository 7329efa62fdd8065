package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog/log"

	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/metrics"
	"github.com/aquatracking/aquatracking/internal/service"
)

// NewApp builds the fiber application with error mapping, request logging
// and every route registered.
func NewApp(svcs *service.Services, m *metrics.Metrics) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "aquatracking",
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(recover.New(), requestid.New(), requestLogger(m))
	Register(app, svcs, m)
	return app
}

func Register(app *fiber.App, svcs *service.Services, m *metrics.Metrics) {
	h := &handlers{svcs: svcs}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	homes := app.Group("/homes")
	homes.Post("/", h.createHome)
	homes.Get("/", h.listHomes)
	homes.Get("/count", h.countHomes)
	homes.Get("/:id", h.getHome)
	homes.Patch("/:id", h.updateHome)
	homes.Delete("/:id", h.deleteHome)

	sectors := app.Group("/sectors")
	sectors.Post("/", h.createSector)
	sectors.Get("/", h.listSectors)
	sectors.Get("/count", h.countSectors)
	sectors.Get("/:id", h.getSector)
	sectors.Patch("/:id", h.updateSector)
	sectors.Delete("/:id", h.deleteSector)

	sensors := app.Group("/sensors")
	sensors.Post("/", h.createSensor)
	sensors.Get("/", h.listSensors)
	sensors.Get("/count", h.countSensors)
	sensors.Get("/:id", h.getSensor)
	sensors.Patch("/:id", h.updateSensor)
	sensors.Delete("/:id", h.deleteSensor)

	users := app.Group("/users")
	users.Post("/", h.createUser)
	users.Get("/", h.listUsers)
	users.Get("/count", h.countUsers)
	users.Get("/:id", h.getUser)
	users.Patch("/:id", h.updateUser)
	users.Delete("/:id", h.deleteUser)

	measurements := app.Group("/measurements")
	measurements.Post("/", h.ingestMeasurement)
	measurements.Get("/", h.listMeasurements)
	measurements.Get("/count", h.countMeasurements)
	measurements.Get("/:id", h.getMeasurement)

	daily := app.Group("/daily-consumption")
	daily.Get("/system/trends", h.systemTrends)
	daily.Get("/system/distribution", h.systemDistribution)
	daily.Get("/system/alerts", h.systemAlerts)
	daily.Post("/recompute", h.recomputeDaily)
	daily.Get("/", h.listDaily)
	daily.Get("/count", h.countDaily)
	daily.Get("/:id", h.getDaily)
	daily.Patch("/:id", h.updateDaily)
	daily.Delete("/:id", h.purgeDaily)

	alerts := app.Group("/alerts")
	alerts.Post("/", h.createAlert)
	alerts.Get("/", h.listAlerts)
	alerts.Get("/count", h.countAlerts)
	alerts.Get("/:id", h.getAlert)
	alerts.Patch("/:id/resolve", h.resolveAlert)
	alerts.Patch("/:id", h.updateAlert)
	alerts.Delete("/:id", h.deleteAlert)
}

type handlers struct {
	svcs *service.Services
}

// ErrorHandler maps domain errors onto HTTP statuses. Anything it does not
// recognise is logged and reported as a 500 without details.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, msg := fiber.StatusInternalServerError, "internal server error"
	var fe *fiber.Error
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status, msg = fiber.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrConflict):
		status, msg = fiber.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrValidation):
		status, msg = fiber.StatusBadRequest, err.Error()
	case errors.As(err, &fe):
		status, msg = fe.Code, fe.Message
	default:
		log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// requestLogger logs every request and counts it by route. Errors are
// rendered here so the logged status is the one the client sees.
func requestLogger(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		status := c.Response().StatusCode()
		m.HTTPRequest(c.Route().Path, strconv.Itoa(status))

		rid, _ := c.Locals("requestid").(string)
		evt := log.Info()
		if status >= fiber.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("request_id", rid).
			Msg("request")
		return nil
	}
}
