package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/service"
)

// Measurements are append-only: no update or delete routes.

func (h *handlers) ingestMeasurement(c *fiber.Ctx) error {
	var req CreateMeasurementRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svcs.Pipeline.Ingest(c.UserContext(), req.toDomain())
	if err != nil {
		return err
	}
	return created(c, res)
}

func (h *handlers) listMeasurements(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "sensorId")
	if err != nil {
		return err
	}
	items, err := h.svcs.Measurements.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countMeasurements(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "sensorId")
	if err != nil {
		return err
	}
	n, err := h.svcs.Measurements.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getMeasurement(c *fiber.Ctx) error {
	m, err := h.svcs.Measurements.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(m)
}

// Daily consumption

func (h *handlers) listDaily(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "date")
	if err != nil {
		return err
	}
	items, err := h.svcs.Daily.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countDaily(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "date")
	if err != nil {
		return err
	}
	n, err := h.svcs.Daily.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getDaily(c *fiber.Ctx) error {
	d, err := h.svcs.Daily.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *handlers) recomputeDaily(c *fiber.Ctx) error {
	var req RecomputeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, alerts, err := h.svcs.Daily.Refresh(c.UserContext(), req.HomeID, req.Date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"rollup": d, "alerts": alerts})
}

func (h *handlers) updateDaily(c *fiber.Ctx) error {
	var p service.DailyPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	d, err := h.svcs.Daily.UpdateThresholds(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(d)
}

func (h *handlers) purgeDaily(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Daily.Purge(c.UserContext(), c.Params("id")))
}

func (h *handlers) systemTrends(c *fiber.Ctx) error {
	days, err := daysParam(c)
	if err != nil {
		return err
	}
	points, err := h.svcs.Dashboard.Trends(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(points)
}

func (h *handlers) systemDistribution(c *fiber.Ctx) error {
	days, err := daysParam(c)
	if err != nil {
		return err
	}
	shares, err := h.svcs.Dashboard.Distribution(c.UserContext(), days)
	if err != nil {
		return err
	}
	return c.JSON(shares)
}

func (h *handlers) systemAlerts(c *fiber.Ctx) error {
	sum, err := h.svcs.Dashboard.Alerts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

// daysParam reads ?days=N; absent means the view's default.
func daysParam(c *fiber.Ctx) (int, error) {
	raw := c.Query("days")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > service.MaxDashboardDays {
		return 0, fmt.Errorf("%w: days must be between 1 and %d", domain.ErrValidation, service.MaxDashboardDays)
	}
	return days, nil
}

// Alerts

func (h *handlers) createAlert(c *fiber.Ctx) error {
	var req CreateAlertRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.svcs.Alerts.Create(c.UserContext(), req.toDomain())
	if err != nil {
		return err
	}
	return created(c, a)
}

func alertQuery(c *fiber.Ctx) (service.AlertQuery, error) {
	q := service.AlertQuery{HomeID: c.Query("homeId"), Type: c.Query("type")}
	f, err := queryFilter(c, "resolved", "unresolvedOnly")
	if err != nil {
		return q, err
	}
	if v, ok := f["resolved"].(bool); ok {
		q.Resolved = &v
	}
	q.UnresolvedOnly, _ = f["unresolvedOnly"].(bool)
	return q, nil
}

func (h *handlers) listAlerts(c *fiber.Ctx) error {
	q, err := alertQuery(c)
	if err != nil {
		return err
	}
	items, err := h.svcs.Alerts.FindAll(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countAlerts(c *fiber.Ctx) error {
	q, err := alertQuery(c)
	if err != nil {
		return err
	}
	n, err := h.svcs.Alerts.Count(c.UserContext(), q)
	return count(c, n, err)
}

func (h *handlers) getAlert(c *fiber.Ctx) error {
	a, err := h.svcs.Alerts.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (h *handlers) updateAlert(c *fiber.Ctx) error {
	var p service.AlertPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	a, err := h.svcs.Alerts.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (h *handlers) resolveAlert(c *fiber.Ctx) error {
	a, err := h.svcs.Alerts.Resolve(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(a)
}

func (h *handlers) deleteAlert(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Alerts.Remove(c.UserContext(), c.Params("id")))
}
