package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/service"
)

// Homes

func (h *handlers) createHome(c *fiber.Ctx) error {
	var req CreateHomeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	home, err := h.svcs.Homes.Create(c.UserContext(), req.toDomain())
	if err != nil {
		return err
	}
	return created(c, home)
}

func (h *handlers) listHomes(c *fiber.Ctx) error {
	f, err := queryFilter(c, "sectorId", "ownerId", "active")
	if err != nil {
		return err
	}
	items, err := h.svcs.Homes.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countHomes(c *fiber.Ctx) error {
	f, err := queryFilter(c, "sectorId", "ownerId", "active")
	if err != nil {
		return err
	}
	n, err := h.svcs.Homes.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getHome(c *fiber.Ctx) error {
	home, err := h.svcs.Homes.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(home)
}

func (h *handlers) updateHome(c *fiber.Ctx) error {
	var p service.HomePatch
	if err := bind(c, &p); err != nil {
		return err
	}
	home, err := h.svcs.Homes.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(home)
}

func (h *handlers) deleteHome(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Homes.Remove(c.UserContext(), c.Params("id")))
}

// Sectors

func (h *handlers) createSector(c *fiber.Ctx) error {
	var req CreateSectorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sec, err := h.svcs.Sectors.Create(c.UserContext(), &domain.Sector{
		Name:        req.Name,
		AprName:     req.AprName,
		Region:      req.Region,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return created(c, sec)
}

func (h *handlers) listSectors(c *fiber.Ctx) error {
	f, err := queryFilter(c, "region", "aprName")
	if err != nil {
		return err
	}
	items, err := h.svcs.Sectors.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countSectors(c *fiber.Ctx) error {
	f, err := queryFilter(c, "region", "aprName")
	if err != nil {
		return err
	}
	n, err := h.svcs.Sectors.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getSector(c *fiber.Ctx) error {
	sec, err := h.svcs.Sectors.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sec)
}

func (h *handlers) updateSector(c *fiber.Ctx) error {
	var p service.SectorPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	sec, err := h.svcs.Sectors.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(sec)
}

func (h *handlers) deleteSector(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Sectors.Remove(c.UserContext(), c.Params("id")))
}

// Sensors

func (h *handlers) createSensor(c *fiber.Ctx) error {
	var req CreateSensorRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sn, err := h.svcs.Sensors.Create(c.UserContext(), req.toDomain())
	if err != nil {
		return err
	}
	return created(c, sn)
}

func (h *handlers) listSensors(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "type", "active")
	if err != nil {
		return err
	}
	items, err := h.svcs.Sensors.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

func (h *handlers) countSensors(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "type", "active")
	if err != nil {
		return err
	}
	n, err := h.svcs.Sensors.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getSensor(c *fiber.Ctx) error {
	sn, err := h.svcs.Sensors.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(sn)
}

func (h *handlers) updateSensor(c *fiber.Ctx) error {
	var p service.SensorPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	sn, err := h.svcs.Sensors.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(sn)
}

func (h *handlers) deleteSensor(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Sensors.Remove(c.UserContext(), c.Params("id")))
}

// Users

func (h *handlers) createUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	u, err := h.svcs.Users.Create(c.UserContext(), req.toDomain(), req.Password)
	if err != nil {
		return err
	}
	return created(c, newUserResponse(u))
}

func (h *handlers) listUsers(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "role", "active")
	if err != nil {
		return err
	}
	items, err := h.svcs.Users.FindAll(c.UserContext(), f)
	if err != nil {
		return err
	}
	out := make([]UserResponse, 0, len(items))
	for i := range items {
		out = append(out, newUserResponse(&items[i]))
	}
	return c.JSON(out)
}

func (h *handlers) countUsers(c *fiber.Ctx) error {
	f, err := queryFilter(c, "homeId", "role", "active")
	if err != nil {
		return err
	}
	n, err := h.svcs.Users.Count(c.UserContext(), f)
	return count(c, n, err)
}

func (h *handlers) getUser(c *fiber.Ctx) error {
	u, err := h.svcs.Users.FindOne(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(newUserResponse(u))
}

func (h *handlers) updateUser(c *fiber.Ctx) error {
	var p service.UserPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	u, err := h.svcs.Users.Update(c.UserContext(), c.Params("id"), p)
	if err != nil {
		return err
	}
	return c.JSON(newUserResponse(u))
}

func (h *handlers) deleteUser(c *fiber.Ctx) error {
	return noContent(c, h.svcs.Users.Remove(c.UserContext(), c.Params("id")))
}
