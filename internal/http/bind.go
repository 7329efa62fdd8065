package http

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/aquatracking/aquatracking/internal/docstore"
	"github.com/aquatracking/aquatracking/internal/domain"
	"github.com/aquatracking/aquatracking/internal/validate"
)

// boolParams are the query parameters compared as booleans.
var boolParams = map[string]bool{"active": true, "resolved": true, "unresolvedOnly": true}

// bind decodes the JSON body into dst and validates it.
func bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return fmt.Errorf("%w: invalid body: %v", domain.ErrValidation, err)
	}
	return validate.Struct(dst)
}

// queryFilter copies the listed query parameters, when present, into an
// equality filter.
func queryFilter(c *fiber.Ctx, keys ...string) (docstore.Filter, error) {
	f := docstore.Filter{}
	for _, k := range keys {
		v := c.Query(k)
		if v == "" {
			continue
		}
		if !boolParams[k] {
			f[k] = v
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false", domain.ErrValidation, k)
		}
		f[k] = b
	}
	return f, nil
}

func count(c *fiber.Ctx, n int64, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}

func created(c *fiber.Ctx, v any) error {
	return c.Status(fiber.StatusCreated).JSON(v)
}

func noContent(c *fiber.Ctx, err error) error {
	if err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
