package http

import (
	"github.com/gofiber/fiber/v2"

	"preference_server/pkg/apperr"
	"preference_server/pkg/validation"
)

// bindJSON parses the request body into dst and validates it.
func bindJSON(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.BadRequest("invalid request body").WithError(err)
	}
	return validation.Struct(dst)
}

// bindQuery parses query parameters into dst and validates it.
func bindQuery(c *fiber.Ctx, dst any) error {
	if err := c.QueryParser(dst); err != nil {
		return apperr.BadRequest("invalid query parameters").WithError(err)
	}
	return validation.Struct(dst)
}

// authorizeUser allows admin callers and callers acting on their own id.
func authorizeUser(c *fiber.Ctx, userID string) error {
	if admin, _ := c.Locals("admin").(bool); admin {
		return nil
	}
	if caller, _ := c.Locals("user_id").(string); caller != "" && caller == userID {
		return nil
	}
	return apperr.Forbidden("cannot process data for another user")
}
