package auth

import (
	"github.com/gofiber/fiber/v2"

	helper "rentflow_backend/internals/helpers"
)

// OnlyRoles lets the request through when the caller holds any of roles.
func OnlyRoles(customMessage string, roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		who, err := helper.CurrentIdentity(c)
		if err != nil {
			return helper.FromFiberError(c, err)
		}
		for _, allowed := range roles {
			if who.HasRole(allowed) {
				return c.Next()
			}
		}
		if customMessage == "" {
			customMessage = "forbidden: you are not authorized to access this resource"
		}
		return helper.JsonError(c, fiber.StatusForbidden, customMessage)
	}
}
