package route

import (
	"github.com/gofiber/fiber/v2"

	tenancyController "rentflow_backend/internals/features/tenancy/controller"
)

// TenancyUserRoutes mounts under the authenticated /api/u group.
func TenancyUserRoutes(r fiber.Router, ctl *tenancyController.TenancyController) {
	r.Group("/tenancy").Post("/join", ctl.Join)
}
