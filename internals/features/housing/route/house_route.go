package route

import (
	"github.com/gofiber/fiber/v2"

	houseController "rentflow_backend/internals/features/housing/controller"
)

// HousePublicRoutes mounts the charge quote, readable before login.
func HousePublicRoutes(r fiber.Router, ctl *houseController.HouseController) {
	r.Get("/houses/:house_id/charges", ctl.GetCharges)
}
