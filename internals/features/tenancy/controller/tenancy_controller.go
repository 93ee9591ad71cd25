package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rentflow_backend/internals/features/tenancy/dto"
	"rentflow_backend/internals/features/tenancy/service"
	helper "rentflow_backend/internals/helpers"
)

type TenancyController struct {
	Onboarder *service.Onboarder
	Log       *zap.Logger
}

func NewTenancyController(onboarder *service.Onboarder, log *zap.Logger) *TenancyController {
	return &TenancyController{Onboarder: onboarder, Log: log.Named("tenancy")}
}

// POST /api/u/tenancy/join
func (h *TenancyController) Join(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var req dto.JoinRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.Onboarder.Join(c.UserContext(), who, req)
	if err != nil {
		var fe *fiber.Error
		var ve *helper.ValidationError
		if !errors.As(err, &fe) && !errors.As(err, &ve) {
			h.Log.Error("join failed", zap.Any("request_id", c.Locals("requestid")), zap.Error(err))
		}
		return helper.FromFiberError(c, err)
	}
	return helper.JsonCreated(c, "welcome to your new home", res)
}
