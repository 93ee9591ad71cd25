package controller

import (
	"github.com/gofiber/fiber/v2"

	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/service"
	helper "rentflow_backend/internals/helpers"
)

type GapController struct {
	Gaps *service.GapRecorder
}

func NewGapController(gaps *service.GapRecorder) *GapController {
	return &GapController{Gaps: gaps}
}

// GET /api/a/reconciliation-gaps?reason=&all=&page=&per_page=
func (h *GapController) List(c *fiber.Ctx) error {
	p := helper.ParseFiber(c, helper.AdminOpts)
	f := service.GapFilter{
		Reason:        model.GapReason(c.Query("reason")),
		IncludeClosed: c.QueryBool("all", false),
		Limit:         p.Limit(),
		Offset:        p.Offset(),
	}
	rows, total, err := h.Gaps.List(c.UserContext(), f)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonList(c, rows, helper.BuildMeta(total, p))
}

// POST /api/a/reconciliation-gaps/:gap_id/resolve
func (h *GapController) Resolve(c *fiber.Ctx) error {
	id, err := helper.ParseUUIDParam(c, "gap_id")
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var body struct {
		Note string `json:"note"`
	}
	_ = c.BodyParser(&body)

	g, err := h.Gaps.Resolve(c.UserContext(), id, body.Note)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	return helper.JsonUpdated(c, "gap resolved", g)
}
