// file: internals/features/payments/controller/payment_controller.go
package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rentflow_backend/internals/features/payments/dto"
	"rentflow_backend/internals/features/payments/service"
	helper "rentflow_backend/internals/helpers"
)

type PaymentController struct {
	Initiator *service.Initiator
	Status    *service.StatusReader
	Callbacks *service.CallbackReceiver
	Log       *zap.Logger
}

func NewPaymentController(init *service.Initiator, status *service.StatusReader, callbacks *service.CallbackReceiver, log *zap.Logger) *PaymentController {
	return &PaymentController{Initiator: init, Status: status, Callbacks: callbacks, Log: log.Named("payments")}
}

func (h *PaymentController) fail(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	var ve *helper.ValidationError
	if !errors.As(err, &fe) && !errors.As(err, &ve) {
		h.Log.Error("request failed",
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals("requestid")),
			zap.Error(err))
	}
	return helper.FromFiberError(c, err)
}

// POST /api/u/payments/stk-push
func (h *PaymentController) InitiateSTKPush(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}

	var req dto.InitiateRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	res, err := h.Initiator.Initiate(c.UserContext(), who, req)
	if err != nil {
		return h.fail(c, err)
	}
	return helper.JsonCreated(c, "payment prompt sent to phone", res)
}

// GET /api/u/payments/status/:checkout_request_id
func (h *PaymentController) GetStatus(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	res, err := h.Status.Status(c.UserContext(), who, c.Params("checkout_request_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return helper.JsonOK(c, "", res)
}

// POST /api/u/payments/:checkout_request_id/cancel
func (h *PaymentController) Cancel(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	res, err := h.Status.Cancel(c.UserContext(), who, c.Params("checkout_request_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return helper.JsonUpdated(c, "payment cancelled", res)
}

// POST /api/u/payments/:checkout_request_id/poll-timeout
func (h *PaymentController) ReportPollTimeout(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var body struct {
		Attempts int `json:"attempts"`
	}
	_ = c.BodyParser(&body)

	res, err := h.Status.ReportTimeout(c.UserContext(), who, c.Params("checkout_request_id"), body.Attempts)
	if err != nil {
		return h.fail(c, err)
	}
	msg := "payment still pending, verify manually"
	if res.Status != "pending" {
		msg = "payment already " + res.Status
	}
	return helper.JsonOK(c, msg, res)
}

// GET /api/u/payments/monthly-status?house_id=&month=&year=
func (h *PaymentController) MonthlyStatus(c *fiber.Ctx) error {
	who, err := helper.CurrentIdentity(c)
	if err != nil {
		return helper.FromFiberError(c, err)
	}
	var q dto.MonthlyStatusQuery
	if err := c.QueryParser(&q); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "invalid query")
	}
	res, err := h.Status.MonthlyPaid(c.UserContext(), who, q)
	if err != nil {
		return h.fail(c, err)
	}
	return helper.JsonOK(c, "", res)
}

// POST /api/mpesa/callback
// Always acknowledged so the provider stops redelivering; only an undecodable body is a 400.
func (h *PaymentController) MpesaCallback(c *fiber.Ctx) error {
	headers := make(map[string]string)
	c.Request().Header.VisitAll(func(k, v []byte) {
		headers[string(k)] = string(v)
	})

	outcome, err := h.Callbacks.Handle(c.UserContext(), headers, append([]byte(nil), c.Body()...))
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusBadRequest {
			return c.Status(fiber.StatusBadRequest).JSON(dto.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"})
		}
		h.Log.Error("callback processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.CallbackAck{ResultCode: 1, ResultDesc: "Retry"})
	}

	h.Log.Debug("callback handled", zap.String("outcome", string(outcome)))
	return c.JSON(dto.Accepted)
}
