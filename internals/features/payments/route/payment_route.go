package route

import (
	"github.com/gofiber/fiber/v2"

	paymentController "rentflow_backend/internals/features/payments/controller"
)

/*
Public (provider) routes. Mount: PaymentPublicRoutes(app.Group("/api"), ctl)
- POST /api/mpesa/callback
*/
func PaymentPublicRoutes(r fiber.Router, ctl *paymentController.PaymentController) {
	r.Post("/mpesa/callback", ctl.MpesaCallback)
}

/*
User routes. Mount: PaymentUserRoutes(app.Group("/api/u", auth), ctl, pushLimiter)
*/
func PaymentUserRoutes(r fiber.Router, ctl *paymentController.PaymentController, pushLimiter fiber.Handler) {
	pay := r.Group("/payments")

	pay.Post("/stk-push", pushLimiter, ctl.InitiateSTKPush)
	pay.Get("/status/:checkout_request_id", ctl.GetStatus)
	pay.Get("/monthly-status", ctl.MonthlyStatus)
	pay.Post("/:checkout_request_id/cancel", ctl.Cancel)
	pay.Post("/:checkout_request_id/poll-timeout", ctl.ReportPollTimeout)
}

/*
Operator routes. Mount: PaymentAdminRoutes(app.Group("/api/a", auth, onlyManagers), gaps)
*/
func PaymentAdminRoutes(r fiber.Router, gaps *paymentController.GapController) {
	g := r.Group("/reconciliation-gaps")

	g.Get("/", gaps.List)
	g.Post("/:gap_id/resolve", gaps.Resolve)
}
