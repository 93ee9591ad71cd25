// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentflow_backend/internals/configs"
	"rentflow_backend/internals/constants"
	houseController "rentflow_backend/internals/features/housing/controller"
	houseRoute "rentflow_backend/internals/features/housing/route"
	"rentflow_backend/internals/features/notifications"
	paymentController "rentflow_backend/internals/features/payments/controller"
	paymentRoute "rentflow_backend/internals/features/payments/route"
	paymentService "rentflow_backend/internals/features/payments/service"
	tenancyController "rentflow_backend/internals/features/tenancy/controller"
	tenancyRoute "rentflow_backend/internals/features/tenancy/route"
	tenancyService "rentflow_backend/internals/features/tenancy/service"
	middlewares "rentflow_backend/internals/middlewares"
	authMiddleware "rentflow_backend/internals/middlewares/auth"
)

var startTime time.Time

// Deps is everything the HTTP layer needs. Built once in main.
type Deps struct {
	DB       *gorm.DB
	Config   configs.Config
	Log      *zap.Logger
	Provider paymentService.Provider
	Sink     notifications.Sink
}

// Services are returned so main can run background work on the same instances.
type Services struct {
	Gaps      *paymentService.GapRecorder
	Settler   *paymentService.Settler
	Initiator *paymentService.Initiator
	Status    *paymentService.StatusReader
	Callbacks *paymentService.CallbackReceiver
	Onboarder *tenancyService.Onboarder
}

func NewServices(d Deps) *Services {
	s := &Services{}
	guard := paymentService.NewMonthlyGuard(d.DB)
	s.Gaps = paymentService.NewGapRecorder(d.DB, d.Log)
	s.Settler = paymentService.NewSettler(d.DB, s.Gaps, d.Sink, d.Log)
	s.Initiator = paymentService.NewInitiator(d.DB, d.Provider, guard, s.Gaps, d.Log)
	s.Status = paymentService.NewStatusReader(d.DB, d.Provider, s.Settler, s.Gaps, guard, d.Config.Mpesa, d.Log)
	s.Callbacks = paymentService.NewCallbackReceiver(d.DB, s.Settler, d.Log)
	s.Onboarder = tenancyService.NewOnboarder(d.DB, s.Gaps, d.Sink, d.Log)
	return s
}

func SetupRoutes(app *fiber.App, d Deps, s *Services) {
	startTime = time.Now()

	BaseRoutes(app, d.DB)

	// ===================== GROUPS =====================

	// PUBLIC: charge quotes and provider callbacks
	d.Log.Info("setting up PUBLIC group")
	public := app.Group("/api")

	// PRIVATE (USER)
	d.Log.Info("setting up PRIVATE group")
	auth := authMiddleware.AuthMiddleware(d.Config.JWTSecret, d.Log)
	private := app.Group("/api/u", auth)

	// ADMIN (landlords, operators)
	d.Log.Info("setting up ADMIN group")
	admin := app.Group("/api/a", auth,
		authMiddleware.OnlyRoles(constants.RoleError("reconciliation", constants.ManagerRoles...), constants.ManagerRoles...))

	// ===================== MOUNT ROUTES =====================

	payments := paymentController.NewPaymentController(s.Initiator, s.Status, s.Callbacks, d.Log)
	gaps := paymentController.NewGapController(s.Gaps)
	houses := houseController.NewHouseController(d.DB)
	tenancy := tenancyController.NewTenancyController(s.Onboarder, d.Log)

	d.Log.Info("mounting housing routes")
	houseRoute.HousePublicRoutes(public, houses)

	d.Log.Info("mounting payment routes")
	paymentRoute.PaymentPublicRoutes(public, payments)
	paymentRoute.PaymentUserRoutes(private, payments, middlewares.PushRateLimiter(5, time.Minute))
	paymentRoute.PaymentAdminRoutes(admin, gaps)

	d.Log.Info("mounting tenancy routes")
	tenancyRoute.TenancyUserRoutes(private, tenancy)
}
