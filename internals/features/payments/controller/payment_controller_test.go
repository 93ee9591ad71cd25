package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"rentflow_backend/internals/databases/dbtest"
	housingModel "rentflow_backend/internals/features/housing/model"
	"rentflow_backend/internals/features/notifications"
	"rentflow_backend/internals/features/payments/dto"
	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/mpesa"
	"rentflow_backend/internals/features/payments/mpesa/mpesatest"
	"rentflow_backend/internals/features/payments/service"
	helper "rentflow_backend/internals/helpers"
)

const userHeader = "X-User-Id"

type paymentApp struct {
	app    *fiber.App
	db     *gorm.DB
	tenant uuid.UUID
	apt    housingModel.Apartment
	house  housingModel.House
}

func newPaymentApp(t *testing.T) *paymentApp {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := dbtest.New(t)
	srv := mpesatest.New(t)
	client := mpesa.NewClient(srv.Config(), log)
	sink := &notifications.MemorySink{}

	gaps := service.NewGapRecorder(db, log)
	guard := service.NewMonthlyGuard(db)
	settler := service.NewSettler(db, gaps, sink, log)
	ctl := NewPaymentController(
		service.NewInitiator(db, client, guard, gaps, log),
		service.NewStatusReader(db, client, settler, gaps, guard, srv.Config(), log),
		service.NewCallbackReceiver(db, settler, log),
		log,
	)

	pa := &paymentApp{db: db, tenant: uuid.New()}
	pa.apt = housingModel.Apartment{ApartmentName: "Sunrise Court", ApartmentRent: decimal.NewFromInt(9000), ApartmentPaybill: "600100"}
	require.NoError(t, db.Create(&pa.apt).Error)
	pa.house = housingModel.House{
		HouseApartmentID: pa.apt.ApartmentID,
		HouseDoor:        "B4",
		HouseStatus:      housingModel.HouseStatusOccupied,
		HouseTenantID:    &pa.tenant,
		HouseRent:        decimal.NewNullDecimal(decimal.NewFromInt(10000)),
		HouseWater:       decimal.NewNullDecimal(decimal.NewFromInt(500)),
	}
	require.NoError(t, db.Create(&pa.house).Error)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get(userHeader); v != "" {
			c.Locals(helper.LocalUserID, v)
		}
		return c.Next()
	})
	app.Post("/mpesa/callback", ctl.MpesaCallback)
	app.Post("/payments/stk-push", ctl.InitiateSTKPush)
	app.Get("/payments/status/:checkout_request_id", ctl.GetStatus)
	pa.app = app
	return pa
}

func (pa *paymentApp) pending(t *testing.T) model.Payment {
	t.Helper()
	p := model.Payment{
		PaymentMerchantRequestID: "m-" + uuid.NewString(),
		PaymentCheckoutRequestID: "ws-" + uuid.NewString(),
		PaymentTenantID:          pa.tenant,
		PaymentHouseID:           pa.house.HouseID,
		PaymentApartmentID:       pa.apt.ApartmentID,
		PaymentAmount:            decimal.NewFromInt(10500),
		PaymentPhone:             "254712345678",
		PaymentTarget:            "600100",
		PaymentKind:              model.PaymentKindMonthly,
		PaymentPeriodMonth:       intPtr(4),
		PaymentPeriodYear:        intPtr(2025),
	}
	require.NoError(t, pa.db.Create(&p).Error)
	return p
}

func intPtr(v int) *int { return &v }

func (pa *paymentApp) do(t *testing.T, method, path, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	res, err := pa.app.Test(req, -1)
	require.NoError(t, err)
	return res
}

func ack(t *testing.T, res *http.Response) dto.CallbackAck {
	t.Helper()
	var out dto.CallbackAck
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func stkCallback(checkoutID string) []byte {
	return []byte(fmt.Sprintf(`{"Body":{"stkCallback":{
		"MerchantRequestID":"m","CheckoutRequestID":%q,"ResultCode":0,
		"ResultDesc":"The service request is processed successfully.",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":10500},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"TransactionDate","Value":20250401101500},
			{"Name":"PhoneNumber","Value":254712345678}]}}}}`, checkoutID))
}

func TestMpesaCallback_Ack(t *testing.T) {
	pa := newPaymentApp(t)
	p := pa.pending(t)

	t.Run("applied", func(t *testing.T) {
		res := pa.do(t, "POST", "/mpesa/callback", "", stkCallback(p.PaymentCheckoutRequestID))
		require.Equal(t, fiber.StatusOK, res.StatusCode)
		assert.Equal(t, dto.Accepted, ack(t, res))

		var got model.Payment
		require.NoError(t, pa.db.Where("payment_id = ?", p.PaymentID).Take(&got).Error)
		assert.Equal(t, model.PaymentStatusCompleted, got.PaymentStatus)
	})

	t.Run("duplicate", func(t *testing.T) {
		res := pa.do(t, "POST", "/mpesa/callback", "", stkCallback(p.PaymentCheckoutRequestID))
		require.Equal(t, fiber.StatusOK, res.StatusCode)
		assert.Equal(t, dto.Accepted, ack(t, res))
	})

	t.Run("unknown checkout id", func(t *testing.T) {
		res := pa.do(t, "POST", "/mpesa/callback", "", stkCallback("ws-unknown"))
		require.Equal(t, fiber.StatusOK, res.StatusCode)
		assert.Equal(t, dto.Accepted, ack(t, res))
	})

	t.Run("malformed", func(t *testing.T) {
		res := pa.do(t, "POST", "/mpesa/callback", "", []byte(`{"Body":`))
		require.Equal(t, fiber.StatusBadRequest, res.StatusCode)
		assert.Equal(t, dto.CallbackAck{ResultCode: 1, ResultDesc: "Rejected"}, ack(t, res))
	})

	t.Run("storage failure asks for redelivery", func(t *testing.T) {
		require.NoError(t, pa.db.Migrator().DropTable(&model.Payment{}))
		res := pa.do(t, "POST", "/mpesa/callback", "", stkCallback("ws-any"))
		require.Equal(t, fiber.StatusInternalServerError, res.StatusCode)
		assert.Equal(t, dto.CallbackAck{ResultCode: 1, ResultDesc: "Retry"}, ack(t, res))
	})
}

func TestPaymentController_StatusCodes(t *testing.T) {
	pa := newPaymentApp(t)
	tenant := pa.tenant.String()

	t.Run("status without identity", func(t *testing.T) {
		res := pa.do(t, "GET", "/payments/status/ws-1", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("status of unknown payment", func(t *testing.T) {
		res := pa.do(t, "GET", "/payments/status/ws-missing", tenant, nil)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
	})

	t.Run("status of someone else's payment", func(t *testing.T) {
		p := pa.pending(t)
		res := pa.do(t, "GET", "/payments/status/"+p.PaymentCheckoutRequestID, uuid.NewString(), nil)
		assert.Equal(t, fiber.StatusNotFound, res.StatusCode)

		res = pa.do(t, "GET", "/payments/status/"+p.PaymentCheckoutRequestID, tenant, nil)
		assert.Equal(t, fiber.StatusOK, res.StatusCode)
	})

	t.Run("push without identity", func(t *testing.T) {
		res := pa.do(t, "POST", "/payments/stk-push", "", dto.InitiateRequest{})
		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	})

	t.Run("push with invalid body", func(t *testing.T) {
		res := pa.do(t, "POST", "/payments/stk-push", tenant, []byte(`{"kind":`))
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)

		res = pa.do(t, "POST", "/payments/stk-push", tenant, dto.InitiateRequest{Kind: "weekly"})
		assert.Equal(t, fiber.StatusBadRequest, res.StatusCode)
	})

	t.Run("push for a month already paid", func(t *testing.T) {
		receipt := "PRIOR00001"
		paid := model.Payment{
			PaymentMerchantRequestID: "m-" + uuid.NewString(),
			PaymentCheckoutRequestID: "ws-" + uuid.NewString(),
			PaymentTenantID:          pa.tenant,
			PaymentHouseID:           pa.house.HouseID,
			PaymentApartmentID:       pa.apt.ApartmentID,
			PaymentAmount:            decimal.NewFromInt(10500),
			PaymentPhone:             "254712345678",
			PaymentTarget:            "600100",
			PaymentKind:              model.PaymentKindMonthly,
			PaymentPeriodMonth:       intPtr(3),
			PaymentPeriodYear:        intPtr(2025),
			PaymentStatus:            model.PaymentStatusCompleted,
			PaymentReceiptNumber:     &receipt,
		}
		require.NoError(t, pa.db.Create(&paid).Error)

		req := dto.InitiateRequest{
			ApartmentID: pa.apt.ApartmentID.String(),
			HouseID:     pa.house.HouseID.String(),
			Phone:       "0712345678",
			Amount:      decimal.NewFromInt(10500),
			Charges: []housingModel.ChargeLine{
				{ID: "rent", Label: "Rent", Amount: decimal.NewFromInt(10000)},
				{ID: "water", Label: "Water", Amount: decimal.NewFromInt(500)},
			},
			Kind:  "monthly",
			Month: intPtr(3),
			Year:  intPtr(2025),
		}
		res := pa.do(t, "POST", "/payments/stk-push", tenant, req)
		assert.Equal(t, fiber.StatusConflict, res.StatusCode)
	})
}
