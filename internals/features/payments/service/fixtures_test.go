package service

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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
	helper "rentflow_backend/internals/helpers"
)

type fixture struct {
	db       *gorm.DB
	srv      *mpesatest.Server
	sink     *notifications.MemorySink
	gaps     *GapRecorder
	guard    *MonthlyGuard
	settler  *Settler
	init     *Initiator
	status   *StatusReader
	receiver *CallbackReceiver

	tenant helper.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zaptest.NewLogger(t)
	db := dbtest.New(t)
	srv := mpesatest.New(t)
	client := mpesa.NewClient(srv.Config(), log)

	f := &fixture{db: db, srv: srv, sink: &notifications.MemorySink{}}
	f.gaps = NewGapRecorder(db, log)
	f.guard = NewMonthlyGuard(db)
	f.settler = NewSettler(db, f.gaps, f.sink, log)
	f.init = NewInitiator(db, client, f.guard, f.gaps, log)
	f.status = NewStatusReader(db, client, f.settler, f.gaps, f.guard, srv.Config(), log)
	f.receiver = NewCallbackReceiver(db, f.settler, log)
	f.tenant = helper.Identity{UserID: uuid.New(), Email: "tenant@example.test"}
	return f
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// seedUnit: rent 10000, deposit 5000, water 500 on the house; paybill 600100.
func (f *fixture) seedUnit(t *testing.T, tenant *uuid.UUID) (housingModel.Apartment, housingModel.House) {
	t.Helper()
	apt := housingModel.Apartment{ApartmentName: "Sunrise Court", ApartmentRent: dec(9000), ApartmentPaybill: "600100", ApartmentAccountRef: "SUNRISE"}
	require.NoError(t, f.db.Create(&apt).Error)

	house := housingModel.House{
		HouseApartmentID: apt.ApartmentID,
		HouseDoor:        "B4",
		HouseRent:        decimal.NewNullDecimal(dec(10000)),
		HouseDeposit:     decimal.NewNullDecimal(dec(5000)),
		HouseWater:       decimal.NewNullDecimal(dec(500)),
	}
	if tenant != nil {
		house.HouseStatus = housingModel.HouseStatusOccupied
		house.HouseTenantID = tenant
	}
	require.NoError(t, f.db.Create(&house).Error)
	return apt, house
}

func joiningRequest(apt housingModel.Apartment, house housingModel.House) dto.InitiateRequest {
	return dto.InitiateRequest{
		ApartmentID: apt.ApartmentID.String(),
		HouseID:     house.HouseID.String(),
		Phone:       "0712345678",
		Amount:      dec(15500),
		Charges: []housingModel.ChargeLine{
			{ID: "rent", Label: "Rent", Amount: dec(10000)},
			{ID: "deposit", Label: "Deposit", Amount: dec(5000)},
			{ID: "water", Label: "Water", Amount: dec(500)},
		},
		Kind: "joining",
	}
}

func monthlyRequest(apt housingModel.Apartment, house housingModel.House, month, year int) dto.InitiateRequest {
	return dto.InitiateRequest{
		ApartmentID: apt.ApartmentID.String(),
		HouseID:     house.HouseID.String(),
		Phone:       "+254712345678",
		Amount:      dec(10500),
		Charges: []housingModel.ChargeLine{
			{ID: "rent", Label: "Rent", Amount: dec(10000)},
			{ID: "water", Label: "Water", Amount: dec(500)},
		},
		Kind:  "monthly",
		Month: &month,
		Year:  &year,
	}
}

func (f *fixture) seedCompletedMonthly(t *testing.T, house housingModel.House, month, year int) model.Payment {
	t.Helper()
	receipt := "PRIOR" + uuid.NewString()[:5]
	p := model.Payment{
		PaymentMerchantRequestID: "m-" + uuid.NewString(),
		PaymentCheckoutRequestID: "ws-" + uuid.NewString(),
		PaymentTenantID:          f.tenant.UserID,
		PaymentHouseID:           house.HouseID,
		PaymentApartmentID:       house.HouseApartmentID,
		PaymentAmount:            dec(10500),
		PaymentPhone:             "254712345678",
		PaymentTarget:            "600100",
		PaymentKind:              model.PaymentKindMonthly,
		PaymentPeriodMonth:       &month,
		PaymentPeriodYear:        &year,
		PaymentStatus:            model.PaymentStatusCompleted,
		PaymentReceiptNumber:     &receipt,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) payment(t *testing.T, checkoutID string) model.Payment {
	t.Helper()
	var p model.Payment
	require.NoError(t, f.db.Where("payment_checkout_request_id = ?", checkoutID).Take(&p).Error)
	return p
}

func (f *fixture) gapReasons(t *testing.T) []model.GapReason {
	t.Helper()
	var rows []model.ReconciliationGap
	require.NoError(t, f.db.Order("gap_created_at").Find(&rows).Error)
	out := make([]model.GapReason, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.GapReason)
	}
	return out
}

func statusOf(err error) int {
	var ve *helper.ValidationError
	if errors.As(err, &ve) {
		return fiber.StatusBadRequest
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return 0
}

type testRequest = dto.InitiateRequest

func depositLine() housingModel.ChargeLine {
	return housingModel.ChargeLine{ID: "other-0", Label: "Key deposit", Amount: dec(500)}
}
