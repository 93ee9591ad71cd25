package service

import (
	"context"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	housingModel "rentflow_backend/internals/features/housing/model"
	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/mpesa/mpesatest"
	helper "rentflow_backend/internals/helpers"
)

func TestInitiate_JoiningNormalizesPhoneAndPersistsPending(t *testing.T) {
	f := newFixture(t)
	apt, house := f.seedUnit(t, nil)

	res, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(apt, house))
	require.NoError(t, err)
	assert.Equal(t, "pending", res.Status)
	assert.NotEmpty(t, res.CheckoutRequestID)

	pushes := f.srv.Pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "254712345678", pushes[0].PhoneNumber)
	assert.Equal(t, "254712345678", pushes[0].PartyA)
	assert.Equal(t, "600100", pushes[0].PartyB)
	assert.Equal(t, int64(15500), pushes[0].Amount)
	assert.Equal(t, "SUNRISE", pushes[0].AccountReference)

	p := f.payment(t, res.CheckoutRequestID)
	assert.Equal(t, model.PaymentStatusPending, p.PaymentStatus)
	assert.Equal(t, model.PaymentKindJoining, p.PaymentKind)
	assert.Equal(t, "254712345678", p.PaymentPhone)
	assert.Equal(t, f.tenant.UserID, p.PaymentTenantID)
	assert.Equal(t, res.MerchantRequestID, p.PaymentMerchantRequestID)
	assert.Len(t, p.Lines(), 3)
	assert.Nil(t, p.PaymentPeriodMonth)
}

func TestInitiate_MonthlyAlreadyPaidConflictsBeforeProvider(t *testing.T) {
	f := newFixture(t)
	apt, house := f.seedUnit(t, &f.tenant.UserID)
	f.seedCompletedMonthly(t, house, 3, 2025)

	_, err := f.init.Initiate(context.Background(), f.tenant, monthlyRequest(apt, house, 3, 2025))

	assert.Equal(t, fiber.StatusConflict, statusOf(err))
	assert.Zero(t, f.srv.TokenCalls.Load())
	assert.Zero(t, f.srv.PushCalls.Load())

	// another month is fine
	_, err = f.init.Initiate(context.Background(), f.tenant, monthlyRequest(apt, house, 4, 2025))
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.srv.PushCalls.Load())
}

func TestInitiate_ValidationFailures(t *testing.T) {
	f := newFixture(t)
	apt, house := f.seedUnit(t, &f.tenant.UserID)

	cases := map[string]struct {
		mutate func(r *testRequest)
		field  string
	}{
		"missing house":    {func(r *testRequest) { r.HouseID = "" }, "house_id"},
		"no charges":       {func(r *testRequest) { r.Charges = nil }, "charges"},
		"bad kind":         {func(r *testRequest) { r.Kind = "weekly" }, "kind"},
		"zero amount":      {func(r *testRequest) { r.Amount = dec(0) }, "amount"},
		"bad phone":        {func(r *testRequest) { r.Phone = "12345" }, "phone"},
		"no period":        {func(r *testRequest) { r.Month = nil }, "month"},
		"month range":      {func(r *testRequest) { m := 13; r.Month = &m }, "month"},
		"deposit on month": {func(r *testRequest) { r.Charges = append(r.Charges, depositLine()) }, "charges"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := monthlyRequest(apt, house, 5, 2025)
			tc.mutate(&req)

			_, err := f.init.Initiate(context.Background(), f.tenant, req)

			var ve *helper.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
	assert.Zero(t, f.srv.PushCalls.Load())
}

func TestInitiate_RequiresIdentity(t *testing.T) {
	f := newFixture(t)
	apt, house := f.seedUnit(t, nil)

	_, err := f.init.Initiate(context.Background(), helper.Identity{}, joiningRequest(apt, house))
	assert.Equal(t, fiber.StatusUnauthorized, statusOf(err))
}

func TestInitiate_JoiningUnitChecks(t *testing.T) {
	t.Run("occupied", func(t *testing.T) {
		f := newFixture(t)
		other := uuid.New()
		apt, house := f.seedUnit(t, &other)

		_, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(apt, house))
		assert.Equal(t, fiber.StatusConflict, statusOf(err))
		assert.Zero(t, f.srv.PushCalls.Load())
	})

	t.Run("charge mismatch", func(t *testing.T) {
		f := newFixture(t)
		apt, house := f.seedUnit(t, nil)
		req := joiningRequest(apt, house)
		req.Charges = req.Charges[:2]
		req.Amount = dec(15000)

		_, err := f.init.Initiate(context.Background(), f.tenant, req)
		assert.Equal(t, fiber.StatusConflict, statusOf(err))
		assert.Zero(t, f.srv.PushCalls.Load())
	})

	t.Run("unknown house", func(t *testing.T) {
		f := newFixture(t)
		apt, house := f.seedUnit(t, nil)
		house.HouseID = uuid.New()

		_, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(apt, house))
		assert.Equal(t, fiber.StatusNotFound, statusOf(err))
	})

	t.Run("house of another apartment", func(t *testing.T) {
		f := newFixture(t)
		_, house := f.seedUnit(t, nil)
		other := housingModel.Apartment{ApartmentName: "Other", ApartmentPaybill: "700200"}
		require.NoError(t, f.db.Create(&other).Error)

		_, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(other, house))
		assert.Equal(t, fiber.StatusConflict, statusOf(err))
	})

	t.Run("wrong target", func(t *testing.T) {
		f := newFixture(t)
		apt, house := f.seedUnit(t, nil)
		req := joiningRequest(apt, house)
		req.Target = "999999"

		_, err := f.init.Initiate(context.Background(), f.tenant, req)
		assert.Equal(t, fiber.StatusBadRequest, statusOf(err))
	})
}

func TestInitiate_MonthlyRequiresCurrentTenant(t *testing.T) {
	f := newFixture(t)
	other := uuid.New()
	apt, house := f.seedUnit(t, &other)

	_, err := f.init.Initiate(context.Background(), f.tenant, monthlyRequest(apt, house, 3, 2025))
	assert.Equal(t, fiber.StatusForbidden, statusOf(err))
}

func TestInitiate_ProviderFailuresCreateNoRow(t *testing.T) {
	cases := map[string]struct {
		setup  func(s *mpesatest.Server)
		status int
		msg    string
	}{
		"auth":     {func(s *mpesatest.Server) { s.FailToken = true }, fiber.StatusServiceUnavailable, MsgProviderAuth},
		"rejected": {func(s *mpesatest.Server) { s.RejectPush = "400.002.02" }, fiber.StatusBadGateway, MsgProviderRejected},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			apt, house := f.seedUnit(t, nil)
			f.srv.Configure(tc.setup)

			_, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(apt, house))

			var fe *fiber.Error
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.status, fe.Code)
			assert.Equal(t, tc.msg, fe.Message)

			var n int64
			require.NoError(t, f.db.Model(&model.Payment{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestInitiate_PersistFailureRecordsGap(t *testing.T) {
	f := newFixture(t)
	apt, house := f.seedUnit(t, nil)

	// occupy the checkout id the fake hands out first
	clash := model.Payment{
		PaymentMerchantRequestID: "other",
		PaymentCheckoutRequestID: "ws_CO_1912201910203639251",
		PaymentTenantID:          uuid.New(),
		PaymentHouseID:           house.HouseID,
		PaymentApartmentID:       apt.ApartmentID,
		PaymentAmount:            dec(1),
		PaymentPhone:             "254700000000",
		PaymentTarget:            "600100",
		PaymentKind:              model.PaymentKindJoining,
	}
	require.NoError(t, f.db.Create(&clash).Error)

	_, err := f.init.Initiate(context.Background(), f.tenant, joiningRequest(apt, house))

	var fe *fiber.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fiber.StatusInternalServerError, fe.Code)
	assert.Equal(t, MsgNotRecorded, fe.Message)
	assert.Equal(t, []model.GapReason{model.GapPersistFailed}, f.gapReasons(t))
}
