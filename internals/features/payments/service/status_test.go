package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow_backend/internals/configs"
	"rentflow_backend/internals/features/payments/dto"
	model "rentflow_backend/internals/features/payments/model"
	helper "rentflow_backend/internals/helpers"
)

func TestStatus_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)

	_, err := f.status.Status(context.Background(), helper.Identity{UserID: uuid.New()}, res.CheckoutRequestID)
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	got, err := f.status.Status(context.Background(), f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
	assert.Zero(t, f.srv.QueryCalls.Load(), "fresh payments are not queried")
}

func TestStatus_QueriesProviderWhenPendingTooLong(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)
	ctx := context.Background()
	f.status.now = func() time.Time { return time.Now().Add(time.Minute) }

	// provider still processing
	got, err := f.status.Status(ctx, f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, int32(1), f.srv.QueryCalls.Load())

	f.srv.SetQueryResult(res.CheckoutRequestID, 0)
	got, err = f.status.Status(ctx, f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Nil(t, got.Receipt)

	p := f.payment(t, res.CheckoutRequestID)
	require.NotNil(t, p.PaymentSettledVia)
	assert.Equal(t, model.SettledViaQuery, *p.PaymentSettledVia)

	// the late callback fills in the receipt without reapplying the status
	out, err := f.receiver.Handle(ctx, nil, successCallback(res.CheckoutRequestID, "NLJ7RT61SV", 15500))
	require.NoError(t, err)
	assert.Equal(t, CallbackDuplicate, out)

	got, err = f.status.Status(ctx, f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	require.NotNil(t, got.Receipt)
	assert.Equal(t, "NLJ7RT61SV", *got.Receipt)
	assert.Empty(t, f.gapReasons(t))
	assert.Equal(t, int32(2), f.srv.QueryCalls.Load(), "terminal payments are not queried")
}

func TestStatus_QueryFailureOutcome(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)
	f.status.now = func() time.Time { return time.Now().Add(time.Minute) }
	f.srv.SetQueryResult(res.CheckoutRequestID, 1032)

	got, err := f.status.Status(context.Background(), f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	require.NotNil(t, got.ResultDesc)
	assert.Equal(t, "Request cancelled by user", *got.ResultDesc)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)
	ctx := context.Background()

	got, err := f.status.Cancel(ctx, f.tenant, res.CheckoutRequestID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)

	_, err = f.status.Cancel(ctx, f.tenant, res.CheckoutRequestID)
	assert.Equal(t, fiber.StatusConflict, statusOf(err))

	_, err = f.status.Cancel(ctx, helper.Identity{UserID: uuid.New()}, res.CheckoutRequestID)
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))
}

func TestReportTimeout(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)
	ctx := context.Background()

	_, err := f.status.ReportTimeout(ctx, f.tenant, res.CheckoutRequestID, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.GapReason{model.GapPollTimeout}, f.gapReasons(t))
	assert.Equal(t, model.PaymentStatusPending, f.payment(t, res.CheckoutRequestID).PaymentStatus)

	_, err = f.receiver.Handle(ctx, nil, failureCallback(res.CheckoutRequestID, 1, "insufficient funds"))
	require.NoError(t, err)
	_, err = f.status.ReportTimeout(ctx, f.tenant, res.CheckoutRequestID, 3)
	require.NoError(t, err)
	assert.Len(t, f.gapReasons(t), 1, "terminal payments need no manual check")
}

func TestMonthlyPaid(t *testing.T) {
	f := newFixture(t)
	_, house := f.seedUnit(t, &f.tenant.UserID)
	f.seedCompletedMonthly(t, house, 3, 2025)
	ctx := context.Background()

	got, err := f.status.MonthlyPaid(ctx, f.tenant, dto.MonthlyStatusQuery{HouseID: house.HouseID.String(), Month: 3, Year: 2025})
	require.NoError(t, err)
	assert.True(t, got.Paid)

	got, err = f.status.MonthlyPaid(ctx, f.tenant, dto.MonthlyStatusQuery{HouseID: house.HouseID.String(), Month: 4, Year: 2025})
	require.NoError(t, err)
	assert.False(t, got.Paid)

	_, err = f.status.MonthlyPaid(ctx, f.tenant, dto.MonthlyStatusQuery{HouseID: "nope", Month: 4, Year: 2025})
	assert.Equal(t, fiber.StatusBadRequest, statusOf(err))
}

func TestMonthlyGuard_IgnoresPendingAndOtherTenants(t *testing.T) {
	f := newFixture(t)
	_, house := f.seedUnit(t, &f.tenant.UserID)
	prior := f.seedCompletedMonthly(t, house, 3, 2025)
	ctx := context.Background()

	paid, err := f.guard.IsPaid(ctx, house.HouseID, uuid.New(), 3, 2025)
	require.NoError(t, err)
	assert.False(t, paid)

	require.NoError(t, f.db.Model(&model.Payment{}).Where("payment_id = ?", prior.PaymentID).
		Update("payment_status", model.PaymentStatusPending).Error)
	paid, err = f.guard.IsPaid(ctx, house.HouseID, f.tenant.UserID, 3, 2025)
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestSweeper_FlagsStalePendingOnce(t *testing.T) {
	f := newFixture(t)
	res := f.pendingJoining(t)
	ctx := context.Background()

	sw := NewSweeper(f.db, f.gaps, configs.SweeperConfig{Interval: time.Minute, StaleAfter: 15 * time.Minute}, f.settler.log)

	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "fresh payments are left alone")

	sw.now = func() time.Time { return time.Now().Add(time.Hour) }
	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []model.GapReason{model.GapStalePending}, f.gapReasons(t))
	assert.Equal(t, model.PaymentStatusPending, f.payment(t, res.CheckoutRequestID).PaymentStatus)
}
