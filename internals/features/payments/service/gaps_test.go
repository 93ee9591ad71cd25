package service

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "rentflow_backend/internals/features/payments/model"
)

func TestGapRecorder_ListAndResolve(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	f.gaps.Record(ctx, Gap{Reason: model.GapPollTimeout, CheckoutRequestID: "ws_CO_1", Detail: "10 attempts"})
	f.gaps.Record(ctx, Gap{Reason: model.GapStalePending, CheckoutRequestID: "ws_CO_2"})

	rows, total, err := f.gaps.List(ctx, GapFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, rows, 2)

	rows, total, err = f.gaps.List(ctx, GapFilter{Reason: model.GapPollTimeout})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.NotNil(t, rows[0].GapCheckoutRequestID)
	assert.Equal(t, "ws_CO_1", *rows[0].GapCheckoutRequestID)

	g, err := f.gaps.Resolve(ctx, rows[0].GapID, "customer confirmed by phone")
	require.NoError(t, err)
	require.NotNil(t, g.GapResolvedAt)
	assert.Contains(t, g.GapDetail, "customer confirmed by phone")

	_, err = f.gaps.Resolve(ctx, rows[0].GapID, "")
	assert.Equal(t, fiber.StatusConflict, statusOf(err))
	_, err = f.gaps.Resolve(ctx, uuid.New(), "")
	assert.Equal(t, fiber.StatusNotFound, statusOf(err))

	_, total, err = f.gaps.List(ctx, GapFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	_, total, err = f.gaps.List(ctx, GapFilter{IncludeClosed: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}
