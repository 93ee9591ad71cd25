package mpesa

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"rentflow_backend/internals/features/payments/mpesa/mpesatest"
)

func TestPasswordAndTimestamp(t *testing.T) {
	ts := Timestamp(time.Date(2025, 3, 1, 7, 4, 5, 0, time.UTC))
	assert.Equal(t, "20250301100405", ts, "EAT is UTC+3")

	raw, err := base64.StdEncoding.DecodeString(Password("174379", "pk", ts))
	require.NoError(t, err)
	assert.Equal(t, "174379pk20250301100405", string(raw))
}

func TestWholeAmount(t *testing.T) {
	cases := map[string]int64{
		"15500":   15500,
		"15500.5": 15501,
		"15500.4": 15500,
		"0.2":     1,
		"0":       1,
	}
	for in, want := range cases {
		assert.Equal(t, want, WholeAmount(decimal.RequireFromString(in)), in)
	}
}

func TestPush_Accepted(t *testing.T) {
	srv := mpesatest.New(t)
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	res, err := c.Push(context.Background(), PushRequest{
		Amount:           decimal.RequireFromString("15499.6"),
		Phone:            "254712345678",
		Target:           "600100",
		AccountReference: "A12-DOOR-3-EXTRA",
		Description:      "Rent payment",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.CheckoutRequestID)
	assert.NotEmpty(t, res.MerchantRequestID)

	calls := srv.Pushes()
	require.Len(t, calls, 1)
	got := calls[0]
	assert.Equal(t, int64(15500), got.Amount)
	assert.Equal(t, "254712345678", got.PartyA)
	assert.Equal(t, "254712345678", got.PhoneNumber)
	assert.Equal(t, "600100", got.PartyB)
	assert.Equal(t, "CustomerPayBillOnline", got.TransactionType)
	assert.Equal(t, Password("174379", "passkey", got.Timestamp), got.Password)
	assert.Len(t, got.AccountReference, 12)
}

func TestPush_Rejected(t *testing.T) {
	srv := mpesatest.New(t)
	srv.Configure(func(s *mpesatest.Server) { s.RejectPush = "400.002.02" })
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	_, err := c.Push(context.Background(), PushRequest{Amount: decimal.NewFromInt(10), Phone: "254712345678", Target: "600100"})

	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "400.002.02", rej.Code)
}

func TestPush_AuthFailure(t *testing.T) {
	srv := mpesatest.New(t)
	srv.Configure(func(s *mpesatest.Server) { s.FailToken = true })
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	_, err := c.Push(context.Background(), PushRequest{Amount: decimal.NewFromInt(10), Phone: "254712345678", Target: "600100"})

	assert.ErrorIs(t, err, ErrAuth)
	assert.Zero(t, srv.PushCalls.Load(), "no push without a token")
}

func TestPush_RetriesOnceAfter401(t *testing.T) {
	srv := mpesatest.New(t)
	srv.Configure(func(s *mpesatest.Server) { s.Unauthorized = 1 })
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	_, err := c.Push(context.Background(), PushRequest{Amount: decimal.NewFromInt(10), Phone: "254712345678", Target: "600100"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.TokenCalls.Load(), "token refetched after 401")
	assert.Equal(t, int32(2), srv.PushCalls.Load())
}

func TestPush_GivesUpAfterSecond401(t *testing.T) {
	srv := mpesatest.New(t)
	srv.Configure(func(s *mpesatest.Server) { s.Unauthorized = 2 })
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	_, err := c.Push(context.Background(), PushRequest{Amount: decimal.NewFromInt(10), Phone: "254712345678", Target: "600100"})
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(2), srv.PushCalls.Load())
}

func TestPush_TransportFailure(t *testing.T) {
	srv := mpesatest.New(t)
	cfg := srv.Config()
	srv.Close()
	c := NewClient(cfg, zaptest.NewLogger(t))

	_, err := c.Push(context.Background(), PushRequest{Amount: decimal.NewFromInt(10), Phone: "254712345678", Target: "600100"})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTokenSource_SingleRefreshUnderConcurrency(t *testing.T) {
	srv := mpesatest.New(t)
	c := NewClient(srv.Config(), zaptest.NewLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := c.Tokens().Token(context.Background())
			assert.NoError(t, err)
			assert.NotEmpty(t, tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), srv.TokenCalls.Load())

	c.Tokens().Invalidate()
	_, err := c.Tokens().Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.TokenCalls.Load())
}

func TestTokenSource_Expiry(t *testing.T) {
	srv := mpesatest.New(t)
	c := NewClient(srv.Config(), zaptest.NewLogger(t))
	now := time.Now()
	c.tokens.now = func() time.Time { return now }

	_, err := c.Tokens().Token(context.Background())
	require.NoError(t, err)

	now = now.Add(3599*time.Second - time.Minute - time.Second)
	_, _ = c.Tokens().Token(context.Background())
	assert.Equal(t, int32(1), srv.TokenCalls.Load(), "still inside validity window")

	now = now.Add(2 * time.Second)
	_, _ = c.Tokens().Token(context.Background())
	assert.Equal(t, int32(2), srv.TokenCalls.Load(), "expired minus skew")
}

func TestQuery(t *testing.T) {
	srv := mpesatest.New(t)
	c := NewClient(srv.Config(), zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := c.Query(ctx, "ws_pending")
	require.NoError(t, err)
	assert.True(t, res.Pending)

	srv.SetQueryResult("ws_ok", 0)
	res, err = c.Query(ctx, "ws_ok")
	require.NoError(t, err)
	assert.False(t, res.Pending)
	assert.IsType(t, Success{}, res.Outcome)

	srv.SetQueryResult("ws_cancel", 1032)
	res, err = c.Query(ctx, "ws_cancel")
	require.NoError(t, err)
	f, ok := res.Outcome.(Failure)
	require.True(t, ok)
	assert.Equal(t, 1032, f.Code)
	assert.Equal(t, "Request cancelled by user", f.Description)
}
