package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow_backend/internals/features/payments/poller"
)

func TestPollFlags_Options(t *testing.T) {
	t.Run("defaults keep a fixed interval", func(t *testing.T) {
		var pf pollFlags
		cmd := &cobra.Command{Use: "watch"}
		pf.bind(cmd)
		require.NoError(t, cmd.ParseFlags(nil))

		opts := pf.options()
		assert.Equal(t, 10, opts.MaxAttempts)
		assert.Equal(t, 3*time.Second, opts.Interval)
		assert.Equal(t, 1.0, opts.Backoff)
		assert.Zero(t, opts.MaxInterval)

		p := poller.New("ws_CO_1", nil, poller.Handlers{}, opts)
		assert.Equal(t, 3*time.Second, p.Delay(6))
	})

	t.Run("backoff grows to the cap", func(t *testing.T) {
		var pf pollFlags
		cmd := &cobra.Command{Use: "watch"}
		pf.bind(cmd)
		require.NoError(t, cmd.ParseFlags([]string{"--interval=1s", "--backoff=2", "--max-interval=5s", "--attempts=8"}))

		opts := pf.options()
		assert.Equal(t, 8, opts.MaxAttempts)
		assert.Equal(t, 2.0, opts.Backoff)
		assert.Equal(t, 5*time.Second, opts.MaxInterval)

		p := poller.New("ws_CO_1", nil, poller.Handlers{}, opts)
		assert.Equal(t, time.Second, p.Delay(1))
		assert.Equal(t, 2*time.Second, p.Delay(2))
		assert.Equal(t, 4*time.Second, p.Delay(3))
		assert.Equal(t, 5*time.Second, p.Delay(4))
	})
}
