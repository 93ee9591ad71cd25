package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	paymentDto "rentflow_backend/internals/features/payments/dto"
	"rentflow_backend/internals/features/payments/poller"
)

func quoteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [house_id]",
		Short: "Show the charges of a house",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := newAPIClient(g).quote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s, house %s (%s), paybill %s\n", q.ApartmentName, q.HouseDoor, q.HouseStatus, q.Paybill)
			for _, l := range q.Charges.Lines {
				fmt.Printf("  %-14s %-20s %12s\n", l.ID, l.Label, l.Amount.StringFixed(2))
			}
			fmt.Printf("  %-35s %12s\n", "total", q.Charges.Total.StringFixed(2))
			return nil
		},
	}
}

type pollFlags struct {
	attempts    int
	interval    time.Duration
	backoff     float64
	maxInterval time.Duration
}

func (f *pollFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.attempts, "attempts", 10, "status reads before giving up")
	cmd.Flags().DurationVar(&f.interval, "interval", 3*time.Second, "wait between status reads")
	cmd.Flags().Float64Var(&f.backoff, "backoff", 1, "multiply the wait after each read; 1 keeps it fixed")
	cmd.Flags().DurationVar(&f.maxInterval, "max-interval", 0, "cap on the wait between reads; 0 means no cap")
}

func (f pollFlags) options() poller.Options {
	return poller.Options{
		MaxAttempts: f.attempts,
		Interval:    f.interval,
		Backoff:     f.backoff,
		MaxInterval: f.maxInterval,
	}
}

func payCmd(g *globals) *cobra.Command {
	var (
		houseID string
		phone   string
		kind    string
		charges []string
		month   int
		year    int
		target  string
		pf      pollFlags
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Send a payment prompt to a phone and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			api := newAPIClient(g)

			q, err := api.quote(ctx, houseID)
			if err != nil {
				return fmt.Errorf("quote: %w", err)
			}
			lines, total, err := selectLines(q.Charges.Lines, charges)
			if err != nil {
				return err
			}

			req := paymentDto.InitiateRequest{
				ApartmentID: q.ApartmentID.String(),
				HouseID:     q.HouseID.String(),
				Phone:       phone,
				Amount:      total,
				Target:      target,
				Charges:     lines,
				Kind:        kind,
			}
			if kind == "monthly" {
				req.Month, req.Year = &month, &year
			}

			res, msg, err := api.push(ctx, req)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (checkout %s, KES %s)\n", msg, res.CustomerMessage, res.CheckoutRequestID, res.Amount.StringFixed(0))
			return watch(ctx, api, []string{res.CheckoutRequestID}, pf)
		},
	}

	now := time.Now()
	cmd.Flags().StringVar(&houseID, "house", "", "house id")
	cmd.Flags().StringVar(&phone, "phone", "", "payer phone, e.g. 0712345678")
	cmd.Flags().StringVar(&kind, "kind", "joining", "joining or monthly")
	cmd.Flags().StringSliceVar(&charges, "charges", nil, "charge ids to pay (default: all quoted)")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "period month for monthly rent")
	cmd.Flags().IntVar(&year, "year", now.Year(), "period year for monthly rent")
	cmd.Flags().StringVar(&target, "target", "", "paybill/till override")
	pf.bind(cmd)
	_ = cmd.MarkFlagRequired("house")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}

func watchCmd(g *globals) *cobra.Command {
	var pf pollFlags
	cmd := &cobra.Command{
		Use:   "watch [checkout_request_id...]",
		Short: "Poll payments until each completes, fails or times out",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd.Context(), newAPIClient(g), args, pf)
		},
	}
	pf.bind(cmd)
	return cmd
}

var errNotCompleted = errors.New("not every payment completed")

// watch runs one poller per id and waits for every continuation or for ^C.
func watch(ctx context.Context, api *apiClient, ids []string, pf pollFlags) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	reg := poller.NewRegistry()
	fetcher := poller.NewHTTPFetcher(api.base, api.token)
	results := make(chan bool, len(ids))
	opts := pf.options()

	started := 0
	for _, id := range ids {
		h := poller.Handlers{
			OnSuccess: func(s poller.Snapshot) {
				fmt.Printf("%s: paid, receipt %s\n", id, orDash(s.Receipt))
				results <- true
			},
			OnFailure: func(desc string, _ poller.Snapshot) {
				fmt.Printf("%s: failed, %s\n", id, desc)
				results <- false
			},
			OnTimeout: func(attempts int) {
				fmt.Printf("%s: no result after %d checks\n", id, attempts)
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if msg, err := api.reportTimeout(rctx, id, attempts); err != nil {
					fmt.Fprintf(os.Stderr, "%s: could not report timeout: %v\n", id, err)
				} else {
					fmt.Printf("%s: %s\n", id, msg)
				}
				results <- false
			},
		}
		if _, err := reg.Start(ctx, id, fetcher, h, opts); err != nil {
			if errors.Is(err, poller.ErrAlreadyPolling) {
				continue
			}
			return err
		}
		started++
	}

	ok := true
	for i := 0; i < started; i++ {
		select {
		case r := <-results:
			ok = ok && r
		case <-ctx.Done():
			fmt.Println("stopped watching; payments keep settling server-side")
			return ctx.Err()
		}
	}
	if !ok {
		return errNotCompleted
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
