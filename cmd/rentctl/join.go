package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	tenancyDto "rentflow_backend/internals/features/tenancy/dto"
)

func joinCmd(g *globals) *cobra.Command {
	var (
		houseID    string
		phone      string
		checkoutID string
		charges    []string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Move into a house after its joining payment completed",
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

			res, msg, err := call[tenancyDto.JoinResponse](ctx, api, http.MethodPost, "/api/u/tenancy/join", tenancyDto.JoinRequest{
				ApartmentID:       q.ApartmentID.String(),
				HouseID:           q.HouseID.String(),
				Phone:             phone,
				Charges:           lines,
				Total:             total,
				CheckoutRequestID: checkoutID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s: house %s at %s, roles %v\n", msg, res.HouseDoor, res.ApartmentName, res.Roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&houseID, "house", "", "house id")
	cmd.Flags().StringVar(&phone, "phone", "", "tenant phone")
	cmd.Flags().StringVar(&checkoutID, "checkout", "", "checkout request id of the completed joining payment")
	cmd.Flags().StringSliceVar(&charges, "charges", nil, "charge ids paid (default: all quoted)")
	_ = cmd.MarkFlagRequired("house")
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("checkout")
	return cmd
}
