package model

import "github.com/shopspring/decimal"

// Well-known charge line ids. Extra charges use "other-{index}".
const (
	ChargeRent        = "rent"
	ChargeDeposit     = "deposit"
	ChargeWater       = "water"
	ChargeElectricity = "electricity"
	ChargeOtherPrefix = "other-"
)

// ChargeLine is one selectable line of a quote, also stored verbatim on a payment.
type ChargeLine struct {
	ID     string          `json:"id" validate:"required"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}
