// file: internals/features/payments/dto/payment_dto.go
package dto

import (
	"time"

	"github.com/shopspring/decimal"

	housingModel "rentflow_backend/internals/features/housing/model"
	model "rentflow_backend/internals/features/payments/model"
)

/* =========================================================
   STK push initiation
========================================================= */

type InitiateRequest struct {
	ApartmentID string                    `json:"apartment_id" validate:"required,uuid"`
	HouseID     string                    `json:"house_id" validate:"required,uuid"`
	Phone       string                    `json:"phone" validate:"required"`
	Amount      decimal.Decimal           `json:"amount"`
	Target      string                    `json:"target" validate:"omitempty,numeric,max=20"`
	Charges     []housingModel.ChargeLine `json:"charges" validate:"required,min=1,dive"`
	Kind        string                    `json:"kind" validate:"required,oneof=joining monthly"`
	Month       *int                      `json:"month" validate:"omitempty,min=1,max=12"`
	Year        *int                      `json:"year" validate:"omitempty,min=2000,max=2100"`
}

type InitiateResponse struct {
	PaymentID         string          `json:"payment_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	CustomerMessage   string          `json:"customer_message,omitempty"`
}

/* =========================================================
   Status read
========================================================= */

type StatusResponse struct {
	PaymentID         string              `json:"payment_id"`
	CheckoutRequestID string              `json:"checkout_request_id"`
	Status            string              `json:"status"`
	Kind              string              `json:"kind"`
	Amount            decimal.Decimal     `json:"amount"`
	ResultDesc        *string             `json:"result_desc,omitempty"`
	Receipt           *string             `json:"receipt,omitempty"`
	SettledAmount     decimal.NullDecimal `json:"settled_amount"`
	TransactionDate   *time.Time          `json:"transaction_date,omitempty"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

func FromPayment(p model.Payment) StatusResponse {
	return StatusResponse{
		PaymentID:         p.PaymentID.String(),
		CheckoutRequestID: p.PaymentCheckoutRequestID,
		Status:            string(p.PaymentStatus),
		Kind:              string(p.PaymentKind),
		Amount:            p.PaymentAmount,
		ResultDesc:        p.PaymentResultDesc,
		Receipt:           p.PaymentReceiptNumber,
		SettledAmount:     p.PaymentSettledAmount,
		TransactionDate:   p.PaymentTransactionDate,
		UpdatedAt:         p.PaymentUpdatedAt,
	}
}

/* =========================================================
   Monthly guard read
========================================================= */

type MonthlyStatusQuery struct {
	HouseID string `query:"house_id" validate:"required,uuid"`
	Month   int    `query:"month" validate:"required,min=1,max=12"`
	Year    int    `query:"year" validate:"required,min=2000,max=2100"`
}

type MonthlyStatusResponse struct {
	HouseID string `json:"house_id"`
	Month   int    `json:"month"`
	Year    int    `json:"year"`
	Paid    bool   `json:"paid"`
}

/* =========================================================
   Callback acknowledgement
========================================================= */

// CallbackAck is the body the provider expects back.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var Accepted = CallbackAck{ResultCode: 0, ResultDesc: "Accepted"}
