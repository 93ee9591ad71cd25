package dto

import (
	"time"

	"github.com/shopspring/decimal"

	housingModel "rentflow_backend/internals/features/housing/model"
)

type JoinRequest struct {
	ApartmentID       string                    `json:"apartment_id" validate:"required,uuid"`
	HouseID           string                    `json:"house_id" validate:"required,uuid"`
	Phone             string                    `json:"phone" validate:"required"`
	Charges           []housingModel.ChargeLine `json:"charges" validate:"required,min=1,dive"`
	Total             decimal.Decimal           `json:"total"`
	CheckoutRequestID string                    `json:"checkout_request_id" validate:"required,max=64"`
}

type JoinResponse struct {
	TenantID      string    `json:"tenant_id"`
	HouseID       string    `json:"house_id"`
	HouseDoor     string    `json:"house_door"`
	HouseStatus   string    `json:"house_status"`
	ApartmentID   string    `json:"apartment_id"`
	ApartmentName string    `json:"apartment_name"`
	PaymentID     string    `json:"payment_id"`
	Roles         []string  `json:"roles"`
	StartedAt     time.Time `json:"started_at"`
}
