// file: internals/features/housing/model/apartment_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ExtraCharge is one labeled fixed charge on top of rent and utilities.
type ExtraCharge struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

/*
  apartments = block/building that owns houses
  - acts as the fallback charge schedule when a house does not override it
  - carries the provider disbursement target (paybill / till)
*/

type Apartment struct {
	ApartmentID   uuid.UUID `gorm:"column:apartment_id;type:uuid;primaryKey" json:"apartment_id"`
	ApartmentName string    `gorm:"column:apartment_name;size:160;not null" json:"apartment_name"`

	// Charge schedule fallback
	ApartmentRent         decimal.Decimal                  `gorm:"column:apartment_rent;type:numeric(14,2);not null;default:0" json:"apartment_rent"`
	ApartmentDeposit      decimal.Decimal                  `gorm:"column:apartment_deposit;type:numeric(14,2);not null;default:0" json:"apartment_deposit"`
	ApartmentWater        decimal.Decimal                  `gorm:"column:apartment_water;type:numeric(14,2);not null;default:0" json:"apartment_water"`
	ApartmentElectricity  decimal.Decimal                  `gorm:"column:apartment_electricity;type:numeric(14,2);not null;default:0" json:"apartment_electricity"`
	ApartmentExtraCharges datatypes.JSONSlice[ExtraCharge] `gorm:"column:apartment_extra_charges;not null" json:"apartment_extra_charges"`

	// Disbursement target
	ApartmentPaybill    string `gorm:"column:apartment_paybill;size:20;not null" json:"apartment_paybill"`
	ApartmentAccountRef string `gorm:"column:apartment_account_ref;size:12" json:"apartment_account_ref"`

	ApartmentCreatedAt time.Time `gorm:"column:apartment_created_at;autoCreateTime" json:"apartment_created_at"`
	ApartmentUpdatedAt time.Time `gorm:"column:apartment_updated_at;autoUpdateTime" json:"apartment_updated_at"`
}

func (Apartment) TableName() string { return "apartments" }

func (a *Apartment) BeforeCreate(tx *gorm.DB) error {
	if a.ApartmentID == uuid.Nil {
		a.ApartmentID = uuid.New()
	}
	if a.ApartmentExtraCharges == nil {
		a.ApartmentExtraCharges = datatypes.JSONSlice[ExtraCharge]{}
	}
	return nil
}
