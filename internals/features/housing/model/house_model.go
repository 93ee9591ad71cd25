// file: internals/features/housing/model/house_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type HouseStatus string

const (
	HouseStatusVacant   HouseStatus = "vacant"
	HouseStatusOccupied HouseStatus = "occupied"
)

/*
  houses = leasable unit
  - charge columns are overrides; NULL falls back to the apartment
  - extra charges override only when house_extra_charges_override = true
  - house_tenant_id is set iff house_status = 'occupied' (DB check)
*/

type House struct {
	HouseID          uuid.UUID   `gorm:"column:house_id;type:uuid;primaryKey" json:"house_id"`
	HouseApartmentID uuid.UUID   `gorm:"column:house_apartment_id;type:uuid;not null;index;uniqueIndex:uq_house_apartment_door,priority:1" json:"house_apartment_id"`
	HouseDoor        string      `gorm:"column:house_door;size:40;not null;uniqueIndex:uq_house_apartment_door,priority:2" json:"house_door"`
	HouseStatus      HouseStatus `gorm:"column:house_status;size:16;not null;default:'vacant';check:chk_house_tenant_status,(house_status = 'occupied') = (house_tenant_id IS NOT NULL)" json:"house_status"`
	HouseTenantID    *uuid.UUID  `gorm:"column:house_tenant_id;type:uuid;index" json:"house_tenant_id"`

	// Overrides (NULL = inherit from apartment)
	HouseRent                 decimal.NullDecimal              `gorm:"column:house_rent;type:numeric(14,2)" json:"house_rent"`
	HouseDeposit              decimal.NullDecimal              `gorm:"column:house_deposit;type:numeric(14,2)" json:"house_deposit"`
	HouseWater                decimal.NullDecimal              `gorm:"column:house_water;type:numeric(14,2)" json:"house_water"`
	HouseElectricity          decimal.NullDecimal              `gorm:"column:house_electricity;type:numeric(14,2)" json:"house_electricity"`
	HouseExtraChargesOverride bool                             `gorm:"column:house_extra_charges_override;not null;default:false" json:"house_extra_charges_override"`
	HouseExtraCharges         datatypes.JSONSlice[ExtraCharge] `gorm:"column:house_extra_charges;not null" json:"house_extra_charges"`

	HouseCreatedAt time.Time `gorm:"column:house_created_at;autoCreateTime" json:"house_created_at"`
	HouseUpdatedAt time.Time `gorm:"column:house_updated_at;autoUpdateTime" json:"house_updated_at"`
}

func (House) TableName() string { return "houses" }

func (h *House) BeforeCreate(tx *gorm.DB) error {
	if h.HouseID == uuid.Nil {
		h.HouseID = uuid.New()
	}
	if h.HouseStatus == "" {
		h.HouseStatus = HouseStatusVacant
	}
	if h.HouseExtraCharges == nil {
		h.HouseExtraCharges = datatypes.JSONSlice[ExtraCharge]{}
	}
	return nil
}

func (h House) IsVacant() bool {
	return h.HouseStatus == HouseStatusVacant && h.HouseTenantID == nil
}
