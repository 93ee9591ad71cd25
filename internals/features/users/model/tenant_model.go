// file: internals/features/users/model/tenant_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/*
  tenant_apartment_memberships = tenant -> apartment (one row per pair)
  tenant_rented_houses        = tenant -> house, written by onboarding only
*/

type TenantApartmentMembership struct {
	MembershipID          uuid.UUID `gorm:"column:membership_id;type:uuid;primaryKey" json:"membership_id"`
	MembershipUserID      uuid.UUID `gorm:"column:membership_user_id;type:uuid;not null;uniqueIndex:uq_membership_user_apartment,priority:1" json:"membership_user_id"`
	MembershipApartmentID uuid.UUID `gorm:"column:membership_apartment_id;type:uuid;not null;uniqueIndex:uq_membership_user_apartment,priority:2;index" json:"membership_apartment_id"`

	MembershipCreatedAt time.Time `gorm:"column:membership_created_at;autoCreateTime" json:"membership_created_at"`
}

func (TenantApartmentMembership) TableName() string { return "tenant_apartment_memberships" }

func (m *TenantApartmentMembership) BeforeCreate(tx *gorm.DB) error {
	if m.MembershipID == uuid.Nil {
		m.MembershipID = uuid.New()
	}
	return nil
}

type TenantRentedHouse struct {
	RentedID        uuid.UUID `gorm:"column:rented_id;type:uuid;primaryKey" json:"rented_id"`
	RentedUserID    uuid.UUID `gorm:"column:rented_user_id;type:uuid;not null;uniqueIndex:uq_rented_user_house,priority:1" json:"rented_user_id"`
	RentedHouseID   uuid.UUID `gorm:"column:rented_house_id;type:uuid;not null;uniqueIndex:uq_rented_user_house,priority:2;index" json:"rented_house_id"`
	RentedPaymentID uuid.UUID `gorm:"column:rented_payment_id;type:uuid;not null;uniqueIndex:uq_rented_payment" json:"rented_payment_id"`
	RentedStartedAt time.Time `gorm:"column:rented_started_at;not null" json:"rented_started_at"`
}

func (TenantRentedHouse) TableName() string { return "tenant_rented_houses" }

func (r *TenantRentedHouse) BeforeCreate(tx *gorm.DB) error {
	if r.RentedID == uuid.Nil {
		r.RentedID = uuid.New()
	}
	if r.RentedStartedAt.IsZero() {
		r.RentedStartedAt = time.Now()
	}
	return nil
}
