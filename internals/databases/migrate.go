package database

import (
	"fmt"

	"gorm.io/gorm"

	housingModel "rentflow_backend/internals/features/housing/model"
	paymentModel "rentflow_backend/internals/features/payments/model"
	userModel "rentflow_backend/internals/features/users/model"
)

// Partial unique index: at most one completed monthly payment per (house, tenant, period).
const monthlyCompletedIndex = `CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_monthly_completed
ON payments (payment_house_id, payment_tenant_id, payment_period_month, payment_period_year)
WHERE payment_status = 'completed' AND payment_kind = 'monthly'`

// Migrate is idempotent.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&housingModel.Apartment{},
		&housingModel.House{},
		&userModel.User{},
		&userModel.UserRole{},
		&userModel.TenantApartmentMembership{},
		&userModel.TenantRentedHouse{},
		&paymentModel.Payment{},
		&paymentModel.MpesaCallbackEvent{},
		&paymentModel.ReconciliationGap{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if err := db.Exec(monthlyCompletedIndex).Error; err != nil {
		return fmt.Errorf("create monthly index: %w", err)
	}
	return nil
}
