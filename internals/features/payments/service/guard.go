package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	model "rentflow_backend/internals/features/payments/model"
)

// MonthlyGuard answers whether a period is already paid. The partial unique index
// uq_payments_monthly_completed enforces the same rule at settlement.
type MonthlyGuard struct {
	db *gorm.DB
}

func NewMonthlyGuard(db *gorm.DB) *MonthlyGuard { return &MonthlyGuard{db: db} }

func (g *MonthlyGuard) IsPaid(ctx context.Context, houseID, tenantID uuid.UUID, month, year int) (bool, error) {
	var n int64
	err := g.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_house_id = ? AND payment_tenant_id = ?", houseID, tenantID).
		Where("payment_kind = ? AND payment_status = ?", model.PaymentKindMonthly, model.PaymentStatusCompleted).
		Where("payment_period_month = ? AND payment_period_year = ?", month, year).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("monthly guard: %w", err)
	}
	return n > 0, nil
}
