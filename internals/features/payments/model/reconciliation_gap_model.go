// file: internals/features/payments/model/reconciliation_gap_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GapReason string

const (
	GapPersistFailed   GapReason = "persist_failed"
	GapPollTimeout     GapReason = "poll_timeout"
	GapStalePending    GapReason = "stale_pending"
	GapOutcomeMismatch GapReason = "outcome_mismatch"
	GapDuplicatePeriod GapReason = "duplicate_period"
	// paid joining payment whose house went to someone else
	GapOnboardingConflict GapReason = "onboarding_conflict"
)

/*
  reconciliation_gaps = provider outcome and local record disagree or are unknown
  - written, never auto-resolved; an operator sets gap_resolved_at
*/

type ReconciliationGap struct {
	GapID                uuid.UUID  `gorm:"column:gap_id;type:uuid;primaryKey" json:"gap_id"`
	GapCheckoutRequestID *string    `gorm:"column:gap_checkout_request_id;size:64;index" json:"gap_checkout_request_id"`
	GapMerchantRequestID *string    `gorm:"column:gap_merchant_request_id;size:64" json:"gap_merchant_request_id"`
	GapPaymentID         *uuid.UUID `gorm:"column:gap_payment_id;type:uuid" json:"gap_payment_id"`
	GapTenantID          *uuid.UUID `gorm:"column:gap_tenant_id;type:uuid" json:"gap_tenant_id"`
	GapReason            GapReason  `gorm:"column:gap_reason;size:32;not null;index" json:"gap_reason"`
	GapDetail            string     `gorm:"column:gap_detail;not null;default:''" json:"gap_detail"`

	GapCreatedAt  time.Time  `gorm:"column:gap_created_at;autoCreateTime" json:"gap_created_at"`
	GapResolvedAt *time.Time `gorm:"column:gap_resolved_at" json:"gap_resolved_at"`
}

func (ReconciliationGap) TableName() string { return "reconciliation_gaps" }

func (g *ReconciliationGap) BeforeCreate(tx *gorm.DB) error {
	if g.GapID == uuid.Nil {
		g.GapID = uuid.New()
	}
	return nil
}
