// file: internals/features/payments/model/payment_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	housingModel "rentflow_backend/internals/features/housing/model"
)

/* ===================== Enums (string) ===================== */

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// IsTerminal: completed, failed and cancelled never transition again.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

type PaymentKind string

const (
	PaymentKindJoining PaymentKind = "joining"
	PaymentKindMonthly PaymentKind = "monthly"
)

func (k PaymentKind) Valid() bool { return k == PaymentKindJoining || k == PaymentKindMonthly }

// How a terminal status was learned.
const (
	SettledViaCallback = "callback"
	SettledViaQuery    = "query"
	SettledViaClient   = "client"
)

/* ===================== Model ===================== */

/*
  payments = one row per push-payment attempt
  - (merchant_request_id, checkout_request_id) issued by the provider, unique
  - status moves pending -> {completed, failed, cancelled} through a conditional UPDATE only
  - at most one completed monthly row per (house, tenant, month, year), partial unique index
*/

type Payment struct {
	PaymentID uuid.UUID `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`

	PaymentMerchantRequestID string `gorm:"column:payment_merchant_request_id;size:64;not null;uniqueIndex:uq_payments_merchant_request" json:"payment_merchant_request_id"`
	PaymentCheckoutRequestID string `gorm:"column:payment_checkout_request_id;size:64;not null;uniqueIndex:uq_payments_checkout_request" json:"payment_checkout_request_id"`

	PaymentTenantID    uuid.UUID `gorm:"column:payment_tenant_id;type:uuid;not null;index" json:"payment_tenant_id"`
	PaymentHouseID     uuid.UUID `gorm:"column:payment_house_id;type:uuid;not null;index" json:"payment_house_id"`
	PaymentApartmentID uuid.UUID `gorm:"column:payment_apartment_id;type:uuid;not null" json:"payment_apartment_id"`

	// Echoed request
	PaymentAmount  decimal.Decimal                              `gorm:"column:payment_amount;type:numeric(14,2);not null" json:"payment_amount"`
	PaymentPhone   string                                       `gorm:"column:payment_phone;size:20;not null" json:"payment_phone"`
	PaymentTarget  string                                       `gorm:"column:payment_target;size:20;not null" json:"payment_target"`
	PaymentCharges datatypes.JSONSlice[housingModel.ChargeLine] `gorm:"column:payment_charges;not null" json:"payment_charges"`

	PaymentKind        PaymentKind `gorm:"column:payment_kind;size:16;not null" json:"payment_kind"`
	PaymentPeriodMonth *int        `gorm:"column:payment_period_month;check:chk_payment_period_month,payment_period_month IS NULL OR (payment_period_month BETWEEN 1 AND 12)" json:"payment_period_month,omitempty"`
	PaymentPeriodYear  *int        `gorm:"column:payment_period_year" json:"payment_period_year,omitempty"`

	PaymentStatus PaymentStatus `gorm:"column:payment_status;size:16;not null;default:'pending';index" json:"payment_status"`

	// Provider result (set once, with the terminal transition)
	PaymentReceiptNumber   *string             `gorm:"column:payment_receipt_number;size:32" json:"payment_receipt_number,omitempty"`
	PaymentTransactionDate *time.Time          `gorm:"column:payment_transaction_date" json:"payment_transaction_date,omitempty"`
	PaymentSettledAmount   decimal.NullDecimal `gorm:"column:payment_settled_amount;type:numeric(14,2)" json:"payment_settled_amount"`
	PaymentResultCode      *int                `gorm:"column:payment_result_code" json:"payment_result_code,omitempty"`
	PaymentResultDesc      *string             `gorm:"column:payment_result_desc" json:"payment_result_desc,omitempty"`
	PaymentSettledVia      *string             `gorm:"column:payment_settled_via;size:16" json:"payment_settled_via,omitempty"`
	PaymentSettledAt       *time.Time          `gorm:"column:payment_settled_at" json:"payment_settled_at,omitempty"`

	// Consumed by onboarding (joining only)
	PaymentOnboardedAt *time.Time `gorm:"column:payment_onboarded_at" json:"payment_onboarded_at,omitempty"`
	// Stale-pending flag, set once by the sweeper
	PaymentGapFlaggedAt *time.Time `gorm:"column:payment_gap_flagged_at" json:"-"`

	PaymentCreatedAt time.Time `gorm:"column:payment_created_at;autoCreateTime;index" json:"payment_created_at"`
	PaymentUpdatedAt time.Time `gorm:"column:payment_updated_at;autoUpdateTime" json:"payment_updated_at"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.PaymentID == uuid.Nil {
		p.PaymentID = uuid.New()
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = PaymentStatusPending
	}
	if p.PaymentCharges == nil {
		p.PaymentCharges = datatypes.JSONSlice[housingModel.ChargeLine]{}
	}
	return nil
}

// Lines returns the stored charge lines as a plain slice.
func (p Payment) Lines() []housingModel.ChargeLine {
	return []housingModel.ChargeLine(p.PaymentCharges)
}
