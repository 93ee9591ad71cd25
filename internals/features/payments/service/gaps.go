package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/metrics"
)

// Gap is one reconciliation gap to record.
type Gap struct {
	Reason            model.GapReason
	CheckoutRequestID string
	MerchantRequestID string
	PaymentID         *uuid.UUID
	TenantID          *uuid.UUID
	Detail            string
}

// GapRecorder logs a gap at ERROR and persists it. Persisting is best effort:
// the log line is the record of last resort.
type GapRecorder struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGapRecorder(db *gorm.DB, log *zap.Logger) *GapRecorder {
	return &GapRecorder{db: db, log: log.Named("reconciliation")}
}

func (r *GapRecorder) Record(ctx context.Context, g Gap) {
	metrics.RecordReconciliationGap(string(g.Reason))
	r.log.Error("reconciliation gap",
		zap.String("reason", string(g.Reason)),
		zap.String("checkout_request_id", g.CheckoutRequestID),
		zap.String("merchant_request_id", g.MerchantRequestID),
		zap.String("detail", g.Detail))

	row := model.ReconciliationGap{
		GapReason:    g.Reason,
		GapDetail:    g.Detail,
		GapPaymentID: g.PaymentID,
		GapTenantID:  g.TenantID,
	}
	if g.CheckoutRequestID != "" {
		row.GapCheckoutRequestID = &g.CheckoutRequestID
	}
	if g.MerchantRequestID != "" {
		row.GapMerchantRequestID = &g.MerchantRequestID
	}
	if err := r.db.WithContext(context.WithoutCancel(ctx)).Create(&row).Error; err != nil {
		r.log.Error("reconciliation gap not persisted",
			zap.String("reason", string(g.Reason)),
			zap.String("checkout_request_id", g.CheckoutRequestID),
			zap.Error(err))
	}
}

// GapFilter narrows ListGaps. Zero value lists open gaps, newest first.
type GapFilter struct {
	Reason        model.GapReason
	IncludeClosed bool
	Limit         int
	Offset        int
}

func (r *GapRecorder) List(ctx context.Context, f GapFilter) ([]model.ReconciliationGap, int64, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	q := r.db.WithContext(ctx).Model(&model.ReconciliationGap{})
	if !f.IncludeClosed {
		q = q.Where("gap_resolved_at IS NULL")
	}
	if f.Reason != "" {
		q = q.Where("gap_reason = ?", f.Reason)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count gaps: %w", err)
	}
	rows := []model.ReconciliationGap{}
	if err := q.Order("gap_created_at DESC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list gaps: %w", err)
	}
	return rows, total, nil
}

// Resolve closes a gap once an operator has reconciled it by hand.
func (r *GapRecorder) Resolve(ctx context.Context, id uuid.UUID, note string) (model.ReconciliationGap, error) {
	var g model.ReconciliationGap
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("gap_id = ?", id).Take(&g).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "gap not found")
			}
			return err
		}
		if g.GapResolvedAt != nil {
			return fiber.NewError(fiber.StatusConflict, "gap already resolved")
		}
		now := time.Now()
		detail := g.GapDetail
		if note = strings.TrimSpace(note); note != "" {
			detail = strings.TrimSpace(detail + "\nresolved: " + note)
		}
		if err := tx.Model(&g).Updates(map[string]any{"gap_resolved_at": now, "gap_detail": detail}).Error; err != nil {
			return err
		}
		g.GapResolvedAt = &now
		g.GapDetail = detail
		return nil
	})
	if err != nil {
		return g, err
	}
	r.log.Info("reconciliation gap resolved", zap.String("gap_id", id.String()), zap.String("reason", string(g.GapReason)))
	return g, nil
}
