package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentflow_backend/internals/configs"
	model "rentflow_backend/internals/features/payments/model"
)

const sweepBatch = 100

// Sweeper flags payments stuck in pending as stale_pending gaps, once each.
// It never changes a payment's status: only the provider's answer may do that.
type Sweeper struct {
	db   *gorm.DB
	gaps *GapRecorder
	cfg  configs.SweeperConfig
	log  *zap.Logger
	now  func() time.Time
}

func NewSweeper(db *gorm.DB, gaps *GapRecorder, cfg configs.SweeperConfig, log *zap.Logger) *Sweeper {
	return &Sweeper{db: db, gaps: gaps, cfg: cfg, log: log.Named("sweeper"), now: time.Now}
}

// Start runs the sweep every Interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.cfg.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.SweepOnce(ctx)
				if err != nil {
					s.log.Error("sweep failed", zap.Error(err))
				} else if n > 0 {
					s.log.Info("stale pending payments flagged", zap.Int("count", n))
				}
			}
		}
	}()
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)

	var stale []model.Payment
	if err := s.db.WithContext(ctx).
		Where("payment_status = ? AND payment_created_at < ? AND payment_gap_flagged_at IS NULL", model.PaymentStatusPending, cutoff).
		Order("payment_created_at ASC").
		Limit(sweepBatch).
		Find(&stale).Error; err != nil {
		return 0, fmt.Errorf("find stale payments: %w", err)
	}

	flagged := 0
	for _, p := range stale {
		res := s.db.WithContext(ctx).Model(&model.Payment{}).
			Where("payment_id = ? AND payment_status = ? AND payment_gap_flagged_at IS NULL", p.PaymentID, model.PaymentStatusPending).
			UpdateColumn("payment_gap_flagged_at", s.now())
		if res.Error != nil {
			return flagged, fmt.Errorf("flag payment %s: %w", p.PaymentCheckoutRequestID, res.Error)
		}
		if res.RowsAffected == 0 {
			continue
		}
		flagged++
		s.gaps.Record(ctx, Gap{
			Reason:            model.GapStalePending,
			CheckoutRequestID: p.PaymentCheckoutRequestID,
			MerchantRequestID: p.PaymentMerchantRequestID,
			PaymentID:         &p.PaymentID,
			TenantID:          &p.PaymentTenantID,
			Detail:            fmt.Sprintf("pending since %s, no callback or query result, verify manually", p.PaymentCreatedAt.Format(time.RFC3339)),
		})
	}
	return flagged, nil
}
