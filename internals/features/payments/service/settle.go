package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentflow_backend/internals/features/notifications"
	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/mpesa"
	"rentflow_backend/internals/metrics"
)

const periodAlreadyPaid = "period already paid"

// Settlement is one observed provider resolution, from a callback or a status query.
type Settlement struct {
	CheckoutRequestID string
	ResultDesc        string
	Outcome           mpesa.Outcome
	Via               string
}

type SettleResult struct {
	Payment model.Payment
	Found   bool
	// Applied: this call moved the payment out of pending.
	Applied bool
}

// Settler owns the pending -> terminal transition. Every path that learns a provider
// outcome goes through Apply, which writes with WHERE status = 'pending'.
type Settler struct {
	db   *gorm.DB
	gaps *GapRecorder
	sink notifications.Sink
	log  *zap.Logger
	now  func() time.Time
}

func NewSettler(db *gorm.DB, gaps *GapRecorder, sink notifications.Sink, log *zap.Logger) *Settler {
	return &Settler{db: db, gaps: gaps, sink: sink, log: log.Named("settle"), now: time.Now}
}

func (s *Settler) load(ctx context.Context, checkoutID string) (model.Payment, bool, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).Where("payment_checkout_request_id = ?", checkoutID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, false, nil
	}
	if err != nil {
		return p, false, fmt.Errorf("load payment: %w", err)
	}
	return p, true, nil
}

func (s *Settler) Apply(ctx context.Context, in Settlement) (SettleResult, error) {
	p, found, err := s.load(ctx, in.CheckoutRequestID)
	if err != nil || !found {
		return SettleResult{Found: found}, err
	}
	if p.PaymentStatus.IsTerminal() {
		s.redelivered(ctx, p, in)
		return SettleResult{Payment: p, Found: true}, nil
	}

	now := s.now()
	updates := map[string]any{
		"payment_result_desc": in.ResultDesc,
		"payment_settled_via": in.Via,
		"payment_settled_at":  now,
		"payment_updated_at":  now,
	}
	switch o := in.Outcome.(type) {
	case mpesa.Success:
		updates["payment_status"] = model.PaymentStatusCompleted
		updates["payment_result_code"] = 0
		if o.Receipt != "" {
			updates["payment_receipt_number"] = o.Receipt
		}
		if o.TransactionDate != nil {
			updates["payment_transaction_date"] = *o.TransactionDate
		}
		if o.Amount.Valid {
			updates["payment_settled_amount"] = o.Amount.Decimal
		}
	case mpesa.Failure:
		updates["payment_status"] = model.PaymentStatusFailed
		updates["payment_result_code"] = o.Code
		if in.ResultDesc == "" {
			updates["payment_result_desc"] = o.Description
		}
	default:
		return SettleResult{}, fmt.Errorf("settle %s: no outcome", in.CheckoutRequestID)
	}

	res := s.pending(ctx, in.CheckoutRequestID).Updates(updates)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return s.periodCollision(ctx, p, in)
	}
	if res.Error != nil {
		return SettleResult{}, fmt.Errorf("settle %s: %w", in.CheckoutRequestID, res.Error)
	}

	fresh, _, err := s.load(ctx, in.CheckoutRequestID)
	if err != nil {
		return SettleResult{}, err
	}
	if res.RowsAffected == 0 {
		// the other path got there first
		s.redelivered(ctx, fresh, in)
		return SettleResult{Payment: fresh, Found: true}, nil
	}

	s.settled(ctx, fresh)
	return SettleResult{Payment: fresh, Found: true, Applied: true}, nil
}

func (s *Settler) pending(ctx context.Context, checkoutID string) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&model.Payment{}).
		Where("payment_checkout_request_id = ? AND payment_status = ?", checkoutID, model.PaymentStatusPending)
}

// periodCollision: a second monthly success for a paid period. Money was captured
// twice, so the row fails and a gap asks for a refund.
func (s *Settler) periodCollision(ctx context.Context, p model.Payment, in Settlement) (SettleResult, error) {
	now := s.now()
	res := s.pending(ctx, in.CheckoutRequestID).Updates(map[string]any{
		"payment_status":      model.PaymentStatusFailed,
		"payment_result_code": 0,
		"payment_result_desc": periodAlreadyPaid,
		"payment_settled_via": in.Via,
		"payment_settled_at":  now,
		"payment_updated_at":  now,
	})
	if res.Error != nil {
		return SettleResult{}, fmt.Errorf("settle %s as duplicate period: %w", in.CheckoutRequestID, res.Error)
	}

	receipt := ""
	if o, ok := in.Outcome.(mpesa.Success); ok {
		receipt = o.Receipt
	}
	s.gaps.Record(ctx, Gap{
		Reason:            model.GapDuplicatePeriod,
		CheckoutRequestID: p.PaymentCheckoutRequestID,
		MerchantRequestID: p.PaymentMerchantRequestID,
		PaymentID:         &p.PaymentID,
		TenantID:          &p.PaymentTenantID,
		Detail:            fmt.Sprintf("provider captured %s (receipt %s) for an already paid period, refund required", p.PaymentAmount, receipt),
	})

	fresh, _, err := s.load(ctx, in.CheckoutRequestID)
	if err != nil {
		return SettleResult{}, err
	}
	if res.RowsAffected == 0 {
		return SettleResult{Payment: fresh, Found: true}, nil
	}
	s.settled(ctx, fresh)
	return SettleResult{Payment: fresh, Found: true, Applied: true}, nil
}

// redelivered handles a result for an already terminal payment. Status never changes.
// A success arriving for a query-settled payment fills in the receipt.
func (s *Settler) redelivered(ctx context.Context, p model.Payment, in Settlement) {
	success, isSuccess := in.Outcome.(mpesa.Success)

	switch {
	case p.PaymentStatus == model.PaymentStatusCompleted && isSuccess:
		if p.PaymentReceiptNumber == nil && success.Receipt != "" {
			updates := map[string]any{"payment_receipt_number": success.Receipt}
			if success.TransactionDate != nil {
				updates["payment_transaction_date"] = *success.TransactionDate
			}
			if success.Amount.Valid {
				updates["payment_settled_amount"] = success.Amount.Decimal
			}
			if err := s.db.WithContext(ctx).Model(&model.Payment{}).
				Where("payment_id = ? AND payment_status = ? AND payment_receipt_number IS NULL", p.PaymentID, model.PaymentStatusCompleted).
				Updates(updates).Error; err != nil {
				s.log.Warn("receipt backfill failed", zap.String("checkout_request_id", p.PaymentCheckoutRequestID), zap.Error(err))
			}
		}
	case p.PaymentStatus == model.PaymentStatusCompleted && !isSuccess,
		p.PaymentStatus != model.PaymentStatusCompleted && isSuccess && !isCollision(p):
		s.gaps.Record(ctx, Gap{
			Reason:            model.GapOutcomeMismatch,
			CheckoutRequestID: p.PaymentCheckoutRequestID,
			MerchantRequestID: p.PaymentMerchantRequestID,
			PaymentID:         &p.PaymentID,
			TenantID:          &p.PaymentTenantID,
			Detail:            fmt.Sprintf("stored %s, provider reports %s via %s", p.PaymentStatus, describe(in.Outcome), in.Via),
		})
	default:
		s.log.Info("duplicate result ignored",
			zap.String("checkout_request_id", p.PaymentCheckoutRequestID),
			zap.String("status", string(p.PaymentStatus)),
			zap.String("via", in.Via))
	}
}

func isCollision(p model.Payment) bool {
	return p.PaymentResultDesc != nil && *p.PaymentResultDesc == periodAlreadyPaid
}

func describe(o mpesa.Outcome) string {
	switch v := o.(type) {
	case mpesa.Success:
		return "success"
	case mpesa.Failure:
		return fmt.Sprintf("failure %d", v.Code)
	default:
		return "unknown"
	}
}

func (s *Settler) settled(ctx context.Context, p model.Payment) {
	via := ""
	if p.PaymentSettledVia != nil {
		via = *p.PaymentSettledVia
	}
	metrics.RecordPaymentSettled(string(p.PaymentStatus), via)
	s.log.Info("payment settled",
		zap.String("checkout_request_id", p.PaymentCheckoutRequestID),
		zap.String("status", string(p.PaymentStatus)),
		zap.String("via", via))

	msg := notifications.Message{
		UserID: p.PaymentTenantID,
		Event:  "payment." + string(p.PaymentStatus),
		Data: map[string]any{
			"checkout_request_id": p.PaymentCheckoutRequestID,
			"kind":                p.PaymentKind,
			"amount":              p.PaymentAmount.String(),
		},
	}
	switch p.PaymentStatus {
	case model.PaymentStatusCompleted:
		msg.Level = notifications.LevelSuccess
		msg.Text = "Payment received. Thank you."
	case model.PaymentStatusCancelled:
		msg.Level = notifications.LevelInfo
		msg.Text = "Payment cancelled."
	default:
		msg.Level = notifications.LevelError
		msg.Text = "Payment was not completed."
		if p.PaymentResultDesc != nil && *p.PaymentResultDesc == periodAlreadyPaid {
			msg.Text = "This period was already paid. We will refund the duplicate payment."
		}
	}
	notifications.Notify(ctx, s.sink, s.log, msg)
}
