package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"rentflow_backend/internals/configs"
	"rentflow_backend/internals/features/payments/dto"
	model "rentflow_backend/internals/features/payments/model"
	helper "rentflow_backend/internals/helpers"
)

// StatusReader serves the status endpoint. A payment still pending after QueryAfter
// is checked with the provider and settled through the same Settler as callbacks.
type StatusReader struct {
	db       *gorm.DB
	provider Provider
	settler  *Settler
	gaps     *GapRecorder
	guard    *MonthlyGuard
	cfg      configs.MpesaConfig
	log      *zap.Logger
	now      func() time.Time
}

func NewStatusReader(db *gorm.DB, provider Provider, settler *Settler, gaps *GapRecorder, guard *MonthlyGuard, cfg configs.MpesaConfig, log *zap.Logger) *StatusReader {
	return &StatusReader{db: db, provider: provider, settler: settler, gaps: gaps, guard: guard, cfg: cfg, log: log.Named("status"), now: time.Now}
}

func (s *StatusReader) owned(ctx context.Context, who helper.Identity, checkoutID string) (model.Payment, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).
		Where("payment_checkout_request_id = ? AND payment_tenant_id = ?", checkoutID, who.UserID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return p, fiber.NewError(fiber.StatusNotFound, "payment not found")
	}
	if err != nil {
		return p, fmt.Errorf("load payment: %w", err)
	}
	return p, nil
}

func (s *StatusReader) Status(ctx context.Context, who helper.Identity, checkoutID string) (dto.StatusResponse, error) {
	p, err := s.owned(ctx, who, checkoutID)
	if err != nil {
		return dto.StatusResponse{}, err
	}

	if p.PaymentStatus == model.PaymentStatusPending && s.provider != nil &&
		s.now().Sub(p.PaymentCreatedAt) >= s.cfg.QueryAfter {
		if settled, ok := s.askProvider(ctx, p); ok {
			p = settled
		}
	}
	return dto.FromPayment(p), nil
}

// askProvider never fails the read; provider trouble just leaves the row pending.
func (s *StatusReader) askProvider(ctx context.Context, p model.Payment) (model.Payment, bool) {
	qr, err := s.provider.Query(ctx, p.PaymentCheckoutRequestID)
	if err != nil {
		s.log.Warn("status query failed", zap.String("checkout_request_id", p.PaymentCheckoutRequestID), zap.Error(err))
		return p, false
	}
	if qr.Pending || qr.Outcome == nil {
		return p, false
	}

	res, err := s.settler.Apply(ctx, Settlement{
		CheckoutRequestID: p.PaymentCheckoutRequestID,
		ResultDesc:        qr.ResultDesc,
		Outcome:           qr.Outcome,
		Via:               model.SettledViaQuery,
	})
	if err != nil {
		s.log.Warn("status query not applied", zap.String("checkout_request_id", p.PaymentCheckoutRequestID), zap.Error(err))
		return p, false
	}
	return res.Payment, res.Found
}

// Cancel abandons a pending payment on the caller's request.
func (s *StatusReader) Cancel(ctx context.Context, who helper.Identity, checkoutID string) (dto.StatusResponse, error) {
	p, err := s.owned(ctx, who, checkoutID)
	if err != nil {
		return dto.StatusResponse{}, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&model.Payment{}).
		Where("payment_id = ? AND payment_status = ?", p.PaymentID, model.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status":      model.PaymentStatusCancelled,
			"payment_result_desc": "cancelled by payer",
			"payment_settled_via": model.SettledViaClient,
			"payment_settled_at":  now,
			"payment_updated_at":  now,
		})
	if res.Error != nil {
		return dto.StatusResponse{}, fmt.Errorf("cancel payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return dto.StatusResponse{}, fiber.NewError(fiber.StatusConflict, "payment is already "+string(p.PaymentStatus))
	}

	fresh, err := s.owned(ctx, who, checkoutID)
	if err != nil {
		return dto.StatusResponse{}, err
	}
	s.settler.settled(ctx, fresh)
	return dto.FromPayment(fresh), nil
}

// ReportTimeout records that the caller's poller gave up while the payment was pending.
// The payment stays pending; the gap asks for a manual check.
func (s *StatusReader) ReportTimeout(ctx context.Context, who helper.Identity, checkoutID string, attempts int) (dto.StatusResponse, error) {
	p, err := s.owned(ctx, who, checkoutID)
	if err != nil {
		return dto.StatusResponse{}, err
	}
	if p.PaymentStatus == model.PaymentStatusPending {
		s.gaps.Record(ctx, Gap{
			Reason:            model.GapPollTimeout,
			CheckoutRequestID: p.PaymentCheckoutRequestID,
			MerchantRequestID: p.PaymentMerchantRequestID,
			PaymentID:         &p.PaymentID,
			TenantID:          &p.PaymentTenantID,
			Detail:            fmt.Sprintf("client stopped polling after %d attempts while pending", attempts),
		})
	}
	return dto.FromPayment(p), nil
}

// MonthlyPaid is the read side of the monthly guard.
func (s *StatusReader) MonthlyPaid(ctx context.Context, who helper.Identity, q dto.MonthlyStatusQuery) (dto.MonthlyStatusResponse, error) {
	if err := helper.ValidateStruct(q); err != nil {
		return dto.MonthlyStatusResponse{}, err
	}
	houseID := uuid.MustParse(q.HouseID)
	paid, err := s.guard.IsPaid(ctx, houseID, who.UserID, q.Month, q.Year)
	if err != nil {
		return dto.MonthlyStatusResponse{}, err
	}
	return dto.MonthlyStatusResponse{HouseID: q.HouseID, Month: q.Month, Year: q.Year, Paid: paid}, nil
}
