package service

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	model "rentflow_backend/internals/features/payments/model"
	"rentflow_backend/internals/features/payments/mpesa"
)

// CallbackOutcome tells the controller what happened to one delivery.
type CallbackOutcome string

const (
	CallbackApplied   CallbackOutcome = "applied"
	CallbackDuplicate CallbackOutcome = "duplicate"
	CallbackIgnored   CallbackOutcome = "ignored"
)

type CallbackReceiver struct {
	db      *gorm.DB
	settler *Settler
	log     *zap.Logger
}

func NewCallbackReceiver(db *gorm.DB, settler *Settler, log *zap.Logger) *CallbackReceiver {
	return &CallbackReceiver{db: db, settler: settler, log: log.Named("callback")}
}

// Handle logs the raw delivery, decodes it once and settles the matching payment.
// A malformed body is a 400; an unknown checkout id is acknowledged and ignored.
func (r *CallbackReceiver) Handle(ctx context.Context, headers map[string]string, raw []byte) (CallbackOutcome, error) {
	ctx = context.WithoutCancel(ctx)
	event := r.logEvent(ctx, headers, raw)

	cb, err := mpesa.DecodeCallback(raw)
	if err != nil {
		r.log.Warn("callback rejected", zap.Error(err), zap.ByteString("body", raw))
		r.finish(ctx, event, model.CallbackEventFailed, nil, err)
		return "", fiber.NewError(fiber.StatusBadRequest, "malformed callback")
	}
	if event != nil {
		event.CallbackEventCheckoutRequestID = &cb.CheckoutRequestID
		event.CallbackEventResultCode = &cb.ResultCode
	}

	res, err := r.settler.Apply(ctx, Settlement{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultDesc:        cb.ResultDesc,
		Outcome:           cb.Outcome,
		Via:               model.SettledViaCallback,
	})
	if err != nil {
		r.finish(ctx, event, model.CallbackEventFailed, nil, err)
		return "", err
	}

	switch {
	case !res.Found:
		r.log.Info("callback for unknown checkout id ignored", zap.String("checkout_request_id", cb.CheckoutRequestID))
		r.finish(ctx, event, model.CallbackEventIgnored, nil, nil)
		return CallbackIgnored, nil
	case !res.Applied:
		r.finish(ctx, event, model.CallbackEventDuplicate, &res.Payment, nil)
		return CallbackDuplicate, nil
	default:
		r.finish(ctx, event, model.CallbackEventApplied, &res.Payment, nil)
		return CallbackApplied, nil
	}
}

func (r *CallbackReceiver) logEvent(ctx context.Context, headers map[string]string, raw []byte) *model.MpesaCallbackEvent {
	hdr, _ := sonic.Marshal(headers)
	payload := datatypes.JSON(raw)
	if !sonic.Valid(raw) {
		// keep the bytes as a JSON string so the row is still readable
		quoted, _ := sonic.Marshal(string(raw))
		payload = datatypes.JSON(quoted)
	}
	ev := &model.MpesaCallbackEvent{
		CallbackEventHeaders: datatypes.JSON(hdr),
		CallbackEventPayload: payload,
		CallbackEventStatus:  model.CallbackEventReceived,
	}
	if err := r.db.WithContext(ctx).Create(ev).Error; err != nil {
		r.log.Error("callback event not logged", zap.Error(err))
		return nil
	}
	return ev
}

func (r *CallbackReceiver) finish(ctx context.Context, ev *model.MpesaCallbackEvent, status model.CallbackEventStatus, p *model.Payment, cause error) {
	if ev == nil {
		return
	}
	now := time.Now()
	updates := map[string]any{
		"callback_event_status":              status,
		"callback_event_processed_at":        now,
		"callback_event_checkout_request_id": ev.CallbackEventCheckoutRequestID,
		"callback_event_result_code":         ev.CallbackEventResultCode,
	}
	if p != nil {
		updates["callback_event_payment_id"] = p.PaymentID
	}
	if cause != nil {
		updates["callback_event_error"] = cause.Error()
	}
	if err := r.db.WithContext(ctx).Model(&model.MpesaCallbackEvent{}).
		Where("callback_event_id = ?", ev.CallbackEventID).
		Updates(updates).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		r.log.Warn("callback event not updated", zap.Error(err))
	}
}
