// file: internals/features/payments/model/mpesa_callback_event_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CallbackEventStatus string

const (
	CallbackEventReceived  CallbackEventStatus = "received"
	CallbackEventApplied   CallbackEventStatus = "applied"
	CallbackEventDuplicate CallbackEventStatus = "duplicate"
	CallbackEventIgnored   CallbackEventStatus = "ignored"
	CallbackEventFailed    CallbackEventStatus = "failed"
)

/*
  mpesa_callback_events = raw log of every callback delivery
  - one row per delivery, redeliveries included
  - keeps headers + payload for replay / manual reconciliation
*/

type MpesaCallbackEvent struct {
	CallbackEventID uuid.UUID `gorm:"column:callback_event_id;type:uuid;primaryKey" json:"callback_event_id"`

	CallbackEventPaymentID         *uuid.UUID `gorm:"column:callback_event_payment_id;type:uuid" json:"callback_event_payment_id"`
	CallbackEventCheckoutRequestID *string    `gorm:"column:callback_event_checkout_request_id;size:64;index" json:"callback_event_checkout_request_id"`
	CallbackEventResultCode        *int       `gorm:"column:callback_event_result_code" json:"callback_event_result_code"`

	// Raw data
	CallbackEventHeaders datatypes.JSON `gorm:"column:callback_event_headers;not null" json:"callback_event_headers"`
	CallbackEventPayload datatypes.JSON `gorm:"column:callback_event_payload;not null" json:"callback_event_payload"`

	CallbackEventStatus CallbackEventStatus `gorm:"column:callback_event_status;size:16;not null;default:'received'" json:"callback_event_status"`
	CallbackEventError  *string             `gorm:"column:callback_event_error" json:"callback_event_error"`

	CallbackEventReceivedAt  time.Time  `gorm:"column:callback_event_received_at;not null" json:"callback_event_received_at"`
	CallbackEventProcessedAt *time.Time `gorm:"column:callback_event_processed_at" json:"callback_event_processed_at"`
}

func (MpesaCallbackEvent) TableName() string { return "mpesa_callback_events" }

func (e *MpesaCallbackEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CallbackEventID == uuid.Nil {
		e.CallbackEventID = uuid.New()
	}
	if e.CallbackEventReceivedAt.IsZero() {
		e.CallbackEventReceivedAt = time.Now()
	}
	if e.CallbackEventHeaders == nil {
		e.CallbackEventHeaders = datatypes.JSON("{}")
	}
	if e.CallbackEventPayload == nil {
		e.CallbackEventPayload = datatypes.JSON("{}")
	}
	return nil
}
