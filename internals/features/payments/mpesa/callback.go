package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

var ErrMalformedCallback = errors.New("mpesa: malformed callback")

// Outcome is either Success or Failure.
type Outcome interface{ isOutcome() }

type Success struct {
	Receipt         string
	Amount          decimal.NullDecimal
	TransactionDate *time.Time
	Phone           string
}

type Failure struct {
	Code        int
	Description string
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// Callback is one decoded STK result delivery.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Outcome           Outcome
}

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string   `json:"MerchantRequestID"`
			CheckoutRequestID string   `json:"CheckoutRequestID"`
			ResultCode        flexCode `json:"ResultCode"`
			ResultDesc        string   `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string          `json:"Name"`
					Value json.RawMessage `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// DecodeCallback parses a raw delivery. Result code 0 is Success, anything else Failure.
func DecodeCallback(raw []byte) (Callback, error) {
	var env callbackEnvelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb == nil || strings.TrimSpace(cb.CheckoutRequestID) == "" || !cb.ResultCode.set {
		return Callback{}, fmt.Errorf("%w: missing stkCallback fields", ErrMalformedCallback)
	}

	out := Callback{
		MerchantRequestID: strings.TrimSpace(cb.MerchantRequestID),
		CheckoutRequestID: strings.TrimSpace(cb.CheckoutRequestID),
		ResultCode:        cb.ResultCode.n,
		ResultDesc:        cb.ResultDesc,
	}
	if out.ResultCode != 0 {
		out.Outcome = Failure{Code: out.ResultCode, Description: cb.ResultDesc}
		return out, nil
	}

	var s Success
	if cb.CallbackMetadata != nil {
		for _, it := range cb.CallbackMetadata.Item {
			v := scalar(it.Value)
			switch it.Name {
			case "MpesaReceiptNumber":
				s.Receipt = v
			case "Amount":
				if amt, err := decimal.NewFromString(v); err == nil {
					s.Amount = decimal.NewNullDecimal(amt)
				}
			case "TransactionDate":
				if t, err := time.ParseInLocation("20060102150405", v, nairobi); err == nil {
					s.TransactionDate = &t
				}
			case "PhoneNumber":
				s.Phone = v
			}
		}
	}
	if s.Receipt == "" {
		return Callback{}, fmt.Errorf("%w: success without receipt", ErrMalformedCallback)
	}
	out.Outcome = s
	return out, nil
}

// scalar renders a JSON string or number without quotes.
func scalar(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := sonic.Unmarshal(raw, &str); err == nil {
			return strings.TrimSpace(str)
		}
	}
	return s
}
