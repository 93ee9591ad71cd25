// Package mpesa talks to the Daraja STK push API: OAuth token, push submission,
// push status query and callback decoding.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"rentflow_backend/internals/configs"
)

const (
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// query answer while the customer has not responded yet
	codeStillProcessing = "500.001.1001"
)

var nairobi = time.FixedZone("EAT", 3*60*60)

var (
	ErrAuth      = errors.New("mpesa: authentication failed")
	ErrTransport = errors.New("mpesa: provider unreachable")
)

// RejectedError is a well-formed refusal from the provider. Code and Message are raw
// provider text and must not reach end users.
type RejectedError struct {
	Status  int
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("mpesa: request rejected (http %d, code %s): %s", e.Status, e.Code, e.Message)
}

/* =========================================================
   Wire types
========================================================= */

type pushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type queryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type errorBody struct {
	RequestID    string `json:"requestId"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// PushRequest is what the initiator asks for. Phone must already be normalized.
type PushRequest struct {
	Amount           decimal.Decimal
	Phone            string
	Target           string
	AccountReference string
	Description      string
}

type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// PushAmount is Amount as sent on the wire.
func (r PushRequest) PushAmount() int64 { return WholeAmount(r.Amount) }

type queryResponse struct {
	ResponseCode      string   `json:"ResponseCode"`
	MerchantRequestID string   `json:"MerchantRequestID"`
	CheckoutRequestID string   `json:"CheckoutRequestID"`
	ResultCode        flexCode `json:"ResultCode"`
	ResultDesc        string   `json:"ResultDesc"`
}

// QueryResult is the provider's view of one push. Outcome is nil while Pending.
type QueryResult struct {
	Pending    bool
	ResultDesc string
	Outcome    Outcome
}

/* =========================================================
   Helpers
========================================================= */

// Timestamp formats t as yyyyMMddHHmmss in East Africa Time.
func Timestamp(t time.Time) string { return t.In(nairobi).Format("20060102150405") }

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passKey, ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + ts))
}

// WholeAmount rounds half away from zero to whole units; the provider minimum is 1.
func WholeAmount(amount decimal.Decimal) int64 {
	n := amount.Round(0).IntPart()
	if n < 1 {
		return 1
	}
	return n
}

/* =========================================================
   Client
========================================================= */

type Client struct {
	cfg    configs.MpesaConfig
	http   *http.Client
	tokens *TokenSource
	log    *zap.Logger
	now    func() time.Time
}

func NewClient(cfg configs.MpesaConfig, log *zap.Logger) *Client {
	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	return &Client{
		cfg:    cfg,
		http:   hc,
		tokens: NewTokenSource(cfg, hc, log),
		log:    log.Named("mpesa"),
		now:    time.Now,
	}
}

// Tokens exposes the token cache (shared by push and query).
func (c *Client) Tokens() *TokenSource { return c.tokens }

// Push submits an STK push. Errors are ErrAuth, ErrTransport or *RejectedError.
func (c *Client) Push(ctx context.Context, in PushRequest) (PushResponse, error) {
	ts := Timestamp(c.now())
	payload := pushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		TransactionType:   c.cfg.TransactionType,
		Amount:            in.PushAmount(),
		PartyA:            in.Phone,
		PartyB:            in.Target,
		PhoneNumber:       in.Phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  truncate(in.AccountReference, 12),
		TransactionDesc:   truncate(in.Description, 13),
	}

	status, body, err := c.call(ctx, pushPath, payload)
	if err != nil {
		return PushResponse{}, err
	}
	if status != http.StatusOK {
		return PushResponse{}, c.rejected(status, body)
	}

	var out PushResponse
	if err := sonic.Unmarshal(body, &out); err != nil {
		c.log.Error("push response unreadable", zap.ByteString("body", body), zap.Error(err))
		return PushResponse{}, &RejectedError{Status: status, Message: "unreadable response"}
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" || out.MerchantRequestID == "" {
		c.log.Warn("push not accepted",
			zap.String("response_code", out.ResponseCode),
			zap.String("description", out.ResponseDescription))
		return PushResponse{}, &RejectedError{Status: status, Code: out.ResponseCode, Message: out.ResponseDescription}
	}

	c.log.Info("push accepted",
		zap.String("checkout_request_id", out.CheckoutRequestID),
		zap.String("merchant_request_id", out.MerchantRequestID),
		zap.Int64("amount", payload.Amount))
	return out, nil
}

// Query asks the provider for the state of one push.
func (c *Client) Query(ctx context.Context, checkoutID string) (QueryResult, error) {
	ts := Timestamp(c.now())
	payload := queryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutID,
	}

	status, body, err := c.call(ctx, queryPath, payload)
	if err != nil {
		return QueryResult{}, err
	}
	if status != http.StatusOK {
		var eb errorBody
		if sonic.Unmarshal(body, &eb) == nil && eb.ErrorCode == codeStillProcessing {
			return QueryResult{Pending: true}, nil
		}
		return QueryResult{}, c.rejected(status, body)
	}

	var qr queryResponse
	if err := sonic.Unmarshal(body, &qr); err != nil {
		c.log.Error("query response unreadable", zap.ByteString("body", body), zap.Error(err))
		return QueryResult{}, &RejectedError{Status: status, Message: "unreadable response"}
	}
	if !qr.ResultCode.set {
		return QueryResult{Pending: true}, nil
	}
	if qr.ResultCode.n == 0 {
		// the query carries no receipt; the callback or a later reconciliation fills it in
		return QueryResult{ResultDesc: qr.ResultDesc, Outcome: Success{}}, nil
	}
	return QueryResult{ResultDesc: qr.ResultDesc, Outcome: Failure{Code: qr.ResultCode.n, Description: qr.ResultDesc}}, nil
}

// call posts JSON with a bearer token. A 401 drops the cached token and retries once.
func (c *Client) call(ctx context.Context, path string, payload any) (int, []byte, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode payload: %w", err)
	}

	for attempt := 0; ; attempt++ {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return 0, nil, err
		}

		status, body, err := c.post(ctx, path, tok, raw)
		if err != nil {
			return 0, nil, err
		}
		if status == http.StatusUnauthorized {
			c.tokens.Invalidate()
			if attempt == 0 {
				c.log.Info("provider refused token, refreshing", zap.String("path", path))
				continue
			}
			c.log.Error("provider refused fresh token", zap.String("path", path), zap.ByteString("body", body))
			return 0, nil, ErrAuth
		}
		return status, body, nil
	}
}

func (c *Client) post(ctx context.Context, path, token string, raw []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("provider request failed", zap.String("path", path), zap.Error(err))
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) rejected(status int, body []byte) error {
	var eb errorBody
	_ = sonic.Unmarshal(body, &eb)
	c.log.Warn("provider rejected request",
		zap.Int("status", status),
		zap.String("request_id", eb.RequestID),
		zap.String("error_code", eb.ErrorCode),
		zap.String("error_message", eb.ErrorMessage))
	if status >= 500 && eb.ErrorCode == "" {
		return fmt.Errorf("%w: http %d", ErrTransport, status)
	}
	return &RejectedError{Status: status, Code: eb.ErrorCode, Message: eb.ErrorMessage}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}

// flexCode accepts a result code sent either as a JSON number or a string.
type flexCode struct {
	n   int
	set bool
}

func (f *flexCode) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("result code %q: %w", s, err)
	}
	f.n, f.set = n, true
	return nil
}
