package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	housingModel "rentflow_backend/internals/features/housing/model"
	paymentDto "rentflow_backend/internals/features/payments/dto"
)

type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func newAPIClient(g *globals) *apiClient {
	return &apiClient{base: strings.TrimRight(g.api, "/"), token: g.token, http: &http.Client{Timeout: 30 * time.Second}}
}

type envelope[T any] struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
	Data    T                   `json:"data"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d: %s %v", e.Status, e.Message, e.Fields)
}

func call[T any](ctx context.Context, c *apiClient, method, path string, in any) (T, string, error) {
	var zero T
	var body io.Reader
	if in != nil {
		raw, err := sonic.Marshal(in)
		if err != nil {
			return zero, "", err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return zero, "", err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return zero, "", err
	}

	var env envelope[T]
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return zero, "", fmt.Errorf("http %d: unreadable response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return zero, "", &APIError{Status: resp.StatusCode, Message: env.Message, Fields: env.Errors}
	}
	return env.Data, env.Message, nil
}

type quote struct {
	HouseID       uuid.UUID `json:"house_id"`
	HouseDoor     string    `json:"house_door"`
	HouseStatus   string    `json:"house_status"`
	ApartmentID   uuid.UUID `json:"apartment_id"`
	ApartmentName string    `json:"apartment_name"`
	Paybill       string    `json:"paybill"`
	Charges       struct {
		Lines []housingModel.ChargeLine `json:"lines"`
		Total decimal.Decimal           `json:"total"`
	} `json:"charges"`
}

func (c *apiClient) quote(ctx context.Context, houseID string) (quote, error) {
	q, _, err := call[quote](ctx, c, http.MethodGet, "/api/houses/"+houseID+"/charges", nil)
	return q, err
}

func (c *apiClient) push(ctx context.Context, req paymentDto.InitiateRequest) (paymentDto.InitiateResponse, string, error) {
	return call[paymentDto.InitiateResponse](ctx, c, http.MethodPost, "/api/u/payments/stk-push", req)
}

func (c *apiClient) reportTimeout(ctx context.Context, checkoutID string, attempts int) (string, error) {
	_, msg, err := call[paymentDto.StatusResponse](ctx, c, http.MethodPost,
		"/api/u/payments/"+checkoutID+"/poll-timeout", map[string]int{"attempts": attempts})
	return msg, err
}

// selectLines keeps the quoted lines whose ids are in want; all of them when want is empty.
func selectLines(lines []housingModel.ChargeLine, want []string) ([]housingModel.ChargeLine, decimal.Decimal, error) {
	if len(want) == 0 {
		total := decimal.Zero
		for _, l := range lines {
			total = total.Add(l.Amount)
		}
		return lines, total, nil
	}
	byID := make(map[string]housingModel.ChargeLine, len(lines))
	for _, l := range lines {
		byID[l.ID] = l
	}
	out := make([]housingModel.ChargeLine, 0, len(want))
	total := decimal.Zero
	for _, id := range want {
		l, ok := byID[strings.TrimSpace(id)]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("house has no %q charge", id)
		}
		out = append(out, l)
		total = total.Add(l.Amount)
	}
	return out, total, nil
}
