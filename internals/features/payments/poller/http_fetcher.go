package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// HTTPFetcher reads GET {BaseURL}/api/u/payments/status/{id} with a bearer token.
type HTTPFetcher struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewHTTPFetcher(baseURL, token string) *HTTPFetcher {
	return &HTTPFetcher{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, Client: &http.Client{Timeout: 10 * time.Second}}
}

type statusEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		CheckoutRequestID string  `json:"checkout_request_id"`
		Status            string  `json:"status"`
		ResultDesc        *string `json:"result_desc"`
		Receipt           *string `json:"receipt"`
	} `json:"data"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, checkoutID string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"/api/u/payments/status/"+url.PathEscape(checkoutID), nil)
	if err != nil {
		return Snapshot{}, err
	}
	if f.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.Token)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return Snapshot{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Snapshot{}, err
	}

	var env statusEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return Snapshot{}, fmt.Errorf("status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !env.Success {
		return Snapshot{}, fmt.Errorf("status request: http %d: %s", resp.StatusCode, env.Message)
	}

	s := Snapshot{CheckoutRequestID: env.Data.CheckoutRequestID, Status: env.Data.Status}
	if env.Data.ResultDesc != nil {
		s.ResultDesc = *env.Data.ResultDesc
	}
	if env.Data.Receipt != nil {
		s.Receipt = *env.Data.Receipt
	}
	return s, nil
}
