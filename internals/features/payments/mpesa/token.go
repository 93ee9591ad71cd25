package mpesa

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"rentflow_backend/internals/configs"
	"rentflow_backend/internals/metrics"
)

const tokenPath = "/oauth/v1/generate?grant_type=client_credentials"

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// TokenSource caches the OAuth access token until shortly before expiry.
// Concurrent misses share one fetch.
type TokenSource struct {
	cfg  configs.MpesaConfig
	http *http.Client
	log  *zap.Logger
	now  func() time.Time

	mu      sync.RWMutex
	token   string
	expires time.Time

	group singleflight.Group
}

func NewTokenSource(cfg configs.MpesaConfig, hc *http.Client, log *zap.Logger) *TokenSource {
	return &TokenSource{cfg: cfg, http: hc, log: log.Named("mpesa.token"), now: time.Now}
}

func (s *TokenSource) cached() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expires) {
		return "", false
	}
	return s.token, true
}

// Token returns a valid access token, fetching one if the cache is empty or expired.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if tok, ok := s.cached(); ok {
		return tok, nil
	}

	ch := s.group.DoChan("token", func() (any, error) {
		if tok, ok := s.cached(); ok {
			return tok, nil
		}
		// the fetch outlives any single waiter
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.HTTPTimeout)
		defer cancel()
		return s.fetch(fctx)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token. The next Token call fetches a fresh one.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expires = time.Time{}
	s.mu.Unlock()
}

func (s *TokenSource) fetch(ctx context.Context) (string, error) {
	metrics.RecordTokenRefresh()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(s.cfg.BaseURL, "/")+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.cfg.ConsumerKey, s.cfg.ConsumerSecret)

	resp, err := s.http.Do(req)
	if err != nil {
		s.log.Warn("token request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("token rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: token endpoint status %d", ErrTransport, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: token endpoint status %d", ErrAuth, resp.StatusCode)
	}

	var tr tokenResponse
	if err := sonic.Unmarshal(body, &tr); err != nil || tr.AccessToken == "" {
		s.log.Warn("token response unreadable", zap.ByteString("body", body))
		return "", fmt.Errorf("%w: empty access token", ErrAuth)
	}

	ttl := time.Hour
	if secs, err := strconv.Atoi(strings.TrimSpace(tr.ExpiresIn)); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	if ttl > s.cfg.TokenSkew {
		ttl -= s.cfg.TokenSkew
	}

	s.mu.Lock()
	s.token = tr.AccessToken
	s.expires = s.now().Add(ttl)
	s.mu.Unlock()

	s.log.Debug("token refreshed", zap.Duration("ttl", ttl))
	return tr.AccessToken, nil
}
