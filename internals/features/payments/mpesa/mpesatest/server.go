// Package mpesatest is an in-process fake of the Daraja endpoints used by the client.
package mpesatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rentflow_backend/internals/configs"
)

// PushCall is one received STK push body.
type PushCall struct {
	BusinessShortCode string
	Password          string
	Timestamp         string
	TransactionType   string
	Amount            int64
	PartyA            string
	PartyB            string
	PhoneNumber       string
	CallBackURL       string
	AccountReference  string
	TransactionDesc   string
}

type Server struct {
	*httptest.Server

	TokenCalls atomic.Int32
	PushCalls  atomic.Int32
	QueryCalls atomic.Int32

	mu sync.Mutex
	// FailToken makes the OAuth endpoint answer 400.
	FailToken bool
	// Unauthorized makes the next N push/query calls answer 401.
	Unauthorized int
	// RejectPush makes the push endpoint answer 400 with this error code.
	RejectPush string
	// QueryResults maps checkout id to a ResultCode; missing ids are still processing.
	QueryResults map[string]int

	pushes []PushCall
	seq    int
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{QueryResults: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", s.token)
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", s.push)
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", s.query)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Config points a client at this fake.
func (s *Server) Config() configs.MpesaConfig {
	return configs.MpesaConfig{
		BaseURL:         s.URL,
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		ShortCode:       "174379",
		PassKey:         "passkey",
		TransactionType: "CustomerPayBillOnline",
		CallbackURL:     "https://example.test/api/mpesa/callback",
		HTTPTimeout:     5 * time.Second,
		TokenSkew:       time.Minute,
		QueryAfter:      20 * time.Second,
	}
}

func (s *Server) Pushes() []PushCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PushCall(nil), s.pushes...)
}

func (s *Server) SetQueryResult(checkoutID string, code int) {
	s.mu.Lock()
	s.QueryResults[checkoutID] = code
	s.mu.Unlock()
}

func (s *Server) Configure(fn func(s *Server)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	s.TokenCalls.Add(1)
	user, pass, ok := r.BasicAuth()
	s.mu.Lock()
	fail := s.FailToken
	s.mu.Unlock()
	if !ok || user != "key" || pass != "secret" || fail {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"requestId": "tok", "errorCode": "400.008.01", "errorMessage": "Invalid Authentication passed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": fmt.Sprintf("tok-%d", s.TokenCalls.Load()),
		"expires_in":   "3599",
	})
}

func (s *Server) unauthorized(w http.ResponseWriter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Unauthorized > 0 {
		s.Unauthorized--
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"requestId": "auth", "errorCode": "404.001.03", "errorMessage": "Invalid Access Token",
		})
		return true
	}
	return false
}

func (s *Server) push(w http.ResponseWriter, r *http.Request) {
	s.PushCalls.Add(1)
	if s.unauthorized(w) {
		return
	}
	var call PushCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"errorCode": "400.002.02", "errorMessage": "Bad Request"})
		return
	}

	s.mu.Lock()
	s.pushes = append(s.pushes, call)
	s.seq++
	seq := s.seq
	reject := s.RejectPush
	s.mu.Unlock()

	if reject != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"requestId": "rej", "errorCode": reject, "errorMessage": "Bad Request - Invalid Amount",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"MerchantRequestID":   fmt.Sprintf("29115-34620561-%d", seq),
		"CheckoutRequestID":   fmt.Sprintf("ws_CO_191220191020363925%d", seq),
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	s.QueryCalls.Add(1)
	if s.unauthorized(w) {
		return
	}
	var body struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	code, ok := s.QueryResults[body.CheckoutRequestID]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"requestId": "q", "errorCode": "500.001.1001", "errorMessage": "The transaction is being processed",
		})
		return
	}
	desc := "The service request is processed successfully."
	if code != 0 {
		desc = "Request cancelled by user"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ResponseCode":        "0",
		"ResponseDescription": "The service request has been accepted successsfully",
		"MerchantRequestID":   "m",
		"CheckoutRequestID":   body.CheckoutRequestID,
		"ResultCode":          fmt.Sprint(code),
		"ResultDesc":          desc,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
