// Package mpesa is a small client for the Safaricom Daraja API: OAuth
// access tokens, Lipa na M-Pesa Online (STK push), STK push status queries
// and the asynchronous result callback.
package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kututa/railway-booking/internal/config"
	"github.com/kututa/railway-booking/internal/model"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"
	queryPath = "/mpesa/stkpushquery/v1/query"

	// processingErrorCode is answered by the query endpoint while the
	// customer has not yet responded to the prompt.
	processingErrorCode = "500.001.1001"
)

// ErrStillProcessing means the gateway has no final result yet.
var ErrStillProcessing = errors.New("mpesa: transaction is still being processed")

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("mpesa: gateway is not configured")

// APIError is a non-success answer of the gateway.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa: %d %s %s", e.Status, e.Code, e.Message)
}

// PushRequest describes one payment prompt.
type PushRequest struct {
	Phone            string // 2547XXXXXXXX
	Amount           int64  // whole shillings
	AccountReference string
	Description      string
}

// PushResponse is the synchronous acknowledgement of an STK push.
type PushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// QueryResponse is the answer of the STK push status query.  ResultCode
// is only meaningful once ResponseCode is "0".
type QueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

// Client talks to Daraja.  It is safe for concurrent use.
type Client struct {
	cfg  config.MpesaConfig
	http *http.Client
	now  func() time.Time

	mu          sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// NewClient returns a client for cfg.  A nil httpClient gets one with
// cfg.Timeout.
func NewClient(cfg config.MpesaConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.cfg.Configured() }

// AccessToken returns a cached OAuth token, fetching a new one shortly
// before the old one expires.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"` // seconds, sent as a string
	}
	if err := c.do(req, &tok); err != nil {
		return "", fmt.Errorf("mpesa: access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("mpesa: access token: empty token")
	}
	ttl, err := strconv.Atoi(tok.ExpiresIn)
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	// refresh a minute early
	c.token = tok.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(ttl-60) * time.Second)
	return c.token, nil
}

// STKPush prompts the customer's phone to pay.
func (c *Client) STKPush(ctx context.Context, r PushRequest) (PushResponse, error) {
	if !c.Configured() {
		return PushResponse{}, ErrNotConfigured
	}
	ts := c.timestamp()
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            r.Amount,
		"PartyA":            r.Phone,
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       r.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  r.AccountReference,
		"TransactionDesc":   r.Description,
	}
	var out PushResponse
	if err := c.post(ctx, pushPath, body, &out); err != nil {
		return PushResponse{}, fmt.Errorf("mpesa: stk push: %w", err)
	}
	if out.ResponseCode != "0" {
		return out, &APIError{Status: http.StatusOK, Code: out.ResponseCode, Message: out.ResponseDescription}
	}
	return out, nil
}

// Query asks for the result of an STK push.  ErrStillProcessing is
// returned while the customer has not answered the prompt.
func (c *Client) Query(ctx context.Context, checkoutRequestID string) (QueryResponse, error) {
	if !c.Configured() {
		return QueryResponse{}, ErrNotConfigured
	}
	ts := c.timestamp()
	body := map[string]any{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(ts),
		"Timestamp":         ts,
		"CheckoutRequestID": checkoutRequestID,
	}
	var out QueryResponse
	err := c.post(ctx, queryPath, body, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == processingErrorCode {
		return QueryResponse{}, ErrStillProcessing
	}
	if err != nil {
		return QueryResponse{}, fmt.Errorf("mpesa: stk query: %w", err)
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			ErrorCode    string `json:"errorCode"`
			ErrorMessage string `json:"errorMessage"`
		}
		_ = json.Unmarshal(raw, &e)
		if e.ErrorMessage == "" {
			e.ErrorMessage = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Code: e.ErrorCode, Message: e.ErrorMessage}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// timestamp formats the current time as yyyyMMddHHmmss in EAT.
func (c *Client) timestamp() string {
	return c.now().In(model.EAT).Format("20060102150405")
}

// password is base64(shortcode + passkey + timestamp).
func (c *Client) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + ts))
}
