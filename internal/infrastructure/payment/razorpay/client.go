package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	dompay "github.com/Zhima-Mochi/sweetshop/internal/domain/payment"
	"github.com/Zhima-Mochi/sweetshop/internal/infrastructure/payment/hmacsig"
)

const (
	Name           = "razorpay"
	DefaultBaseURL = "https://api.razorpay.com"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Razorpay Orders API.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, fmt.Errorf("razorpay: key id and secret are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

func (c *Client) Name() string { return Name }

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, req dompay.OrderRequest) (*dompay.GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("razorpay: encode order: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("razorpay: build request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", dompay.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", dompay.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var er errorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &er) == nil && er.Error.Description != "" {
			return nil, fmt.Errorf("%w: %s: %s", dompay.ErrGatewayRejected, er.Error.Code, er.Error.Description)
		}
		return nil, fmt.Errorf("%w: status %d", dompay.ErrGatewayRejected, resp.StatusCode)
	}

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode order: %w", dompay.ErrGatewayUnavailable, err)
	}
	return &dompay.GatewayOrder{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
		Status:   out.Status,
	}, nil
}

func (c *Client) VerifySignature(conf dompay.Confirmation) error {
	return hmacsig.Verify(c.cfg.KeySecret, conf)
}
