package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrTenantNotConfigured = errors.New("gateway token is not configured for tenant")

// TokenMap resolves a tenant slug to its gateway bearer token. The map is
// built once at startup from configuration.
type TokenMap map[string]string

func (m TokenMap) Token(tenant string) (string, bool) {
	token, ok := m[strings.ToLower(strings.TrimSpace(tenant))]
	return token, ok && token != ""
}

type ClientConfig struct {
	BaseURL     string
	Tokens      TokenMap
	HTTPTimeout time.Duration
}

// Client is a typed gateway reader used by the reconcile job. Browser-facing
// traffic goes through the proxy instead, which forwards bodies verbatim.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetPayment(ctx context.Context, tenant, paymentID string) (*Payment, error) {
	token, ok := c.cfg.Tokens.Token(tenant)
	if !ok {
		return nil, ErrTenantNotConfigured
	}

	endpoint := c.cfg.BaseURL + "/v1/payments/" + url.PathEscape(strings.TrimSpace(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gateway get payment failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, err
	}

	return &payment, nil
}
