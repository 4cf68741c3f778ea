//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

const defaultPayflowHTTPBase = "http://localhost:48080"

type httpClient struct {
	baseURL string
	client  *http.Client
}

func newHTTPClient(baseURL string) *httpClient {
	return &httpClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *httpClient) doJSON(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal failed: %v", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("e2e-http-%d", time.Now().UnixNano()))

	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("http request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response failed: %v", err)
	}

	return resp, bodyBytes
}

func waitForHTTP(baseURL string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 2 * time.Second}
	for time.Now().Before(deadline) {
		req, _ := http.NewRequest(http.MethodGet, baseURL+"/health", nil)
		req.Header.Set("X-Request-ID", fmt.Sprintf("wait-http-%d", time.Now().UnixNano()))
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("http service not ready at %s", baseURL)
}

// TestPayflowE2E exercises the HTTP surface against a running service. It
// needs a seeded session id and a tenant with a configured gateway token;
// both come from the environment.
func TestPayflowE2E(t *testing.T) {
	httpBase := os.Getenv("PAYFLOW_HTTP_URL")
	if httpBase == "" {
		httpBase = defaultPayflowHTTPBase
	}
	sessionID := os.Getenv("PAYFLOW_E2E_SESSION_ID")
	tenant := os.Getenv("PAYFLOW_E2E_TENANT")
	if sessionID == "" || tenant == "" {
		t.Skip("PAYFLOW_E2E_SESSION_ID and PAYFLOW_E2E_TENANT are required")
	}

	if err := waitForHTTP(httpBase, 30*time.Second); err != nil {
		t.Fatalf("http not ready: %v", err)
	}

	client := newHTTPClient(httpBase)
	var paymentRequestID string

	t.Run("Health", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodGet, "/health", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("UnknownTenantRejected", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/pay/no-such-team", map[string]any{
			"amount":      100,
			"reference":   "e2e",
			"description": "e2e payment",
			"return_url":  "https://example.com/return",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown tenant, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("InviteToPay", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/invite-to-pay/"+sessionID, map[string]any{
			"payeeName":     "Pat Payee",
			"payeeEmail":    "pat@example.com",
			"applicantName": "Ann Applicant",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("expected 201, got %d body=%s", resp.StatusCode, body)
		}

		var payload struct {
			PaymentRequest struct {
				ID             string         `json:"id"`
				SessionID      string         `json:"sessionId"`
				SessionPreview map[string]any `json:"sessionPreview"`
			} `json:"paymentRequest"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload.PaymentRequest.ID == "" || payload.PaymentRequest.SessionID != sessionID {
			t.Fatalf("unexpected payment request payload: %s", body)
		}
		paymentRequestID = payload.PaymentRequest.ID
	})

	t.Run("InviteToPayDuplicateLocked", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/invite-to-pay/"+sessionID, map[string]any{
			"payeeName":     "Pat Payee",
			"payeeEmail":    "pat@example.com",
			"applicantName": "Ann Applicant",
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for locked session, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("GetPaymentRequest", func(t *testing.T) {
		if paymentRequestID == "" {
			t.Skip("no payment request created")
		}
		resp, body := client.doJSON(t, http.MethodGet, "/payment-request/"+paymentRequestID, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("GetPaymentRequestNotFound", func(t *testing.T) {
		resp, _ := client.doJSON(t, http.MethodGet, "/payment-request/00000000-0000-0000-0000-000000000000", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
	})

	t.Run("CreateSendEventsUnknownDestination", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/create-send-events/"+sessionID, map[string]any{
			"team":         tenant,
			"destinations": []string{"fax"},
		})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for unknown destination, got %d body=%s", resp.StatusCode, body)
		}
	})

	t.Run("CreateSendEvents", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/create-send-events/"+sessionID, map[string]any{
			"team":         tenant,
			"destinations": []string{"email", "bops", "uniform"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200, got %d body=%s", resp.StatusCode, body)
		}

		var payload map[string]struct {
			Message string `json:"message"`
			EventID string `json:"eventId"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		for _, destination := range []string{"email", "bops", "uniform"} {
			if _, ok := payload[destination]; !ok {
				t.Fatalf("missing destination %s in payload: %s", destination, body)
			}
		}
	})

	t.Run("CreateSendEventsRetryIsIdempotent", func(t *testing.T) {
		resp, body := client.doJSON(t, http.MethodPost, "/create-send-events/"+sessionID, map[string]any{
			"team":         tenant,
			"destinations": []string{"email"},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("expected 200 on retry, got %d body=%s", resp.StatusCode, body)
		}

		var payload map[string]struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if payload["email"].Message != "submission already scheduled" {
			t.Fatalf("expected dedup message, got %s", body)
		}
	})
}
