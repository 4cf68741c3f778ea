package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const rawGatewayResponse = `{
	"payment_id": "pay_123",
	"reference": "flow-1",
	"amount": 10600,
	"state": {"status": "success", "finished": true},
	"payment_provider": "sandbox",
	"created_date": "2026-08-01T10:00:00.000Z",
	"card_details": {"card_brand": "visa", "last_digits_card_number": "4242"},
	"refund_summary": {"status": "unavailable"},
	"_links": {
		"self": {"href": "https://publicapi.example.com/v1/payments/pay_123", "method": "GET"},
		"next_url": {"href": "https://card.example.com/secure/abc", "method": "GET"}
	}
}`

func TestParsePayment(t *testing.T) {
	payment, err := ParsePayment([]byte(rawGatewayResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.PaymentID != "pay_123" || payment.AmountPence != 10600 {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if payment.State.Status != StatusSuccess || !payment.State.Finished {
		t.Fatalf("unexpected state: %+v", payment.State)
	}
	if payment.Links == nil || payment.Links.NextURL == nil || payment.Links.NextURL.Href != "https://card.example.com/secure/abc" {
		t.Fatalf("next_url not parsed: %+v", payment.Links)
	}
}

func TestParsePaymentRejectsMissingID(t *testing.T) {
	if _, err := ParsePayment([]byte(`{"amount": 100}`)); err == nil {
		t.Fatal("expected error for response without payment_id")
	}
	if _, err := ParsePayment([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed response")
	}
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		status   string
		finished bool
		want     bool
	}{
		{StatusCreated, false, false},
		{StatusStarted, false, false},
		{StatusSubmitted, false, false},
		{StatusSuccess, true, true},
		{StatusFailed, true, true},
		{StatusCancelled, true, true},
		{StatusError, true, true},
		// Unknown status but the gateway says finished.
		{"expired", true, true},
	}
	for _, c := range cases {
		payment := &Payment{State: State{Status: c.status, Finished: c.finished}}
		if got := payment.IsTerminal(); got != c.want {
			t.Errorf("IsTerminal(%s, finished=%v) = %v, want %v", c.status, c.finished, got, c.want)
		}
	}
}

func TestDisplayStatus(t *testing.T) {
	payment := &Payment{State: State{Status: StatusFailed, Message: "Payment was declined"}}
	if got := payment.DisplayStatus(); got != "failed (Payment was declined)" {
		t.Fatalf("unexpected display status: %s", got)
	}

	payment.State.Message = ""
	if got := payment.DisplayStatus(); got != "failed" {
		t.Fatalf("unexpected display status: %s", got)
	}
}

func TestFilterPublic(t *testing.T) {
	filtered, err := FilterPublic([]byte(rawGatewayResponse))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(filtered, &out); err != nil {
		t.Fatalf("filtered body is not valid json: %v", err)
	}
	for _, key := range []string{"card_details", "refund_summary", "payment_provider", "reference"} {
		if _, ok := out[key]; ok {
			t.Errorf("filtered body must not contain %q", key)
		}
	}
	if out["payment_id"] != "pay_123" {
		t.Fatalf("payment_id missing: %v", out)
	}
	if out["amount"] != float64(10600) {
		t.Fatalf("amount missing: %v", out)
	}
	links, ok := out["_links"].(map[string]any)
	if !ok {
		t.Fatalf("_links missing: %v", out)
	}
	if _, ok := links["self"]; ok {
		t.Error("self link must be stripped")
	}
	next, ok := links["next_url"].(map[string]any)
	if !ok || next["href"] != "https://card.example.com/secure/abc" {
		t.Fatalf("next_url must survive filtering: %v", links)
	}
}

func TestFilterPublicOmitsAbsentNextURL(t *testing.T) {
	filtered, err := FilterPublic([]byte(`{"payment_id":"pay_123","amount":100,"state":{"status":"success","finished":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(filtered), "_links") {
		t.Fatalf("absent links must stay absent: %s", filtered)
	}
}

func TestTokenMapLookup(t *testing.T) {
	tokens := TokenMap{"east-herts": "eh-token", "empty": ""}

	if token, ok := tokens.Token(" East-Herts "); !ok || token != "eh-token" {
		t.Fatalf("lookup must trim and lowercase, got %q %v", token, ok)
	}
	if _, ok := tokens.Token("empty"); ok {
		t.Fatal("empty token must read as not configured")
	}
	if _, ok := tokens.Token("missing"); ok {
		t.Fatal("unknown tenant must read as not configured")
	}
}

func TestClientGetPayment(t *testing.T) {
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(rawGatewayResponse))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{
		BaseURL:     server.URL,
		Tokens:      TokenMap{"southwark": "sw-token"},
		HTTPTimeout: 2 * time.Second,
	})

	payment, err := client.GetPayment(context.Background(), "southwark", "pay_123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.PaymentID != "pay_123" || payment.PaymentProvider != ProviderSandbox {
		t.Fatalf("unexpected payment: %+v", payment)
	}
	if gotAuth != "Bearer sw-token" {
		t.Fatalf("unexpected authorization header: %s", gotAuth)
	}
	if gotPath != "/v1/payments/pay_123" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestClientGetPaymentErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"P0200"}`))
	}))
	defer server.Close()

	client := NewClient(ClientConfig{BaseURL: server.URL, Tokens: TokenMap{"southwark": "sw-token"}})

	if _, err := client.GetPayment(context.Background(), "southwark", "pay_missing"); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if _, err := client.GetPayment(context.Background(), "unknown", "pay_123"); err != ErrTenantNotConfigured {
		t.Fatalf("expected ErrTenantNotConfigured, got %v", err)
	}
}
