package gateway

import (
	"encoding/json"
	"fmt"
)

// Payment provider values as reported by the gateway.
const (
	ProviderSandbox = "sandbox"
	ProviderStripe  = "stripe"
)

const (
	StatusCreated    = "created"
	StatusStarted    = "started"
	StatusSubmitted  = "submitted"
	StatusCapturable = "capturable"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
	StatusError      = "error"
)

type State struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Finished bool   `json:"finished"`
}

type Link struct {
	Href   string `json:"href,omitempty"`
	Method string `json:"method,omitempty"`
}

type Links struct {
	NextURL *Link `json:"next_url,omitempty"`
}

// Payment is the gateway's payment object. Only the fields this service
// reads are modelled; the raw response may carry much more.
type Payment struct {
	PaymentID       string `json:"payment_id"`
	Reference       string `json:"reference,omitempty"`
	AmountPence     int64  `json:"amount"`
	State           State  `json:"state"`
	PaymentProvider string `json:"payment_provider,omitempty"`
	CreatedDate     string `json:"created_date,omitempty"`
	Links           *Links `json:"_links,omitempty"`
}

func (p *Payment) IsTerminal() bool {
	switch p.State.Status {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusError:
		return true
	}
	return p.State.Finished
}

// DisplayStatus renders the state for humans: "failed (Payment was declined)".
func (p *Payment) DisplayStatus() string {
	if p.State.Message == "" {
		return p.State.Status
	}
	return fmt.Sprintf("%s (%s)", p.State.Status, p.State.Message)
}

func ParsePayment(raw []byte) (*Payment, error) {
	var payment Payment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, err
	}
	if payment.PaymentID == "" {
		return nil, fmt.Errorf("gateway response has no payment_id")
	}
	return &payment, nil
}
