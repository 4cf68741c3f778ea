package gateway

import "encoding/json"

// publicPayment is the only shape that is ever written back to a browser.
// Card details, account internals, and provider bookkeeping stay server-side.
type publicPayment struct {
	PaymentID   string `json:"payment_id"`
	AmountPence int64  `json:"amount"`
	State       State  `json:"state"`
	Links       *Links `json:"_links,omitempty"`
}

// FilterPublic narrows a raw gateway response to the public subset:
// {payment id, amount, status object, next-action link}.
func FilterPublic(raw []byte) ([]byte, error) {
	var full struct {
		PaymentID   string `json:"payment_id"`
		AmountPence int64  `json:"amount"`
		State       State  `json:"state"`
		Links       *Links `json:"_links"`
	}
	if err := json.Unmarshal(raw, &full); err != nil {
		return nil, err
	}

	out := publicPayment{
		PaymentID:   full.PaymentID,
		AmountPence: full.AmountPence,
		State:       full.State,
	}
	if full.Links != nil && full.Links.NextURL != nil {
		out.Links = &Links{NextURL: full.Links.NextURL}
	}

	return json.Marshal(&out)
}
