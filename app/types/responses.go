package types

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type PaymentRequestResponse struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"sessionId"`
	TeamSlug        string         `json:"teamSlug"`
	FlowID          string         `json:"flowId"`
	PayeeName       string         `json:"payeeName"`
	PayeeEmail      string         `json:"payeeEmail"`
	ApplicantName   string         `json:"applicantName"`
	SessionPreview  map[string]any `json:"sessionPreview"`
	GovPayPaymentID string         `json:"govPayPaymentId,omitempty"`
	PaidAt          string         `json:"paidAt,omitempty"`
	CreatedAt       string         `json:"createdAt"`
}

type PaymentRequestEnvelopeResponse struct {
	PaymentRequest *PaymentRequestResponse `json:"paymentRequest"`
}

type ScheduledSubmissionResponse struct {
	Message string `json:"message"`
	EventID string `json:"eventId,omitempty"`
}

type SendEventsResponse map[string]*ScheduledSubmissionResponse
