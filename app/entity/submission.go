package entity

import "time"

// ScheduledSubmission describes one deferred delivery job handed to the
// external scheduler at end-of-application.
type ScheduledSubmission struct {
	Destination string
	SessionID   string

	Webhook      string
	ScheduledAt  time.Time
	DedupComment string

	EventID string
	Message string
}
