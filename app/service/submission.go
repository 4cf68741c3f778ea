package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civicstack/ms-go-payflow/app/entity"
	"github.com/civicstack/ms-go-payflow/app/scheduler"
)

const (
	DestinationEmail   = "email"
	DestinationBOPS    = "bops"
	DestinationUniform = "uniform"
)

// destinationOrder also encodes priority: earlier destinations get earlier
// schedule slots.
var destinationOrder = []string{DestinationEmail, DestinationBOPS, DestinationUniform}

var destinationOffsets = map[string]time.Duration{
	DestinationEmail:   0,
	DestinationBOPS:    30 * time.Second,
	DestinationUniform: 60 * time.Second,
}

type schedulerClient interface {
	CreateScheduledEvent(ctx context.Context, event *scheduler.ScheduledEvent) (*scheduler.CreateResult, error)
}

// SubmissionDispatcher schedules one deferred delivery job per destination
// at end-of-application. Each job is independent: a failure aborts the
// remaining destinations but never rolls back jobs already created.
type SubmissionDispatcher struct {
	scheduler   schedulerClient
	sendBaseURL string
}

func NewSubmissionDispatcher(sched schedulerClient, sendBaseURL string) *SubmissionDispatcher {
	return &SubmissionDispatcher{
		scheduler:   sched,
		sendBaseURL: strings.TrimRight(sendBaseURL, "/"),
	}
}

// CreateSendEvents enqueues one job per requested destination. The dedup
// comment <destination>_submission_<sessionID> is stable across retries, so
// re-invocation cannot create duplicate downstream deliveries.
func (d *SubmissionDispatcher) CreateSendEvents(ctx context.Context, sessionID, tenant string, destinations []string) (map[string]*entity.ScheduledSubmission, error) {
	requested := make(map[string]bool, len(destinations))
	for _, destination := range destinations {
		if _, known := destinationOffsets[destination]; !known {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, destination)
		}
		requested[destination] = true
	}
	if len(requested) == 0 {
		return nil, ErrInvalidRequest
	}

	now := time.Now().UTC()
	results := make(map[string]*entity.ScheduledSubmission, len(requested))

	for _, destination := range destinationOrder {
		if !requested[destination] {
			continue
		}

		submission := &entity.ScheduledSubmission{
			Destination:  destination,
			SessionID:    sessionID,
			Webhook:      fmt.Sprintf("%s/%s/%s", d.sendBaseURL, destination, tenant),
			ScheduledAt:  now.Add(destinationOffsets[destination]),
			DedupComment: fmt.Sprintf("%s_submission_%s", destination, sessionID),
		}

		result, err := d.scheduler.CreateScheduledEvent(ctx, &scheduler.ScheduledEvent{
			Webhook:    submission.Webhook,
			ScheduleAt: submission.ScheduledAt,
			Payload:    map[string]any{"sessionId": sessionID, "team": tenant},
			Comment:    submission.DedupComment,
		})
		switch {
		case errors.Is(err, scheduler.ErrEventExists):
			// Dedup conflict means an earlier invocation already scheduled
			// this job; success, not error.
			submission.Message = "submission already scheduled"
		case err != nil:
			return nil, fmt.Errorf("schedule %s submission for session %s: %w", destination, sessionID, err)
		default:
			submission.Message = result.Message
			submission.EventID = result.EventID
		}

		results[destination] = submission
	}

	return results, nil
}
