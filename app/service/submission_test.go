package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/civicstack/ms-go-payflow/app/scheduler"
)

type fakeScheduler struct {
	events   []*scheduler.ScheduledEvent
	failFor  string
	conflict map[string]bool
	next     int
}

func (s *fakeScheduler) CreateScheduledEvent(_ context.Context, event *scheduler.ScheduledEvent) (*scheduler.CreateResult, error) {
	if s.failFor != "" && strings.Contains(event.Webhook, "/"+s.failFor+"/") {
		return nil, errors.New("scheduler unavailable")
	}
	if s.conflict[event.Comment] {
		return nil, scheduler.ErrEventExists
	}
	if s.conflict == nil {
		s.conflict = map[string]bool{}
	}
	s.conflict[event.Comment] = true
	s.events = append(s.events, event)
	s.next++
	return &scheduler.CreateResult{Message: "success", EventID: fmt.Sprintf("evt_%d", s.next)}, nil
}

func TestCreateSendEventsSchedulesPerDestination(t *testing.T) {
	sched := &fakeScheduler{}
	dispatcher := NewSubmissionDispatcher(sched, "https://api.example.com/send")

	results, err := dispatcher.CreateSendEvents(context.Background(), "s1", "southwark", []string{DestinationBOPS, DestinationEmail})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(results))
	}

	email := results[DestinationEmail]
	bops := results[DestinationBOPS]
	if email == nil || bops == nil {
		t.Fatalf("missing destination keys: %v", results)
	}
	if email.Webhook != "https://api.example.com/send/email/southwark" {
		t.Fatalf("unexpected email webhook: %s", email.Webhook)
	}
	if bops.Webhook != "https://api.example.com/send/bops/southwark" {
		t.Fatalf("unexpected bops webhook: %s", bops.Webhook)
	}
	if got := bops.ScheduledAt.Sub(email.ScheduledAt); got != destinationOffsets[DestinationBOPS] {
		t.Fatalf("expected 30s stagger between email and bops, got %s", got)
	}
	if email.EventID == "" || bops.EventID == "" || email.EventID == bops.EventID {
		t.Fatalf("expected distinct event ids, got %q and %q", email.EventID, bops.EventID)
	}
	if email.DedupComment != "email_submission_s1" || bops.DedupComment != "bops_submission_s1" {
		t.Fatalf("unexpected dedup comments: %q %q", email.DedupComment, bops.DedupComment)
	}
}

func TestCreateSendEventsIdempotentOnRetry(t *testing.T) {
	sched := &fakeScheduler{}
	dispatcher := NewSubmissionDispatcher(sched, "https://api.example.com/send")
	ctx := context.Background()
	destinations := []string{DestinationEmail, DestinationUniform}

	if _, err := dispatcher.CreateSendEvents(ctx, "s1", "southwark", destinations); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := dispatcher.CreateSendEvents(ctx, "s1", "southwark", destinations)
	if err != nil {
		t.Fatalf("retry must succeed, got %v", err)
	}
	for _, destination := range destinations {
		if results[destination].Message != "submission already scheduled" {
			t.Fatalf("expected conflict treated as success for %s, got %q", destination, results[destination].Message)
		}
		if results[destination].EventID != "" {
			t.Fatalf("deduplicated submission must not carry a new event id, got %q", results[destination].EventID)
		}
	}
	if len(sched.events) != 2 {
		t.Fatalf("scheduler must hold exactly 2 events, got %d", len(sched.events))
	}
}

func TestCreateSendEventsFailureNamesDestination(t *testing.T) {
	sched := &fakeScheduler{failFor: DestinationBOPS}
	dispatcher := NewSubmissionDispatcher(sched, "https://api.example.com/send")

	results, err := dispatcher.CreateSendEvents(context.Background(), "s1", "southwark", []string{DestinationEmail, DestinationBOPS, DestinationUniform})
	if err == nil {
		t.Fatal("expected scheduler failure to surface")
	}
	if results != nil {
		t.Fatalf("failed dispatch must not return partial results, got %v", results)
	}
	if !strings.Contains(err.Error(), "bops") || !strings.Contains(err.Error(), "s1") {
		t.Fatalf("error must name the failing destination and session, got %v", err)
	}
	// Email was scheduled before the failure and stays scheduled.
	if len(sched.events) != 1 || !strings.Contains(sched.events[0].Webhook, "/email/") {
		t.Fatalf("expected the email event to remain, got %v", sched.events)
	}
}

func TestCreateSendEventsUnknownDestination(t *testing.T) {
	dispatcher := NewSubmissionDispatcher(&fakeScheduler{}, "https://api.example.com/send")

	_, err := dispatcher.CreateSendEvents(context.Background(), "s1", "southwark", []string{"fax"})
	if !errors.Is(err, ErrUnknownDestination) {
		t.Fatalf("expected ErrUnknownDestination, got %v", err)
	}
	if !strings.Contains(err.Error(), "fax") {
		t.Fatalf("error must name the unknown destination, got %v", err)
	}
}

func TestCreateSendEventsEmptyDestinations(t *testing.T) {
	dispatcher := NewSubmissionDispatcher(&fakeScheduler{}, "https://api.example.com/send")

	if _, err := dispatcher.CreateSendEvents(context.Background(), "s1", "southwark", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
