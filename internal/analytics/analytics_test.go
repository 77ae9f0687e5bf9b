package analytics

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"tenant_auth_backend/internal/scheduler"
	"tenant_auth_backend/platform/logger"

	"github.com/google/uuid"
)

type recordingQueue struct {
	payloads []scheduler.AnalyticsEventPayload
}

func (q *recordingQueue) EnqueueAnalyticsEvent(_ context.Context, p scheduler.AnalyticsEventPayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

func TestQueueTrackerAssignsIDAndTimestamp(t *testing.T) {
	queue := &recordingQueue{}
	tracker := NewQueueTracker(queue)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.now = func() time.Time { return fixed }

	orgID := uuid.New()
	err := tracker.Track(context.Background(), Event{
		Name:           EventUserRegistered,
		OrganizationID: orgID,
		Properties:     map[string]any{"source": "web"},
	})
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if len(queue.payloads) != 1 {
		t.Fatalf("expected one payload, got %d", len(queue.payloads))
	}
	p := queue.payloads[0]
	if p.ID == "" || !p.OccurredAt.Equal(fixed) {
		t.Fatalf("expected id and timestamp, got %+v", p)
	}
	if p.OrganizationID != orgID.String() || p.UserID != "" {
		t.Fatalf("unexpected ids: org=%q user=%q", p.OrganizationID, p.UserID)
	}
}

func TestTrackRejectsUnnamedEvents(t *testing.T) {
	if err := NewQueueTracker(&recordingQueue{}).Track(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for unnamed event")
	}
	if err := NewLogTracker(nil).Track(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error for unnamed event")
	}
}

func TestLogTrackerWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewLogTracker(logger.NewWithWriter("production", &buf))

	if err := tracker.Track(context.Background(), Event{Name: EventUserLoggedIn}); err != nil {
		t.Fatalf("track: %v", err)
	}
	if !strings.Contains(buf.String(), EventUserLoggedIn) {
		t.Fatalf("expected event in log output, got %q", buf.String())
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	if !strings.Contains(insertEventQuery, "ON CONFLICT (id) DO NOTHING") {
		t.Fatalf("redelivered events must not be stored twice")
	}
}
