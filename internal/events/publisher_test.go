package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventAnalysisCompleted, AnalysisCompletedEvent{
		AnalysisID: "analysis-1",
		ExamID:     "exam-1",
		SampleSize: 8,
	})

	if event.ID == "" {
		t.Error("expected non-empty event ID")
	}
	if event.Type != EventAnalysisCompleted {
		t.Errorf("expected type %q, got %q", EventAnalysisCompleted, event.Type)
	}
	if event.Source != "analysis-service" {
		t.Errorf("expected source analysis-service, got %q", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("expected version 1.0, got %q", event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected non-zero timestamp")
	}

	second := NewEvent(EventAnalysisCompleted, nil)
	if second.ID == event.ID {
		t.Error("expected unique event IDs")
	}
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	if err := publisher.Publish(ctx, NewEvent(EventAnalysisCompleted, nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := publisher.Publish(ctx, NewEvent(EventIntegrityPairsFlagged, IntegrityPairsFlaggedEvent{
		ExamID:     "exam-1",
		TotalPairs: 15,
	})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 2 {
		t.Fatalf("expected 2 events, got %d", len(published))
	}
	if published[0].Type != EventAnalysisCompleted {
		t.Errorf("expected first event %q, got %q", EventAnalysisCompleted, published[0].Type)
	}
	if published[1].Type != EventIntegrityPairsFlagged {
		t.Errorf("expected second event %q, got %q", EventIntegrityPairsFlagged, published[1].Type)
	}

	payload, ok := published[1].Data.(IntegrityPairsFlaggedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", published[1].Data)
	}
	if payload.ExamID != "exam-1" || payload.TotalPairs != 15 {
		t.Errorf("unexpected payload: %+v", payload)
	}

	publisher.ClearEvents()
	if len(publisher.GetPublishedEvents()) != 0 {
		t.Error("expected no events after clear")
	}

	if err := publisher.Close(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}
}
