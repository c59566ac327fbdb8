package service

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

func TestEventHubDelivery(t *testing.T) {
	hub := NewEventHub(2, zap.NewNop())
	idA, a := hub.Subscribe()
	_, b := hub.Subscribe()

	if hub.Subscribers() != 2 {
		t.Fatalf("Subscribers() = %d, want 2", hub.Subscribers())
	}

	ev := domain.CommitEvent{ID: uuid.New(), CycleID: uuid.New()}
	if missed := hub.Publish(ev); missed != 0 {
		t.Errorf("Publish missed %d subscribers", missed)
	}
	if got := <-a; got.ID != ev.ID {
		t.Errorf("subscriber a got %s, want %s", got.ID, ev.ID)
	}
	if got := <-b; got.ID != ev.ID {
		t.Errorf("subscriber b got %s, want %s", got.ID, ev.ID)
	}

	hub.Unsubscribe(idA)
	if _, ok := <-a; ok {
		t.Error("channel should be closed after Unsubscribe")
	}
	hub.Unsubscribe(idA)
	if hub.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", hub.Subscribers())
	}
}

func TestEventHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewEventHub(1, zap.NewNop())
	_, slow := hub.Subscribe()

	hub.Publish(domain.CommitEvent{ID: uuid.New()})
	missed := hub.Publish(domain.CommitEvent{ID: uuid.New()})

	if missed != 1 {
		t.Errorf("second Publish missed %d, want 1", missed)
	}
	if hub.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", hub.Dropped())
	}
	if len(slow) != 1 {
		t.Errorf("slow subscriber buffered %d events, want 1", len(slow))
	}
}
