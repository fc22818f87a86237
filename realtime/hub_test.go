package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"tilequest/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewLevelCompleted("s1", 4, 20, 3)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.SessionID != "s1" || received.Type != core.EventLevelCompleted {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if h.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Subscribers())
	}
}

func TestHubTypeFilterAndDrops(t *testing.T) {
	h := NewHub()
	_, claimsOnly := h.Subscribe(1, core.EventAddressSubmitted)

	h.Broadcast(context.Background(), core.NewLevelStarted("s", 1))
	h.Broadcast(context.Background(), core.NewAddressSubmitted("s", 10, "0xabc", 1))
	h.Broadcast(context.Background(), core.NewAddressSubmitted("s", 25, "0xabc", 2))

	got := <-claimsOnly
	if got.Type != core.EventAddressSubmitted || got.Level != 10 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if h.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", h.Dropped())
	}
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewRewardClaimed("s", 10, "0xabc")
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Wallet != "0xabc" || out.Level != 10 {
		t.Fatalf("unexpected event: %+v", out)
	}
}
