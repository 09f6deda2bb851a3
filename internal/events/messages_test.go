package events

import (
	"testing"
	"time"

	"pocketmoney/internal/core"
)

func TestLedgerEventRoundTrip(t *testing.T) {
	event := NewLedgerEvent(42, core.AccountNour, ActionCreated)
	if event.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}

	body, err := event.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := LedgerEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ID != 42 || decoded.Account != "nour" || decoded.Action != ActionCreated {
		t.Fatalf("decoded = %+v, want id=42 account=nour action=created", decoded)
	}
	if !decoded.Timestamp.Truncate(time.Millisecond).Equal(event.Timestamp.Truncate(time.Millisecond)) {
		t.Fatalf("timestamp drifted: %v -> %v", event.Timestamp, decoded.Timestamp)
	}
}

func TestLedgerEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
