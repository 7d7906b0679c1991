package events

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus(nil)

	var received *Event
	var callCount int

	bus.Subscribe(EventReservationApproved, func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := ReservationEventPayload{ReservationID: 7, ResourceKind: "space", Status: "approved"}
	if err := bus.PublishJSON(EventReservationApproved, payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.ID == "" {
		t.Errorf("expected event id to be assigned")
	}

	var decoded ReservationEventPayload
	if err := received.Decode(&decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded.ReservationID != 7 || decoded.Status != "approved" {
		t.Errorf("unexpected payload %+v", decoded)
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return nil })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	bus.Publish(&Event{Type: "event"})

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusHandlerErrorDoesNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	bus := NewEventBus(&logger)

	called := false
	bus.Subscribe("event", func(_ *Event) error { return errors.New("broken") })
	bus.Subscribe("event", func(_ *Event) error { called = true; return nil })

	bus.Publish(&Event{Type: "event"})

	if !called {
		t.Errorf("second handler was not called")
	}
	if !bytes.Contains(buf.Bytes(), []byte("event handler failed")) {
		t.Errorf("expected handler error to be logged, got %s", buf.String())
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	bus.Publish(&Event{Type: "nobody"})
}

func TestNilBusPublishJSON(t *testing.T) {
	var bus *EventBus
	if err := bus.PublishJSON("x", map[string]int{"a": 1}); err != nil {
		t.Errorf("expected nil error on nil bus, got %v", err)
	}
}

func TestPublishJSONBadPayload(t *testing.T) {
	bus := NewEventBus(nil)
	if err := bus.PublishJSON("x", make(chan int)); err == nil {
		t.Errorf("expected marshal error")
	}
}
