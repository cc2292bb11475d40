package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan SessionStartedEvent, 1)

	unsub := bus.Subscribe(func(e SessionStartedEvent) {
		received <- e
	})
	defer unsub()

	event := SessionStartedEvent{
		SessionID: "8c1f0b2a",
		Selection: "truedepth",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.SessionID != event.SessionID {
		t.Errorf("Expected session_id %s, got %s", event.SessionID, got.SessionID)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan BundleDispatchedEvent, 1)
	received2 := make(chan BundleDispatchedEvent, 1)

	unsub1 := bus.Subscribe(func(e BundleDispatchedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e BundleDispatchedEvent) {
		received2 <- e
	})
	defer unsub2()

	event := BundleDispatchedEvent{
		SessionID:       "8c1f0b2a",
		TimestampMillis: 200,
		HasDepth:        true,
	}
	bus.Publish(event)

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan SinkErrorEvent, 1)

	unsub := bus.Subscribe(func(e SinkErrorEvent) {
		received <- e
	})

	bus.Publish(SinkErrorEvent{Stage: "log"})
	<-received

	unsub()

	bus.Publish(SinkErrorEvent{Stage: "distortion"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	droppedReceived := make(chan bool, 1)
	bundleReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ SampleDroppedEvent) {
		droppedReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ BundleDispatchedEvent) {
		bundleReceived <- true
	})
	defer unsub2()

	// Publish SampleDroppedEvent
	bus.Publish(SampleDroppedEvent{Source: "depth", Reason: "late_data"})
	<-droppedReceived

	select {
	case <-bundleReceived:
		t.Fatal("Bundle subscriber should NOT have received SampleDroppedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	// Publish BundleDispatchedEvent
	bus.Publish(BundleDispatchedEvent{TimestampMillis: 100})
	<-bundleReceived

	select {
	case <-droppedReceived:
		t.Fatal("Drop subscriber should NOT have received BundleDispatchedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ SampleDroppedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(SampleDroppedEvent{
					Source: "video",
					Reason: "late_data",
				})
			}
		}()
	}

	wg.Wait()

	// Read all expected events
	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"SessionStarted", SessionStartedEvent{SessionID: "s1"}},
		{"SessionStopped", SessionStoppedEvent{SessionID: "s1", Reason: "requested"}},
		{"StateChanged", StateChangedEvent{From: "idle", To: "configuring"}},
		{"SampleDropped", SampleDroppedEvent{Source: "depth", Reason: "late_data"}},
		{"BundleDispatched", BundleDispatchedEvent{TimestampMillis: 100}},
		{"CalibrationPersisted", CalibrationPersistedEvent{TimestampMillis: 100}},
		{"SinkError", SinkErrorEvent{Stage: "log"}},
		{"ConfigReloaded", ConfigReloadedEvent{Path: "/tmp/config.toml"}},
		{"LogEntry", LogEntryEvent{Seq: 1, Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case SessionStartedEvent:
				unsub = bus.Subscribe(func(e SessionStartedEvent) { received <- e })
			case SessionStoppedEvent:
				unsub = bus.Subscribe(func(e SessionStoppedEvent) { received <- e })
			case StateChangedEvent:
				unsub = bus.Subscribe(func(e StateChangedEvent) { received <- e })
			case SampleDroppedEvent:
				unsub = bus.Subscribe(func(e SampleDroppedEvent) { received <- e })
			case BundleDispatchedEvent:
				unsub = bus.Subscribe(func(e BundleDispatchedEvent) { received <- e })
			case CalibrationPersistedEvent:
				unsub = bus.Subscribe(func(e CalibrationPersistedEvent) { received <- e })
			case SinkErrorEvent:
				unsub = bus.Subscribe(func(e SinkErrorEvent) { received <- e })
			case ConfigReloadedEvent:
				unsub = bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event any
	}{
		{
			"SessionStartedEvent",
			SessionStartedEvent{
				SessionID: "8c1f0b2a",
				Selection: "truedepth",
				Timestamp: "2025-01-27T10:30:00Z",
			},
		},
		{
			"BundleDispatchedEvent",
			BundleDispatchedEvent{
				SessionID:       "8c1f0b2a",
				TimestampMillis: 1533.3,
				HasDepth:        true,
				HasRegion:       false,
			},
		},
		{
			"CalibrationPersistedEvent",
			CalibrationPersistedEvent{
				TimestampMillis: 1533.3,
				Description:     "ref=640x480 pixelsize=0.0014",
				DistortionBytes: 128,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}

			if len(result) == 0 {
				t.Fatal("Unmarshaled to empty object")
			}
		})
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[BundleDispatchedEvent](bus, ch)
	defer unsub()

	event := BundleDispatchedEvent{
		SessionID:       "8c1f0b2a",
		TimestampMillis: 200,
	}
	bus.Publish(event)

	received := <-ch
	bundleEvent, ok := received.(BundleDispatchedEvent)
	if !ok {
		t.Fatalf("Expected BundleDispatchedEvent, got %T", received)
	}
	if bundleEvent.SessionID != event.SessionID {
		t.Errorf("Expected session_id %s, got %s", event.SessionID, bundleEvent.SessionID)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[SampleDroppedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SampleDroppedEvent{Source: "depth", Reason: "late_data"})
		done <- true
	}()

	<-done // Should complete without blocking
}
