package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"stocksetup/pkg/contracts/events"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func TestHubBroadcastDeliversToClients(t *testing.T) {
	h := newRunningHub(t)

	client := &Client{hub: h, send: make(chan []byte, 4)}
	h.register <- client

	h.Broadcast(events.NewSetupEvent(events.TypeSetupProgress, "u1", 2, nil))

	select {
	case data := <-client.send:
		var ev events.SetupEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if ev.Type != events.TypeSetupProgress || ev.Step != 2 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHubStopDisconnectsClients(t *testing.T) {
	h := newRunningHub(t)

	client := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- client

	h.Stop()

	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected the send channel to be closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after stop")
	}
}

func TestHubStopUnblocksLateDisconnect(t *testing.T) {
	h := newRunningHub(t)

	client := &Client{hub: h, send: make(chan []byte, 1)}
	h.register <- client

	h.Stop()
	h.Stop() // repeated stop is a no-op

	// A client disconnecting after the hub has stopped must not block.
	detached := make(chan struct{})
	go func() {
		client.detach()
		close(detached)
	}()

	select {
	case <-detached:
	case <-time.After(2 * time.Second):
		t.Fatal("detach blocked after stop")
	}

	// Broadcast after stop is a silent no-op.
	h.Broadcast(events.NewSetupEvent(events.TypeSetupComplete, "u1", 6, nil))
}
