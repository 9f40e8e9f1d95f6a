package sse

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/lectern/internal/notify"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "library.updated", Data: map[string]string{"path": "books.json"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: library.updated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"books.json"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func drain(ch chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestProgressThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The first update goes out, the second falls inside the window.
	b.Progress("BookA.epub 10%")
	b.Progress("BookA.epub 20%")

	msgs := drain(ch)
	if len(msgs) != 1 {
		t.Fatalf("progress events = %d, want 1 (throttled): %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "event: sync.progress") || !strings.Contains(msgs[0], "10%") {
		t.Errorf("unexpected event %q", msgs[0])
	}
}

func TestNotifyCarriesID(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify(notify.Warning, "remote not connected")
	b.Notify(notify.Warning, "remote not connected")

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("notifications = %d, want 2", len(msgs))
	}
	var ids []string
	for _, m := range msgs {
		lines := strings.SplitN(m, "\n", 3)
		if len(lines) < 3 || !strings.HasPrefix(lines[0], "id: ") || lines[1] != "event: notification" {
			t.Fatalf("unexpected event %q", m)
		}
		var n Notification
		data := strings.TrimSpace(strings.TrimPrefix(lines[2], "data: "))
		if err := json.Unmarshal([]byte(data), &n); err != nil {
			t.Fatalf("decode %q: %v", data, err)
		}
		if n.Level != notify.Warning || n.Message != "remote not connected" || n.ID == "" {
			t.Errorf("notification = %+v", n)
		}
		if lines[0] != "id: "+n.ID {
			t.Errorf("id line %q does not match payload id %q", lines[0], n.ID)
		}
		ids = append(ids, n.ID)
	}
	if ids[0] == ids[1] {
		t.Error("notification ids should be unique")
	}
}

func TestPublishIndexEvent(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishIndexEvent("updated", "h1/config.json")
	b.PublishIndexEvent("library", "books.json")
	b.PublishIndexEvent("bogus", "x")

	msgs := drain(ch)
	if len(msgs) != 2 {
		t.Fatalf("events = %q", msgs)
	}
	if !strings.Contains(msgs[0], "event: highlights.updated") || !strings.Contains(msgs[0], `"path":"h1/config.json"`) {
		t.Errorf("first = %q", msgs[0])
	}
	if !strings.Contains(msgs[1], "event: library.updated") {
		t.Errorf("second = %q", msgs[1])
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "highlights.updated", Data: map[string]string{"path": "h1/config.json"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: highlights.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "highlights.updated", Data: map[string]string{"path": "h1/config.json"}})
	b.PublishIndexEvent("updated", "h1/config.json")
	b.Notify(notify.Info, "ignored")
	b.Progress("ignored")
}
