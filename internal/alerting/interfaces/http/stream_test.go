package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	alerting "fleetops-cloud/internal/alerting/domain"
)

func TestSSEBroker_DeliversAlertToSubscribers(t *testing.T) {
	broker := NewSSEBroker("alerts")
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	msg := alerting.Message{
		Threshold:             3,
		WindowDurationSeconds: 300,
		ObservedCount:         4,
		TriggeringEventID:     "evt-9",
		WindowEnd:             time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
	}
	if err := broker.Send(context.Background(), msg); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case payload := <-ch:
		var got alerting.Message
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if got.TriggeringEventID != "evt-9" || got.ObservedCount != 4 {
			t.Fatalf("unexpected payload %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no payload delivered")
	}
}

func TestSSEBroker_DropsWhenClientLagging(t *testing.T) {
	broker := NewSSEBroker("alerts")
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	// fill the client buffer and then some; Publish must never block
	done := make(chan struct{})
	go func() {
		for i := 0; i < 40; i++ {
			broker.Publish([]byte("{}"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a lagging client")
	}
}

func TestSSEBroker_UnsubscribeClosesChannel(t *testing.T) {
	broker := NewSSEBroker("alerts")
	ch := broker.Subscribe()
	broker.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestStreamHandler_StreamsPublishedFrames(t *testing.T) {
	broker := NewSSEBroker("alerts")
	server := httptest.NewServer(NewStreamHandler(broker, "alert"))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readFrame := func() (string, string) {
		t.Helper()
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			line = strings.TrimRight(line, "\n")
			switch {
			case line == "":
				return event, data
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			}
		}
	}

	// the ready handshake is written after the subscription, so a
	// publish from here on is guaranteed to reach the client
	if event, _ := readFrame(); event != "ready" {
		t.Fatalf("expected ready handshake, got %q", event)
	}

	if err := broker.Send(context.Background(), alerting.Message{
		Threshold:         3,
		ObservedCount:     4,
		TriggeringEventID: "evt-9",
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	event, data := readFrame()
	if event != "alert" {
		t.Fatalf("expected alert frame, got %q", event)
	}
	var got alerting.Message
	if err := json.Unmarshal([]byte(data), &got); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if got.ObservedCount != 4 || got.TriggeringEventID != "evt-9" {
		t.Fatalf("unexpected frame %+v", got)
	}
}

func TestStreamHandler_RejectsNonGet(t *testing.T) {
	handler := NewStreamHandler(NewSSEBroker("alerts"), "alert")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stream", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
