package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/fvmach/BPO-Assignment/internal/engine"
)

type capturedEvents struct {
	events []engine.Event
}

func (c *capturedEvents) handle(_ context.Context, ev engine.Event) {
	c.events = append(c.events, ev)
}

func TestDispatchDecodesEvents(t *testing.T) {
	cap := &capturedEvents{}
	s := NewSubscriber("", cap.handle, nil)

	s.dispatch(context.Background(), []byte(`{
		"type": "task.updated",
		"reservationSid": "WR1",
		"taskSid": "WT1",
		"taskChannel": "voice",
		"assignmentStatus": "assigned",
		"attributes": {"transferTo": "WK999"}
	}`))

	if len(cap.events) != 1 {
		t.Fatalf("got %d events, want 1", len(cap.events))
	}
	ev := cap.events[0]
	if ev.Type != engine.EventTaskUpdated || ev.TaskSid != "WT1" || ev.AssignmentStatus != "assigned" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	var attrs map[string]string
	if err := json.Unmarshal(ev.Attributes, &attrs); err != nil || attrs["transferTo"] != "WK999" {
		t.Fatalf("attributes = %s (err %v)", ev.Attributes, err)
	}
}

func TestDispatchDropsGarbage(t *testing.T) {
	cap := &capturedEvents{}
	s := NewSubscriber("", cap.handle, nil)

	s.dispatch(context.Background(), []byte(`not json`))
	s.dispatch(context.Background(), []byte(`{"reservationSid":"WR1"}`)) // no type
	if len(cap.events) != 0 {
		t.Fatalf("garbage must be dropped, got %v", cap.events)
	}
}

func TestSubscriberReadsFromSocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		_ = conn.Write(r.Context(), websocket.MessageText,
			[]byte(`{"type":"reservation.created","reservationSid":"WR1","taskSid":"WT1"}`))
		// Keep the connection open until the client goes away.
		_, _, _ = conn.Read(r.Context())
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan engine.Event, 1)
	s := NewSubscriber(strings.Replace(srv.URL, "http://", "ws://", 1), func(_ context.Context, ev engine.Event) {
		got <- ev
		cancel()
	}, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case ev := <-got:
		if ev.Type != engine.EventReservationCreated || ev.ReservationSid != "WR1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
	}

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
