// Package stream subscribes to a worker's event stream on the routing engine
// and feeds events to a handler one at a time. All handler callbacks run on
// the subscriber's single goroutine.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/fvmach/BPO-Assignment/internal/engine"
)

const (
	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
)

// Handler receives decoded stream events.
type Handler func(ctx context.Context, ev engine.Event)

type Subscriber struct {
	URL     string
	Handler Handler
	Log     *slog.Logger
}

func NewSubscriber(url string, handler Handler, log *slog.Logger) *Subscriber {
	if log == nil {
		log = slog.Default()
	}
	return &Subscriber{URL: url, Handler: handler, Log: log}
}

// Run connects and reads until ctx is canceled, reconnecting with exponential
// backoff after connection loss.
func (s *Subscriber) Run(ctx context.Context) error {
	delay := baseReconnectDelay
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.Log.Warn("event stream disconnected, reconnecting", "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (s *Subscriber) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")
	s.Log.Info("event stream connected", "url", s.URL)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		s.dispatch(ctx, data)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, data []byte) {
	var ev engine.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		s.Log.Warn("dropping undecodable stream event", "error", err)
		return
	}
	if ev.Type == "" {
		return
	}
	s.Handler(ctx, ev)
}
