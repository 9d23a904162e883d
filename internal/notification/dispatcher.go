package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIgnored is returned when a notification is valid but needs no processing.
var ErrIgnored = errors.New("notification ignored")

// Event is the envelope Klarna posts to the notification endpoint.
type Event struct {
	EventID      string          `json:"event_id,omitempty"`
	EventType    string          `json:"event_type"`
	EventVersion string          `json:"event_version"`
	Payload      json.RawMessage `json:"payload"`
}

// Handler processes one (event type, version) pair.
type Handler interface {
	EventType() string
	EventVersion() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

type route struct {
	eventType string
	version   string
}

// Dispatcher selects the handler registered for an event.
type Dispatcher struct {
	handlers map[route]Handler
}

// NewDispatcher registers handlers. Two handlers for the same type and version are a
// configuration error.
func NewDispatcher(handlers ...Handler) (*Dispatcher, error) {
	d := &Dispatcher{handlers: make(map[route]Handler, len(handlers))}
	for _, h := range handlers {
		key := route{eventType: h.EventType(), version: h.EventVersion()}
		if _, dup := d.handlers[key]; dup {
			return nil, fmt.Errorf("notification: duplicate handler for %s %s", key.eventType, key.version)
		}
		d.handlers[key] = h
	}
	return d, nil
}

// Dispatch runs the matching handler. Events without a handler are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	h, ok := d.handlers[route{eventType: ev.EventType, version: ev.EventVersion}]
	if !ok {
		return ErrIgnored
	}
	return h.Handle(ctx, ev.Payload)
}
