// Package ws implements the channel transport: a named-event, auto
// reconnecting websocket link to the chat server.
package ws

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotConnected is returned by Emit while the link is down.
	ErrNotConnected = errors.New("transport not connected")
	// ErrClosed is returned once Disconnect has been called.
	ErrClosed = errors.New("transport closed")
)

// Handler receives the raw data of one inbound event. Lifecycle events carry
// no data.
type Handler func(data json.RawMessage)

// ListenerID identifies a registration so it can be removed again.
type ListenerID uint64

// Registrar adds and removes event handlers.
type Registrar interface {
	On(event string, h Handler) ListenerID
	Off(event string, id ListenerID)
}

// Transport is the boundary the dispatcher talks to.
type Transport interface {
	Registrar
	Connect(ctx context.Context) error
	Disconnect() error
	Emit(event string, payload any) error
	// Rebind gives fn exclusive access to the handler table. No event is
	// delivered while fn runs. It must not be called from inside a handler.
	Rebind(fn func(r Registrar))
	// ID is the client identity, stable across reconnects.
	ID() string
}

// Frame is the JSON envelope of a single event on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame builds the wire form of an event. A nil payload omits data.
func EncodeFrame(event string, payload any) ([]byte, error) {
	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		frame.Data = data
	}
	return json.Marshal(frame)
}

type listener struct {
	id ListenerID
	h  Handler
}

// handlerTable is the registry shared by Client and test fakes. It is not
// safe for concurrent use on its own.
type handlerTable struct {
	next     ListenerID
	handlers map[string][]listener
}

func newHandlerTable() handlerTable {
	return handlerTable{handlers: make(map[string][]listener)}
}

func (t *handlerTable) On(event string, h Handler) ListenerID {
	t.next++
	t.handlers[event] = append(t.handlers[event], listener{id: t.next, h: h})
	return t.next
}

func (t *handlerTable) Off(event string, id ListenerID) {
	ls := t.handlers[event]
	for i, l := range ls {
		if l.id == id {
			t.handlers[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(t.handlers[event]) == 0 {
		delete(t.handlers, event)
	}
}

func (t *handlerTable) lookup(event string) []listener {
	return t.handlers[event]
}

func (t *handlerTable) count() int {
	n := 0
	for _, ls := range t.handlers {
		n += len(ls)
	}
	return n
}
