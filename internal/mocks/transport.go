package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"chat-client/internal/ws"
)

// Emission is one event sent through a Transport fake.
type Emission struct {
	Event   string
	Payload any
}

// Transport is an in-memory ws.Transport. Fire delivers an inbound event to
// the registered handlers synchronously on the calling goroutine.
type Transport struct {
	ClientID string
	// EmitErr, when set, is returned by Emit and the emission is not recorded.
	EmitErr error

	mu       sync.RWMutex
	next     ws.ListenerID
	handlers map[string]map[ws.ListenerID]ws.Handler
	order    map[string][]ws.ListenerID

	emitMu    sync.Mutex
	emits     []Emission
	connected bool
}

func NewTransport(clientID string) *Transport {
	return &Transport{
		ClientID: clientID,
		handlers: make(map[string]map[ws.ListenerID]ws.Handler),
		order:    make(map[string][]ws.ListenerID),
	}
}

type registrar struct{ t *Transport }

func (r registrar) On(event string, h ws.Handler) ws.ListenerID {
	t := r.t
	t.next++
	if t.handlers[event] == nil {
		t.handlers[event] = make(map[ws.ListenerID]ws.Handler)
	}
	t.handlers[event][t.next] = h
	t.order[event] = append(t.order[event], t.next)
	return t.next
}

func (r registrar) Off(event string, id ws.ListenerID) {
	t := r.t
	delete(t.handlers[event], id)
	ids := t.order[event]
	for i, v := range ids {
		if v == id {
			t.order[event] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

func (t *Transport) On(event string, h ws.Handler) ws.ListenerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return registrar{t}.On(event, h)
}

func (t *Transport) Off(event string, id ws.ListenerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	registrar{t}.Off(event, id)
}

func (t *Transport) Rebind(fn func(r ws.Registrar)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(registrar{t})
}

func (t *Transport) Connect(context.Context) error {
	t.emitMu.Lock()
	t.connected = true
	t.emitMu.Unlock()
	return nil
}

func (t *Transport) Disconnect() error {
	t.emitMu.Lock()
	t.connected = false
	t.emitMu.Unlock()
	return nil
}

func (t *Transport) Connected() bool {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	return t.connected
}

func (t *Transport) ID() string { return t.ClientID }

func (t *Transport) Emit(event string, payload any) error {
	if t.EmitErr != nil {
		return t.EmitErr
	}
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	t.emits = append(t.emits, Emission{Event: event, Payload: payload})
	return nil
}

// Emits returns everything sent so far.
func (t *Transport) Emits() []Emission {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()
	return append([]Emission(nil), t.emits...)
}

// EmitsOf returns the payloads sent under event.
func (t *Transport) EmitsOf(event string) []any {
	var out []any
	for _, e := range t.Emits() {
		if e.Event == event {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (t *Transport) ResetEmits() {
	t.emitMu.Lock()
	t.emits = nil
	t.emitMu.Unlock()
}

// Listeners counts registered handlers for event, or all when event is "".
func (t *Transport) Listeners(event string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if event != "" {
		return len(t.order[event])
	}
	n := 0
	for _, ids := range t.order {
		n += len(ids)
	}
	return n
}

// Fire delivers event to every handler. A string or json.RawMessage payload
// is passed through as raw JSON; anything else is marshalled.
func (t *Transport) Fire(event string, payload any) {
	var data json.RawMessage
	switch p := payload.(type) {
	case nil:
	case json.RawMessage:
		data = p
	case string:
		data = json.RawMessage(p)
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			panic(err)
		}
		data = raw
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.order[event] {
		t.handlers[event][id](data)
	}
}
