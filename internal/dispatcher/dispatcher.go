// Package dispatcher binds inbound transport events to Store transitions
// and Store commands to outbound transport events.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/present"
	"chat-client/internal/ws"
)

// State is the part of the Store the handlers read and mutate.
type State interface {
	ConnectionState() models.ConnectionState
	ActiveRoom() string
	ActiveConversation() string
	Room(id string) (models.Room, bool)

	SetConnectionState(state models.ConnectionState)
	ReplaceUsers(users []models.User)
	ReplaceRooms(rooms []models.Room)
	ReplaceMessages(msgs []models.Message) bool
	AppendRoom(room models.Room)
	ApplyRoomMessage(msg models.Message) bool
	AppendPrivateMessage(key string, msg models.PrivateMessage)
	SetTyping(username string, typing bool)
	ReplaceReactions(messageID string, reactions models.Reactions) bool
}

// Notifier surfaces activity to the user.
type Notifier interface {
	RoomCreated(room models.Room)
	RoomMessage(msg models.Message, roomName string)
	RoomMessageOnScreen(msg models.Message)
	PrivateMessage(msg models.PrivateMessage, onScreen bool)
	Presence(p models.RoomPresence, joined bool)
}

type subscription struct {
	event string
	id    ws.ListenerID
}

// Dispatcher owns the handler set registered on the transport.
type Dispatcher struct {
	transport ws.Transport
	self      models.Identity
	notifier  Notifier
	log       *zap.Logger
	tracer    trace.Tracer

	state State

	mu   sync.Mutex
	subs []subscription

	// autoJoined is set once join_room went out for the current connection.
	autoJoined atomic.Bool
}

// New builds a Dispatcher. Attach must be called before Subscribe.
func New(transport ws.Transport, self models.Identity, notifier Notifier, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		transport: transport,
		self:      self,
		notifier:  notifier,
		log:       log,
		tracer:    otel.Tracer("chat-client/dispatcher"),
	}
}

// Attach sets the state the handlers operate on.
func (d *Dispatcher) Attach(state State) {
	d.state = state
}

// Subscribe replaces the registered handler set with a fresh one. The swap
// is atomic with respect to delivery so no event is handled twice or lost
// between the old and the new set.
func (d *Dispatcher) Subscribe() {
	handlers := d.handlers()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.transport.Rebind(func(r ws.Registrar) {
		for _, s := range d.subs {
			r.Off(s.event, s.id)
		}
		d.subs = d.subs[:0]
		for event, h := range handlers {
			d.subs = append(d.subs, subscription{event: event, id: r.On(event, d.wrap(event, h))})
		}
	})
	d.log.Debug("handlers subscribed", zap.Int("count", len(d.subs)), zap.String("room", d.state.ActiveRoom()))
}

// Unsubscribe removes every handler the dispatcher registered.
func (d *Dispatcher) Unsubscribe() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transport.Rebind(func(r ws.Registrar) {
		for _, s := range d.subs {
			r.Off(s.event, s.id)
		}
	})
	d.subs = nil
}

// Emit sends a command. Commands are fire-and-forget; a failed send is
// logged, counted and returned to the caller.
func (d *Dispatcher) Emit(command string, payload any) error {
	if err := d.transport.Emit(command, payload); err != nil {
		observability.IncCommand(command, "dropped")
		d.log.Warn("command dropped", zap.String("command", command), zap.Error(err))
		return err
	}
	observability.IncCommand(command, "sent")
	d.log.Debug("command sent", zap.String("command", command))
	return nil
}

// RoomChanged re-subscribes after the active room moved.
func (d *Dispatcher) RoomChanged(roomID string) {
	d.autoJoined.Store(true)
	d.Subscribe()
}

var errEmptyPayload = errors.New("empty payload")

type handlerFunc func(data json.RawMessage) error

func (d *Dispatcher) handlers() map[string]handlerFunc {
	return map[string]handlerFunc{
		models.EventConnecting:        d.onConnecting,
		models.EventConnect:           d.onConnected,
		models.EventReconnect:         d.onConnected,
		models.EventDisconnect:        d.onDisconnect,
		models.EventReconnectAttempt:  d.onReconnectAttempt,
		models.EventUsersUpdate:       d.onUsersUpdate,
		models.EventUserAuthenticated: d.onUserAuthenticated,
		models.EventRoomsList:         d.onRoomsList,
		models.EventRoomMessages:      d.onRoomMessages,
		models.EventNewRoom:           d.onNewRoom,
		models.EventNewMessage:        d.onNewMessage,
		models.EventPrivateMessage:    d.onPrivateMessage,
		models.EventMessageDelivered:  d.onMessageDelivered,
		models.EventUserTyping:        d.onUserTyping,
		models.EventReactionUpdate:    d.onReactionUpdate,
		models.EventUserJoinedRoom:    d.onPresence(true),
		models.EventUserLeftRoom:      d.onPresence(false),
	}
}

func (d *Dispatcher) wrap(event string, h handlerFunc) ws.Handler {
	return func(data json.RawMessage) {
		_, span := d.tracer.Start(context.Background(), "dispatch "+event,
			trace.WithAttributes(attribute.String("chat.event", event)))
		defer span.End()

		if err := h(data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.IncInboundEvent(event, "dropped")
			d.log.Warn("dropping event", zap.String("event", event), zap.Error(err))
			return
		}
		observability.IncInboundEvent(event, "ok")
	}
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, errEmptyPayload
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

func (d *Dispatcher) onConnecting(json.RawMessage) error {
	d.state.SetConnectionState(models.StateConnecting)
	return nil
}

// onConnected handles both the first connection and every later one: the
// server forgets us on disconnect so identity is announced each time.
func (d *Dispatcher) onConnected(json.RawMessage) error {
	d.autoJoined.Store(false)
	d.state.SetConnectionState(models.StateConnected)
	_ = d.Emit(models.CommandUserJoin, d.self)
	return nil
}

func (d *Dispatcher) onDisconnect(json.RawMessage) error {
	d.state.SetConnectionState(models.StateDisconnected)
	return nil
}

func (d *Dispatcher) onReconnectAttempt(json.RawMessage) error {
	d.state.SetConnectionState(models.StateReconnecting)
	return nil
}

func (d *Dispatcher) onUsersUpdate(data json.RawMessage) error {
	users, err := decode[[]models.User](data)
	if err != nil {
		return err
	}
	d.state.ReplaceUsers(users)
	return nil
}

func (d *Dispatcher) onUserAuthenticated(data json.RawMessage) error {
	d.log.Debug("user authenticated", zap.ByteString("user", data))
	return nil
}

// onRoomsList also performs the auto-join: once per connection the active
// room is (re)joined so the server sends its log.
func (d *Dispatcher) onRoomsList(data json.RawMessage) error {
	rooms, err := decode[[]models.Room](data)
	if err != nil {
		return err
	}
	d.state.ReplaceRooms(rooms)

	if d.state.ConnectionState() != models.StateConnected {
		return nil
	}
	if room := d.state.ActiveRoom(); room != "" && d.autoJoined.CompareAndSwap(false, true) {
		_ = d.Emit(models.CommandJoinRoom, room)
	}
	return nil
}

func (d *Dispatcher) onRoomMessages(data json.RawMessage) error {
	msgs, err := decode[[]models.Message](data)
	if err != nil {
		return err
	}
	if !d.state.ReplaceMessages(msgs) {
		d.log.Debug("dropping stale room log", zap.String("active_room", d.state.ActiveRoom()))
	}
	return nil
}

func (d *Dispatcher) onNewRoom(data json.RawMessage) error {
	room, err := decode[models.Room](data)
	if err != nil {
		return err
	}
	d.state.AppendRoom(room)
	d.notifier.RoomCreated(room)
	return nil
}

func (d *Dispatcher) onNewMessage(data json.RawMessage) error {
	msg, err := decode[models.Message](data)
	if err != nil {
		return err
	}
	if d.state.ApplyRoomMessage(msg) {
		d.notifier.RoomMessageOnScreen(msg)
		return nil
	}
	room, _ := d.state.Room(msg.RoomID)
	d.notifier.RoomMessage(msg, room.Name)
	return nil
}

func (d *Dispatcher) onPrivateMessage(data json.RawMessage) error {
	msg, err := decode[models.PrivateMessage](data)
	if err != nil {
		return err
	}
	key := conversationKey(msg)
	if key == "" {
		return fmt.Errorf("private message %s has no participants", msg.ID)
	}
	d.state.AppendPrivateMessage(key, msg)
	d.notifier.PrivateMessage(msg, d.state.ActiveConversation() == key)
	return nil
}

func conversationKey(msg models.PrivateMessage) string {
	if msg.Sender != "" && msg.Recipient != "" {
		return present.ConversationKey(msg.Sender, msg.Recipient)
	}
	return msg.ConversationID
}

func (d *Dispatcher) onMessageDelivered(data json.RawMessage) error {
	d.log.Debug("message delivered", zap.ByteString("receipt", data))
	return nil
}

func (d *Dispatcher) onUserTyping(data json.RawMessage) error {
	ev, err := decode[models.TypingEvent](data)
	if err != nil {
		return err
	}
	d.state.SetTyping(ev.Username, ev.IsTyping)
	return nil
}

func (d *Dispatcher) onReactionUpdate(data json.RawMessage) error {
	upd, err := decode[models.ReactionUpdate](data)
	if err != nil {
		return err
	}
	if !d.state.ReplaceReactions(upd.MessageID, upd.Reactions) {
		d.log.Debug("reaction update for unknown message", zap.String("message_id", upd.MessageID))
	}
	return nil
}

func (d *Dispatcher) onPresence(joined bool) handlerFunc {
	return func(data json.RawMessage) error {
		p, err := decode[models.RoomPresence](data)
		if err != nil {
			return err
		}
		if p.RoomID != d.state.ActiveRoom() {
			return nil
		}
		d.notifier.Presence(p, joined)
		return nil
	}
}
