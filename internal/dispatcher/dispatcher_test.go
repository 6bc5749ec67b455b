package dispatcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/store"
)

type harness struct {
	transport *mocks.Transport
	notifier  *mocks.NotifierMock
	store     *store.Store
	disp      *Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	self := models.Identity{Username: "alice", Avatar: "a.png"}
	h := &harness{
		transport: mocks.NewTransport("client-alice"),
		notifier:  new(mocks.NotifierMock),
	}
	h.disp = New(h.transport, self, h.notifier, nil)
	h.store = store.New(h.disp, self, "general")
	h.disp.Attach(h.store)
	h.disp.Subscribe()
	t.Cleanup(func() { h.notifier.AssertExpectations(t) })
	return h
}

var rooms = []models.Room{
	{ID: "general", Name: "General"},
	{ID: "random", Name: "Random"},
}

func (h *harness) connect() {
	h.transport.Fire(models.EventConnecting, nil)
	h.transport.Fire(models.EventConnect, nil)
	h.transport.Fire(models.EventRoomsList, rooms)
}

func TestConnectAnnouncesIdentityAndAutoJoins(t *testing.T) {
	h := newHarness(t)
	h.connect()

	assert.Equal(t, models.StateConnected, h.store.ConnectionState())
	assert.Equal(t, []any{models.Identity{Username: "alice", Avatar: "a.png"}}, h.transport.EmitsOf(models.CommandUserJoin))
	assert.Equal(t, []any{"general"}, h.transport.EmitsOf(models.CommandJoinRoom))
	assert.Len(t, h.store.Rooms(), 2)

	// a second roster on the same connection does not rejoin
	h.transport.Fire(models.EventRoomsList, rooms)
	assert.Len(t, h.transport.EmitsOf(models.CommandJoinRoom), 1)
}

func TestReconnectRepeatsHandshake(t *testing.T) {
	h := newHarness(t)
	h.connect()

	h.transport.Fire(models.EventDisconnect, nil)
	assert.Equal(t, models.StateDisconnected, h.store.ConnectionState())
	h.transport.Fire(models.EventReconnectAttempt, nil)
	assert.Equal(t, models.StateReconnecting, h.store.ConnectionState())

	h.transport.Fire(models.EventReconnect, nil)
	h.transport.Fire(models.EventRoomsList, rooms)

	assert.Equal(t, models.StateConnected, h.store.ConnectionState())
	assert.Len(t, h.transport.EmitsOf(models.CommandUserJoin), 2)
	assert.Equal(t, []any{"general", "general"}, h.transport.EmitsOf(models.CommandJoinRoom))
}

func TestRoomsListBeforeConnectDoesNotJoin(t *testing.T) {
	h := newHarness(t)
	h.transport.Fire(models.EventRoomsList, rooms)
	assert.Empty(t, h.transport.EmitsOf(models.CommandJoinRoom))
}

func TestAliceBobScenario(t *testing.T) {
	h := newHarness(t)
	h.connect()
	h.transport.Fire(models.EventRoomMessages, []models.Message{})

	hello := models.Message{ID: "m1", RoomID: "general", Sender: "bob", SenderID: "client-bob", Content: "hi alice", Type: models.TextMessage, Timestamp: time.Now().UTC()}
	h.notifier.On("RoomMessageOnScreen", mock.MatchedBy(func(m models.Message) bool { return m.ID == "m1" })).Once()
	h.transport.Fire(models.EventNewMessage, hello)

	msgs := h.store.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi alice", msgs[0].Content)
	assert.Zero(t, h.store.UnreadCount())

	elsewhere := models.Message{ID: "m2", RoomID: "random", Sender: "bob", SenderID: "client-bob", Content: "over here"}
	h.notifier.On("RoomMessage", mock.MatchedBy(func(m models.Message) bool { return m.ID == "m2" }), "Random").Once()
	h.transport.Fire(models.EventNewMessage, elsewhere)

	assert.Equal(t, 1, h.store.UnreadCount())
	assert.Len(t, h.store.Messages(), 1)

	require.NoError(t, h.store.JoinRoom("random"))
	assert.Zero(t, h.store.UnreadCount())
	assert.Empty(t, h.store.Messages())
	assert.Equal(t, []any{"general", "random"}, h.transport.EmitsOf(models.CommandJoinRoom))

	h.transport.Fire(models.EventRoomMessages, []models.Message{elsewhere})
	require.Len(t, h.store.Messages(), 1)
	assert.Equal(t, "m2", h.store.Messages()[0].ID)
}

func TestActiveRoomMessageIsSurfacedOnScreen(t *testing.T) {
	h := newHarness(t)
	h.connect()

	msg := models.Message{ID: "m9", RoomID: "general", Sender: "bob", SenderID: "client-bob", Content: "look"}
	h.notifier.On("RoomMessageOnScreen", mock.MatchedBy(func(m models.Message) bool { return m.ID == "m9" && m.Sender == "bob" })).Once()
	h.transport.Fire(models.EventNewMessage, msg)

	h.notifier.AssertNotCalled(t, "RoomMessage", mock.Anything, mock.Anything)
	assert.Len(t, h.store.Messages(), 1)
	assert.Zero(t, h.store.UnreadCount())
}

func TestUnknownRoomNameFallsThroughEmpty(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("RoomMessage", mock.Anything, "").Once()
	h.transport.Fire(models.EventNewMessage, models.Message{ID: "x", RoomID: "ghost", Sender: "bob"})
	assert.Equal(t, 1, h.store.UnreadCount())
}

func TestStaleRoomLogIsDropped(t *testing.T) {
	h := newHarness(t)
	h.connect()
	require.NoError(t, h.store.JoinRoom("random"))

	h.transport.Fire(models.EventRoomMessages, []models.Message{{ID: "old", RoomID: "general"}})
	assert.Empty(t, h.store.Messages())
}

func TestResubscribeNeverDoubleDelivers(t *testing.T) {
	h := newHarness(t)
	registered := h.transport.Listeners("")
	require.NotZero(t, registered)

	h.disp.Subscribe()
	require.NoError(t, h.store.JoinRoom("random"))
	require.NoError(t, h.store.JoinRoom("general"))

	assert.Equal(t, registered, h.transport.Listeners(""))
	assert.Equal(t, 1, h.transport.Listeners(models.EventNewMessage))

	h.notifier.On("RoomMessageOnScreen", mock.Anything).Once()
	h.transport.Fire(models.EventNewMessage, models.Message{ID: "m1", RoomID: "general"})
	assert.Len(t, h.store.Messages(), 1)

	h.disp.Unsubscribe()
	assert.Zero(t, h.transport.Listeners(""))
}

func TestPrivateMessageAppearsOnEcho(t *testing.T) {
	h := newHarness(t)
	h.connect()

	require.NoError(t, h.store.SendPrivateMessage("client-bob", "secret"))
	assert.Empty(t, h.store.Conversations())
	assert.Equal(t, []any{models.SendPrivateMessageRequest{RecipientID: "client-bob", Content: "secret"}},
		h.transport.EmitsOf(models.CommandSendPrivateMessage))

	echo := models.PrivateMessage{
		Message:   models.Message{ID: "p1", Sender: "alice", SenderID: "client-alice", Content: "secret"},
		Recipient: "bob", RecipientID: "client-bob",
	}
	h.notifier.On("PrivateMessage", mock.MatchedBy(func(m models.PrivateMessage) bool { return m.ID == "p1" }), false).Once()
	h.transport.Fire(models.EventPrivateMessage, echo)

	conv := h.store.Conversation("alice_bob")
	require.Len(t, conv, 1)
	assert.Equal(t, "secret", conv[0].Content)
}

func TestPrivateMessageOnScreen(t *testing.T) {
	h := newHarness(t)
	h.store.OpenConversation("bob")

	reply := models.PrivateMessage{
		Message:   models.Message{ID: "p2", Sender: "bob", Content: "yo"},
		Recipient: "alice",
	}
	h.notifier.On("PrivateMessage", mock.Anything, true).Once()
	h.transport.Fire(models.EventPrivateMessage, reply)

	assert.Len(t, h.store.Conversation("alice_bob"), 1)
}

func TestPrivateMessageFallsBackToConversationID(t *testing.T) {
	h := newHarness(t)
	h.notifier.On("PrivateMessage", mock.Anything, false).Once()
	h.transport.Fire(models.EventPrivateMessage, `{"id":"p3","sender":"bob","content":"x","conversationId":"alice_bob"}`)
	assert.Len(t, h.store.Conversation("alice_bob"), 1)
}

func TestReactionUpdateReplacesWholesale(t *testing.T) {
	h := newHarness(t)
	h.transport.Fire(models.EventRoomMessages, `[{"id":"m1","roomId":"general","reactions":{"👍":["alice"],"😂":["bob"]}}]`)

	require.NoError(t, h.store.AddReaction("m1", "👍"))
	assert.Equal(t, []any{models.AddReactionRequest{MessageID: "m1", Reaction: "👍"}}, h.transport.EmitsOf(models.CommandAddReaction))

	h.transport.Fire(models.EventReactionUpdate, `{"messageId":"m1","reactions":{"😂":["bob","alice"]}}`)

	reactions := h.store.Messages()[0].Reactions
	assert.Equal(t, []string{"😂"}, reactions.Symbols())
	assert.Equal(t, []string{"bob", "alice"}, reactions.Users("😂"))
}

func TestTypingAndPresence(t *testing.T) {
	h := newHarness(t)
	h.transport.Fire(models.EventUserTyping, models.TypingEvent{UserID: "b", Username: "bob", IsTyping: true})
	h.transport.Fire(models.EventUserTyping, models.TypingEvent{UserID: "b", Username: "bob", IsTyping: true})
	assert.Equal(t, []string{"bob"}, h.store.TypingUsers())
	h.transport.Fire(models.EventUserTyping, models.TypingEvent{UserID: "b", Username: "bob", IsTyping: false})
	assert.Empty(t, h.store.TypingUsers())

	bob := models.User{ID: "b", Username: "bob"}
	h.notifier.On("Presence", models.RoomPresence{User: bob, RoomID: "general"}, true).Once()
	h.transport.Fire(models.EventUserJoinedRoom, models.RoomPresence{User: bob, RoomID: "general"})
	h.transport.Fire(models.EventUserLeftRoom, models.RoomPresence{User: bob, RoomID: "random"})
}

func TestNewRoomAppendsAndNotifies(t *testing.T) {
	h := newHarness(t)
	h.connect()
	dev := models.Room{ID: "dev", Name: "Dev", UserCount: 1}
	h.notifier.On("RoomCreated", dev).Once()
	h.transport.Fire(models.EventNewRoom, dev)
	assert.Len(t, h.store.Rooms(), 3)
}

func TestMalformedPayloadIsDropped(t *testing.T) {
	h := newHarness(t)
	assert.NotPanics(t, func() {
		h.transport.Fire(models.EventNewMessage, `{"id":`)
		h.transport.Fire(models.EventUsersUpdate, nil)
	})
	assert.Empty(t, h.store.Messages())
	assert.Zero(t, h.store.UnreadCount())
}

func TestEmitFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.transport.EmitErr = assert.AnError
	assert.ErrorIs(t, h.store.SendMessage("hello"), assert.AnError)
}
