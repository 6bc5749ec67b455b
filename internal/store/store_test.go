package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
)

var alice = models.Identity{Username: "alice", Avatar: "a.png"}

func newStore(t *testing.T) (*Store, *mocks.EmitterMock) {
	t.Helper()
	cmds := new(mocks.EmitterMock)
	t.Cleanup(func() { cmds.AssertExpectations(t) })
	return New(cmds, alice, "general"), cmds
}

func TestReplaceUsersIsWholesale(t *testing.T) {
	s, _ := newStore(t)
	s.ReplaceUsers([]models.User{{ID: "1", Username: "alice"}, {ID: "2", Username: "bob"}})
	s.ReplaceUsers([]models.User{{ID: "3", Username: "carol"}})

	users := s.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestReplaceUsersKeysByID(t *testing.T) {
	s, _ := newStore(t)
	s.ReplaceUsers([]models.User{
		{ID: "1", Username: "alice", Status: models.StatusOnline},
		{ID: "2", Username: "bob"},
		{ID: "1", Username: "alice", Status: models.StatusAway},
	})

	users := s.Users()
	require.Len(t, users, 2)
	assert.Equal(t, models.StatusAway, users[0].Status)
}

func TestJoinRoomResetsStateBeforeEmitting(t *testing.T) {
	s, cmds := newStore(t)
	s.ApplyRoomMessage(models.Message{ID: "m1", RoomID: "general"})
	s.ApplyRoomMessage(models.Message{ID: "m2", RoomID: "random"})
	s.SetTyping("bob", true)
	require.Equal(t, 1, s.UnreadCount())

	cmds.On("Emit", models.CommandJoinRoom, "random").Run(func(mock.Arguments) {
		assert.Equal(t, "random", s.ActiveRoom())
		assert.Empty(t, s.Messages())
		assert.Zero(t, s.UnreadCount())
	}).Return(nil).Once()
	cmds.On("RoomChanged", "random").Once()

	require.NoError(t, s.JoinRoom("random"))
	assert.Empty(t, s.TypingUsers())
}

func TestUnreadCountsOnlyForeignRooms(t *testing.T) {
	s, _ := newStore(t)

	assert.True(t, s.ApplyRoomMessage(models.Message{ID: "1", RoomID: "general"}))
	assert.False(t, s.ApplyRoomMessage(models.Message{ID: "2", RoomID: "random"}))
	assert.False(t, s.ApplyRoomMessage(models.Message{ID: "3", RoomID: "dev"}))

	assert.Equal(t, 2, s.UnreadCount())
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "1", s.Messages()[0].ID)
}

func TestReplaceMessagesDropsStaleLog(t *testing.T) {
	s, _ := newStore(t)

	assert.False(t, s.ReplaceMessages([]models.Message{{ID: "x", RoomID: "random"}}))
	assert.Empty(t, s.Messages())

	assert.True(t, s.ReplaceMessages([]models.Message{{ID: "y", RoomID: "general"}}))
	assert.Len(t, s.Messages(), 1)

	assert.True(t, s.ReplaceMessages(nil))
	assert.Empty(t, s.Messages())
}

func TestSendMessageIgnoresBlankAndNeverAppends(t *testing.T) {
	s, cmds := newStore(t)

	require.NoError(t, s.SendMessage("   \n\t"))
	cmds.AssertNotCalled(t, "Emit", mock.Anything, mock.Anything)

	cmds.On("Emit", models.CommandSendMessage, models.SendMessageRequest{Content: " hi "}).Return(nil).Once()
	require.NoError(t, s.SendMessage(" hi "))
	assert.Empty(t, s.Messages())
}

func TestSendPrivateMessageWaitsForEcho(t *testing.T) {
	s, cmds := newStore(t)
	cmds.On("Emit", models.CommandSendPrivateMessage, models.SendPrivateMessageRequest{RecipientID: "2", Content: "psst"}).Return(nil).Once()

	require.NoError(t, s.SendPrivateMessage("2", "psst"))
	assert.Empty(t, s.Conversations())

	s.AppendPrivateMessage("alice_bob", models.PrivateMessage{Message: models.Message{ID: "p1", Sender: "alice", Content: "psst"}, Recipient: "bob"})
	require.Len(t, s.Conversation("alice_bob"), 1)
}

func TestCreateRoomValidation(t *testing.T) {
	s, cmds := newStore(t)

	assert.ErrorIs(t, s.CreateRoom("  ", "whatever", false), ErrEmptyRoomName)
	assert.ErrorIs(t, s.CreateRoom(strings.Repeat("r", 51), "", false), ErrRoomNameTooLong)
	assert.ErrorIs(t, s.CreateRoom("ok", strings.Repeat("d", 201), false), ErrDescriptionTooLong)

	cmds.On("Emit", models.CommandCreateRoom, models.CreateRoomRequest{Name: "gophers", Description: "go talk", IsPrivate: true}).Return(nil).Once()
	require.NoError(t, s.CreateRoom("  gophers ", " go talk ", true))
}

func TestAddReactionPassesThrough(t *testing.T) {
	s, cmds := newStore(t)
	s.ReplaceMessages([]models.Message{{ID: "m1", RoomID: "general", Reactions: models.Reactions{{Symbol: "👍", Users: []string{"alice"}}}}})

	cmds.On("Emit", models.CommandAddReaction, models.AddReactionRequest{MessageID: "m1", Reaction: "👍"}).Return(nil).Once()
	require.NoError(t, s.AddReaction("m1", "👍"))

	// local reactions only change on the server's update
	assert.Equal(t, []string{"alice"}, s.Messages()[0].Reactions.Users("👍"))
}

func TestReplaceReactionsIsWholesale(t *testing.T) {
	s, _ := newStore(t)
	s.ReplaceMessages([]models.Message{
		{ID: "m1", RoomID: "general", Reactions: models.Reactions{{Symbol: "❤️", Users: []string{"carol"}}}},
		{ID: "m2", RoomID: "general"},
	})

	ok := s.ReplaceReactions("m1", models.Reactions{{Symbol: "👍", Users: []string{"alice", "bob"}}})
	require.True(t, ok)

	msgs := s.Messages()
	assert.Equal(t, []string{"👍"}, msgs[0].Reactions.Symbols())
	assert.Equal(t, []string{"alice", "bob"}, msgs[0].Reactions.Users("👍"))
	assert.Nil(t, msgs[1].Reactions)

	assert.False(t, s.ReplaceReactions("missing", nil))
}

func TestSetTypingDedupes(t *testing.T) {
	s, _ := newStore(t)
	s.SetTyping("bob", true)
	s.SetTyping("carol", true)
	s.SetTyping("bob", true)
	assert.Equal(t, []string{"bob", "carol"}, s.TypingUsers())

	s.SetTyping("bob", false)
	s.SetTyping("dave", false)
	assert.Equal(t, []string{"carol"}, s.TypingUsers())
}

func TestConversationKeyedByPair(t *testing.T) {
	s, _ := newStore(t)
	key := s.OpenConversation("bob")
	assert.Equal(t, "alice_bob", key)
	assert.Equal(t, key, s.ActiveConversation())

	s.CloseConversation()
	assert.Empty(t, s.ActiveConversation())
}

func TestAccessorsReturnCopies(t *testing.T) {
	s, _ := newStore(t)
	s.ReplaceMessages([]models.Message{{ID: "m1", RoomID: "general", Reactions: models.Reactions{{Symbol: "👍", Users: []string{"bob"}}}}})

	msgs := s.Messages()
	msgs[0].Reactions[0].Users[0] = "mallory"
	msgs[0].Content = "changed"

	again := s.Messages()
	assert.Equal(t, "bob", again[0].Reactions[0].Users[0])
	assert.Empty(t, again[0].Content)
}

func TestChangesCoalesce(t *testing.T) {
	s, _ := newStore(t)
	s.SetConnectionState(models.StateConnecting)
	s.SetConnectionState(models.StateConnected)

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-s.Changes():
		t.Fatal("signals should coalesce")
	default:
	}
	assert.Equal(t, models.StateConnected, s.Snapshot().ConnectionState)
}
