package notify_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/notify"
)

var self = models.Identity{Username: "alice", Avatar: "a.png"}

func newRouter(t *testing.T, perm notify.Permission) (*notify.Router, *mocks.ToasterMock, *mocks.SystemNotifierMock) {
	t.Helper()
	toaster := new(mocks.ToasterMock)
	system := new(mocks.SystemNotifierMock)
	system.On("Permission").Return(perm).Once()
	r := notify.NewRouter(toaster, system, self, func() string { return "client-alice" }, nil)
	r.Start()
	t.Cleanup(func() {
		toaster.AssertExpectations(t)
		system.AssertExpectations(t)
	})
	return r, toaster, system
}

func TestStartRequestsPermissionOnlyWhenUndecided(t *testing.T) {
	toaster := new(mocks.ToasterMock)
	system := new(mocks.SystemNotifierMock)
	system.On("Permission").Return(notify.PermissionDefault).Once()
	system.On("RequestPermission").Return(notify.PermissionDenied).Once()

	r := notify.NewRouter(toaster, system, self, nil, nil)
	r.Start()
	r.Start()

	assert.Equal(t, notify.PermissionDenied, r.Permission())
	system.AssertExpectations(t)
}

func TestBackgroundRoomMessage(t *testing.T) {
	r, toaster, system := newRouter(t, notify.PermissionGranted)
	toaster.On("Toast", notify.LevelInfo, "New message in Random").Once()
	system.On("Notify", models.Notification{
		Title: "bob",
		Body:  "over here",
		Icon:  "https://ui-avatars.com/api/?name=bob&background=random",
	}).Return(nil).Once()

	r.RoomMessage(models.Message{Sender: "bob", SenderID: "client-bob", Content: "over here"}, "Random")
}

func TestBackgroundFileMessageWithUnknownRoom(t *testing.T) {
	r, toaster, system := newRouter(t, notify.PermissionGranted)
	toaster.On("Toast", notify.LevelInfo, "New message in Unknown Room").Once()
	system.On("Notify", models.Notification{Title: "bob", Body: "Sent a file", Icon: "b.png"}).Return(nil).Once()

	r.RoomMessage(models.Message{Sender: "bob", SenderAvatar: "b.png", Type: models.FileMessage, FileName: "x.pdf"}, "")
}

func TestDeniedPermissionToastsOnly(t *testing.T) {
	r, toaster, _ := newRouter(t, notify.PermissionDenied)
	toaster.On("Toast", notify.LevelInfo, "New message in Random").Once()

	r.RoomMessage(models.Message{Sender: "bob", Content: "hey"}, "Random")
}

func TestActiveRoomMessageToastsOnly(t *testing.T) {
	r, toaster, _ := newRouter(t, notify.PermissionGranted)
	toaster.On("Toast", notify.LevelInfo, "New message from bob").Once()

	r.RoomMessageOnScreen(models.Message{RoomID: "general", Sender: "bob", SenderID: "client-bob", Content: "hi"})
}

func TestSelfEchoIsSuppressed(t *testing.T) {
	r, _, _ := newRouter(t, notify.PermissionGranted)

	r.RoomMessage(models.Message{Sender: "someone", SenderID: "client-alice"}, "Random")
	r.RoomMessageOnScreen(models.Message{Sender: "alice", SenderID: "other-tab"})
	r.PrivateMessage(models.PrivateMessage{Message: models.Message{Sender: "alice", SenderID: "other-tab"}}, false)
	r.Presence(models.RoomPresence{User: models.User{ID: "client-alice", Username: "alice"}}, true)
}

func TestPrivateMessageRouting(t *testing.T) {
	r, toaster, system := newRouter(t, notify.PermissionGranted)
	msg := models.PrivateMessage{Message: models.Message{Sender: "bob", Content: "psst"}, Recipient: "alice"}

	toaster.On("Toast", notify.LevelInfo, "Private message from bob").Twice()
	system.On("Notify", models.Notification{
		Title: "Private message from bob",
		Body:  "psst",
		Icon:  "https://ui-avatars.com/api/?name=bob&background=random",
	}).Return(nil).Once()

	r.PrivateMessage(msg, false)
	r.PrivateMessage(msg, true)
}

func TestRoomCreatedAndPresence(t *testing.T) {
	r, toaster, _ := newRouter(t, notify.PermissionGranted)
	toaster.On("Toast", notify.LevelInfo, "New room created: Dev").Once()
	toaster.On("Toast", notify.LevelInfo, "bob joined the room").Once()
	toaster.On("Toast", notify.LevelInfo, "bob left the room").Once()
	toaster.On("Toast", notify.LevelError, "Failed to upload file. Please try again.").Once()

	bob := models.User{ID: "client-bob", Username: "bob"}
	r.RoomCreated(models.Room{ID: "dev", Name: "Dev"})
	r.Presence(models.RoomPresence{User: bob, RoomID: "general"}, true)
	r.Presence(models.RoomPresence{User: bob, RoomID: "general"}, false)
	r.Alert("Failed to upload file. Please try again.")
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsole(&buf, true)

	require.Equal(t, notify.PermissionDefault, c.Permission())
	require.Equal(t, notify.PermissionGranted, c.RequestPermission())

	c.Toast(notify.LevelInfo, "hello")
	require.NoError(t, c.Notify(models.Notification{Title: "bob", Body: "hi"}))
	assert.Equal(t, "* hello\n[notification] bob: hi\n", buf.String())

	denied := notify.NewConsole(&buf, false)
	assert.Equal(t, notify.PermissionDenied, denied.RequestPermission())
}
