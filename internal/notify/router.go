// Package notify decides how inbound activity is surfaced to the user.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/present"
)

// Level is the severity of an in-app toast.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Permission mirrors the browser notification permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

const fileFallbackBody = "Sent a file"

// Toaster shows lightweight in-app messages.
type Toaster interface {
	Toast(level Level, text string)
}

// SystemNotifier is the OS-level notification capability.
type SystemNotifier interface {
	Permission() Permission
	RequestPermission() Permission
	Notify(n models.Notification) error
}

// Router turns inbound events into toasts and system notifications.
type Router struct {
	toaster Toaster
	system  SystemNotifier
	self    models.Identity
	selfID  func() string
	log     *zap.Logger

	mu         sync.Mutex
	permission Permission
	started    bool
}

// NewRouter builds a Router. selfID returns the transport client id used to
// recognise self-echoes; it may be nil.
func NewRouter(toaster Toaster, system SystemNotifier, self models.Identity, selfID func() string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if selfID == nil {
		selfID = func() string { return "" }
	}
	return &Router{
		toaster:    toaster,
		system:     system,
		self:       self,
		selfID:     selfID,
		log:        log,
		permission: PermissionDefault,
	}
}

// Start asks for system notification permission once, and only when the
// user has not decided yet.
func (r *Router) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.system == nil {
		return
	}
	r.started = true

	r.permission = r.system.Permission()
	if r.permission == PermissionDefault {
		r.permission = r.system.RequestPermission()
		r.log.Info("notification permission requested", zap.String("result", string(r.permission)))
	}
}

// Permission returns the cached permission state.
func (r *Router) Permission() Permission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.permission
}

// RoomCreated announces a new room.
func (r *Router) RoomCreated(room models.Room) {
	r.toast(LevelInfo, "New room created: "+room.Name)
}

// RoomMessage surfaces a message for a room that is not on screen.
func (r *Router) RoomMessage(msg models.Message, roomName string) {
	if r.isSelf(msg.SenderID, msg.Sender) {
		return
	}
	if roomName == "" {
		roomName = "Unknown Room"
	}
	r.toast(LevelInfo, "New message in "+roomName)
	r.notifySystem(models.Notification{
		Title: msg.Sender,
		Body:  body(msg),
		Icon:  present.Avatar(msg.SenderAvatar, msg.Sender),
	})
}

// RoomMessageOnScreen surfaces a message for the active room. The log is
// already visible so it only gets a toast.
func (r *Router) RoomMessageOnScreen(msg models.Message) {
	if r.isSelf(msg.SenderID, msg.Sender) {
		return
	}
	r.toast(LevelInfo, "New message from "+msg.Sender)
}

// PrivateMessage surfaces a private message. onScreen is true when the
// conversation is the one currently open.
func (r *Router) PrivateMessage(msg models.PrivateMessage, onScreen bool) {
	if r.isSelf(msg.SenderID, msg.Sender) {
		return
	}
	r.toast(LevelInfo, "Private message from "+msg.Sender)
	if onScreen {
		return
	}
	r.notifySystem(models.Notification{
		Title: "Private message from " + msg.Sender,
		Body:  body(msg.Message),
		Icon:  present.Avatar(msg.SenderAvatar, msg.Sender),
	})
}

// Presence announces a user joining or leaving the active room.
func (r *Router) Presence(p models.RoomPresence, joined bool) {
	if r.isSelf(p.User.ID, p.User.Username) {
		return
	}
	verb := "left"
	if joined {
		verb = "joined"
	}
	r.toast(LevelInfo, p.User.Username+" "+verb+" the room")
}

// Alert shows a blocking error, used for failed uploads.
func (r *Router) Alert(text string) {
	r.toast(LevelError, text)
}

func (r *Router) isSelf(id, username string) bool {
	if selfID := r.selfID(); selfID != "" && id == selfID {
		return true
	}
	return username != "" && username == r.self.Username
}

func (r *Router) toast(level Level, text string) {
	if r.toaster == nil {
		return
	}
	observability.IncNotification("toast")
	r.toaster.Toast(level, text)
}

func (r *Router) notifySystem(n models.Notification) {
	if r.system == nil || r.Permission() != PermissionGranted {
		return
	}
	observability.IncNotification("system")
	if err := r.system.Notify(n); err != nil {
		r.log.Warn("system notification failed", zap.Error(err))
	}
}

func body(msg models.Message) string {
	if msg.Content != "" {
		return msg.Content
	}
	return fileFallbackBody
}
