package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chat-client/internal/models"
	"chat-client/internal/present"
	"chat-client/internal/store"
	"chat-client/internal/upload"
	"chat-client/internal/ws"
)

// Chat is the store surface the control API reads and commands.
type Chat interface {
	store.View
	SendMessage(content string) error
	SendPrivateMessage(recipientID, content string) error
	CreateRoom(name, description string, isPrivate bool) error
	AddReaction(messageID, symbol string) error
	MarkMessageRead(messageID string) error
	OpenConversation(peer string) string
	CloseConversation()
}

// Session covers the operations that span more than the store.
type Session interface {
	Self() models.Identity
	ClientID() string
	JoinRoom(roomID string) error
	SendFile(ctx context.Context, path string) error
}

// Typing receives message input activity.
type Typing interface {
	Keystroke(input string)
	Submit()
	Blur()
	Focus()
}

// ControlHandler exposes the running session over local HTTP.
type ControlHandler struct {
	chat    Chat
	session Session
	typing  Typing
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger
}

// NewControlHandler constructs a ControlHandler.
func NewControlHandler(chat Chat, session Session, typing Typing, log *zap.Logger) *ControlHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ControlHandler{
		chat:    chat,
		session: session,
		typing:  typing,
		loc:     time.Local,
		now:     time.Now,
		log:     log,
	}
}

// Register mounts the control routes.
func (h *ControlHandler) Register(r gin.IRoutes) {
	r.GET("/state", h.GetState)
	r.GET("/users", h.ListUsers)
	r.GET("/rooms", h.ListRooms)
	r.POST("/rooms", h.CreateRoom)
	r.POST("/rooms/:room_id/join", h.JoinRoom)
	r.GET("/messages", h.GetMessages)
	r.POST("/messages", h.PostMessage)
	r.POST("/messages/:message_id/reactions", h.AddReaction)
	r.POST("/messages/:message_id/read", h.MarkRead)
	r.POST("/private-messages", h.PostPrivateMessage)
	r.GET("/conversations/:peer", h.GetConversation)
	r.POST("/conversations/:peer/open", h.OpenConversation)
	r.DELETE("/conversations/active", h.CloseConversation)
	r.POST("/typing/:action", h.TypingActivity)
	r.POST("/files", h.SendFile)
}

// GetState handles GET /state.
func (h *ControlHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.chat.Snapshot())
}

type userView struct {
	models.User
	StatusText string `json:"statusText"`
	AvatarURL  string `json:"avatarUrl"`
}

// ListUsers handles GET /users?search=.
func (h *ControlHandler) ListUsers(c *gin.Context) {
	users := present.OtherUsers(h.chat.Users(), h.session.Self(), h.session.ClientID(), c.Query("search"))
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{
			User:       u,
			StatusText: present.StatusText(u.Status),
			AvatarURL:  present.Avatar(u.Avatar, u.Username),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// ListRooms handles GET /rooms.
func (h *ControlHandler) ListRooms(c *gin.Context) {
	rooms := h.chat.Rooms()
	if rooms == nil {
		rooms = []models.Room{}
	}
	c.JSON(http.StatusOK, gin.H{
		"rooms":       rooms,
		"activeRoom":  h.chat.ActiveRoom(),
		"unreadCount": h.chat.UnreadCount(),
	})
}

// CreateRoom handles POST /rooms.
func (h *ControlHandler) CreateRoom(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chat.CreateRoom(req.Name, req.Description, req.IsPrivate); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// JoinRoom handles POST /rooms/:room_id/join.
func (h *ControlHandler) JoinRoom(c *gin.Context) {
	if err := h.session.JoinRoom(c.Param("room_id")); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"activeRoom": h.chat.ActiveRoom()})
}

type messageView struct {
	models.Message
	Time         string `json:"time"`
	Own          bool   `json:"own"`
	ShowAvatar   bool   `json:"showAvatar"`
	AvatarURL    string `json:"avatarUrl"`
	IsImage      bool   `json:"isImage,omitempty"`
	FileSizeText string `json:"fileSizeText,omitempty"`
}

type dateGroupView struct {
	Label    string        `json:"label"`
	Messages []messageView `json:"messages"`
}

// GetMessages handles GET /messages: the active room log grouped by day.
func (h *ControlHandler) GetMessages(c *gin.Context) {
	self, selfID := h.session.Self(), h.session.ClientID()
	groups := present.GroupByDate(h.chat.Messages(), h.now(), h.loc)

	out := make([]dateGroupView, 0, len(groups))
	for _, g := range groups {
		view := dateGroupView{Label: g.Label, Messages: make([]messageView, 0, len(g.Messages))}
		for i, m := range g.Messages {
			mv := messageView{
				Message:    m,
				Time:       present.FormatTime(m.Timestamp, h.loc),
				Own:        present.IsOwn(m, self, selfID),
				ShowAvatar: present.ShowAvatar(g.Messages, i),
				AvatarURL:  present.Avatar(m.SenderAvatar, m.Sender),
			}
			if m.IsFile() {
				mv.IsImage = present.IsImage(m.FileName)
				mv.FileSizeText = present.FormatFileSize(m.FileSize)
			}
			view.Messages = append(view.Messages, mv)
		}
		out = append(out, view)
	}

	c.JSON(http.StatusOK, gin.H{
		"room":   h.chat.ActiveRoom(),
		"groups": out,
		"typing": present.TypingText(h.chat.TypingUsers()),
	})
}

// PostMessage handles POST /messages.
func (h *ControlHandler) PostMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	if err := h.chat.SendMessage(req.Content); err != nil {
		h.commandError(c, err)
		return
	}
	h.typing.Submit()
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// AddReaction handles POST /messages/:message_id/reactions.
func (h *ControlHandler) AddReaction(c *gin.Context) {
	var req struct {
		Reaction string `json:"reaction" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.chat.AddReaction(c.Param("message_id"), req.Reaction); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// MarkRead handles POST /messages/:message_id/read.
func (h *ControlHandler) MarkRead(c *gin.Context) {
	if err := h.chat.MarkMessageRead(c.Param("message_id")); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// PostPrivateMessage handles POST /private-messages.
func (h *ControlHandler) PostPrivateMessage(c *gin.Context) {
	var req models.SendPrivateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.RecipientID == "" || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipientId and content are required"})
		return
	}
	if err := h.chat.SendPrivateMessage(req.RecipientID, req.Content); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// GetConversation handles GET /conversations/:peer.
func (h *ControlHandler) GetConversation(c *gin.Context) {
	key := present.ConversationKey(h.session.Self().Username, c.Param("peer"))
	msgs := h.chat.Conversation(key)
	if msgs == nil {
		msgs = []models.PrivateMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": key, "messages": msgs})
}

// OpenConversation handles POST /conversations/:peer/open.
func (h *ControlHandler) OpenConversation(c *gin.Context) {
	key := h.chat.OpenConversation(c.Param("peer"))
	c.JSON(http.StatusOK, gin.H{"conversationId": key})
}

// CloseConversation handles DELETE /conversations/active.
func (h *ControlHandler) CloseConversation(c *gin.Context) {
	h.chat.CloseConversation()
	c.Status(http.StatusNoContent)
}

// TypingActivity handles POST /typing/:action.
func (h *ControlHandler) TypingActivity(c *gin.Context) {
	switch c.Param("action") {
	case "keystroke":
		var req struct {
			Input string `json:"input"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.typing.Keystroke(req.Input)
	case "blur":
		h.typing.Blur()
	case "focus":
		h.typing.Focus()
	case "submit":
		h.typing.Submit()
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown typing action"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SendFile handles POST /files with a local path to upload and post.
func (h *ControlHandler) SendFile(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.session.SendFile(c.Request.Context(), req.Path); err != nil {
		h.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (h *ControlHandler) commandError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrEmptyRoomName),
		errors.Is(err, store.ErrRoomNameTooLong),
		errors.Is(err, store.ErrDescriptionTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, upload.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, upload.ErrUploadFailed):
		status = http.StatusBadGateway
	case errors.Is(err, ws.ErrNotConnected), errors.Is(err, ws.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Error("control command failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
