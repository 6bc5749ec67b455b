// Package store holds the client's synchronized view of the chat server:
// rosters, the active room log, private conversations, typing activity and
// the unread counter. Inbound state arrives through the mutators called by
// the dispatcher; user intent leaves through the command methods.
package store

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/present"
)

const (
	maxRoomNameLen    = 50
	maxDescriptionLen = 200
)

var (
	ErrEmptyRoomName      = errors.New("room name is required")
	ErrRoomNameTooLong    = errors.New("room name is too long")
	ErrDescriptionTooLong = errors.New("room description is too long")
)

// Emitter sends outbound commands and reacts to active room changes.
type Emitter interface {
	Emit(command string, payload any) error
	RoomChanged(roomID string)
}

// View is the read-only side used by presentation code.
type View interface {
	ConnectionState() models.ConnectionState
	Users() []models.User
	Rooms() []models.Room
	Room(id string) (models.Room, bool)
	ActiveRoom() string
	Messages() []models.Message
	Conversation(key string) []models.PrivateMessage
	Conversations() map[string][]models.PrivateMessage
	TypingUsers() []string
	UnreadCount() int
	ActiveConversation() string
	Snapshot() Snapshot
	Changes() <-chan struct{}
}

// Snapshot is a consistent copy of the whole state.
type Snapshot struct {
	ConnectionState    models.ConnectionState             `json:"connectionState"`
	Self               models.Identity                    `json:"self"`
	Users              []models.User                      `json:"users"`
	Rooms              []models.Room                      `json:"rooms"`
	ActiveRoom         string                             `json:"activeRoom"`
	Messages           []models.Message                   `json:"messages"`
	Conversations      map[string][]models.PrivateMessage `json:"conversations"`
	ActiveConversation string                             `json:"activeConversation,omitempty"`
	TypingUsers        []string                           `json:"typingUsers"`
	UnreadCount        int                                `json:"unreadCount"`
}

// Store is safe for concurrent use.
type Store struct {
	cmds Emitter
	self models.Identity

	mu                 sync.RWMutex
	state              models.ConnectionState
	users              []models.User
	rooms              []models.Room
	activeRoom         string
	messages           []models.Message
	conversations      map[string][]models.PrivateMessage
	activeConversation string
	typing             []string
	unread             int

	changes chan struct{}
}

// New returns a Store for the given identity with activeRoom preselected.
// No join_room is sent until the dispatcher auto-joins on the room roster.
func New(cmds Emitter, self models.Identity, activeRoom string) *Store {
	return &Store{
		cmds:          cmds,
		self:          self,
		state:         models.StateDisconnected,
		activeRoom:    activeRoom,
		conversations: make(map[string][]models.PrivateMessage),
		changes:       make(chan struct{}, 1),
	}
}

// Self returns the local identity.
func (s *Store) Self() models.Identity { return s.self }

// Changes delivers a coalesced signal after every state transition.
func (s *Store) Changes() <-chan struct{} { return s.changes }

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) ConnectionState() models.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Store) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User(nil), s.users...)
}

func (s *Store) Rooms() []models.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Room(nil), s.rooms...)
}

// Room looks up a room in the roster.
func (s *Store) Room(id string) (models.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.ID == id {
			return r, true
		}
	}
	return models.Room{}, false
}

func (s *Store) ActiveRoom() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRoom
}

func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.messages)
}

func (s *Store) Conversation(key string) []models.PrivateMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePrivate(s.conversations[key])
}

func (s *Store) Conversations() map[string][]models.PrivateMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]models.PrivateMessage, len(s.conversations))
	for k, v := range s.conversations {
		out[k] = clonePrivate(v)
	}
	return out
}

func (s *Store) TypingUsers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.typing...)
}

func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// ActiveConversation returns the key of the private conversation on screen,
// or "" when none is open.
func (s *Store) ActiveConversation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeConversation
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make(map[string][]models.PrivateMessage, len(s.conversations))
	for k, v := range s.conversations {
		convs[k] = clonePrivate(v)
	}
	return Snapshot{
		ConnectionState:    s.state,
		Self:               s.self,
		Users:              append([]models.User{}, s.users...),
		Rooms:              append([]models.Room{}, s.rooms...),
		ActiveRoom:         s.activeRoom,
		Messages:           append([]models.Message{}, cloneMessages(s.messages)...),
		Conversations:      convs,
		ActiveConversation: s.activeConversation,
		TypingUsers:        append([]string{}, s.typing...),
		UnreadCount:        s.unread,
	}
}

// JoinRoom makes roomID the active room. Local state is reset before
// join_room goes out so the room log reply lands on a clean slate.
func (s *Store) JoinRoom(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil
	}
	s.mu.Lock()
	s.activeRoom = roomID
	s.messages = nil
	s.unread = 0
	s.typing = nil
	s.mu.Unlock()
	observability.SetUnread(0)
	s.notify()

	err := s.cmds.Emit(models.CommandJoinRoom, roomID)
	s.cmds.RoomChanged(roomID)
	return err
}

// SendMessage posts content to the active room. Blank input is ignored.
// Nothing is appended locally; the server echo is authoritative.
func (s *Store) SendMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	return s.cmds.Emit(models.CommandSendMessage, models.SendMessageRequest{Content: content})
}

func (s *Store) SendPrivateMessage(recipientID, content string) error {
	if strings.TrimSpace(content) == "" || recipientID == "" {
		return nil
	}
	return s.cmds.Emit(models.CommandSendPrivateMessage, models.SendPrivateMessageRequest{
		RecipientID: recipientID,
		Content:     content,
	})
}

// CreateRoom validates and sends create_room. The new room shows up once
// the server broadcasts new_room.
func (s *Store) CreateRoom(name, description string, isPrivate bool) error {
	req := models.CreateRoomRequest{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		IsPrivate:   isPrivate,
	}
	switch {
	case req.Name == "":
		return ErrEmptyRoomName
	case utf8.RuneCountInString(req.Name) > maxRoomNameLen:
		return ErrRoomNameTooLong
	case utf8.RuneCountInString(req.Description) > maxDescriptionLen:
		return ErrDescriptionTooLong
	}
	return s.cmds.Emit(models.CommandCreateRoom, req)
}

func (s *Store) StartTyping() error {
	return s.cmds.Emit(models.CommandTypingStart, nil)
}

func (s *Store) StopTyping() error {
	return s.cmds.Emit(models.CommandTypingStop, nil)
}

// AddReaction forwards the reaction as is. Whether it adds or removes is up
// to the server, whose reaction_update replaces the local set.
func (s *Store) AddReaction(messageID, symbol string) error {
	if messageID == "" || symbol == "" {
		return nil
	}
	return s.cmds.Emit(models.CommandAddReaction, models.AddReactionRequest{MessageID: messageID, Reaction: symbol})
}

// SendFile posts an already uploaded file to the active room.
func (s *Store) SendFile(file models.FileDescriptor) error {
	return s.cmds.Emit(models.CommandSendFile, file)
}

func (s *Store) MarkMessageRead(messageID string) error {
	if messageID == "" {
		return nil
	}
	return s.cmds.Emit(models.CommandMarkMessageRead, messageID)
}

// OpenConversation marks the conversation with peer as on screen and
// returns its key.
func (s *Store) OpenConversation(peer string) string {
	key := present.ConversationKey(s.self.Username, peer)
	s.mu.Lock()
	s.activeConversation = key
	s.mu.Unlock()
	s.notify()
	return key
}

func (s *Store) CloseConversation() {
	s.mu.Lock()
	s.activeConversation = ""
	s.mu.Unlock()
	s.notify()
}

func (s *Store) SetConnectionState(state models.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	observability.SetConnectionState(int(state))
	s.notify()
}

// ReplaceUsers installs a new roster. Entries are keyed by id; a repeated id
// keeps its first position and its last value.
func (s *Store) ReplaceUsers(users []models.User) {
	out := make([]models.User, 0, len(users))
	index := make(map[string]int, len(users))
	for _, u := range users {
		if i, ok := index[u.ID]; ok {
			out[i] = u
			continue
		}
		index[u.ID] = len(out)
		out = append(out, u)
	}
	s.mu.Lock()
	s.users = out
	s.mu.Unlock()
	s.notify()
}

func (s *Store) ReplaceRooms(rooms []models.Room) {
	s.mu.Lock()
	s.rooms = append([]models.Room(nil), rooms...)
	s.mu.Unlock()
	s.notify()
}

// ReplaceMessages installs the active room log. A log that belongs to some
// other room arrived after a switch and is dropped; the return value reports
// whether the log was applied.
func (s *Store) ReplaceMessages(msgs []models.Message) bool {
	s.mu.Lock()
	for _, m := range msgs {
		if m.RoomID != "" && m.RoomID != s.activeRoom {
			s.mu.Unlock()
			return false
		}
	}
	s.messages = cloneMessages(msgs)
	s.mu.Unlock()
	s.notify()
	return true
}

func (s *Store) AppendRoom(room models.Room) {
	s.mu.Lock()
	s.rooms = append(s.rooms, room)
	s.mu.Unlock()
	s.notify()
}

// ApplyRoomMessage appends msg to the log when it belongs to the active room
// and otherwise bumps the unread counter. It reports which branch was taken.
func (s *Store) ApplyRoomMessage(msg models.Message) (active bool) {
	s.mu.Lock()
	active = msg.RoomID == s.activeRoom
	if active {
		s.messages = append(s.messages, msg.Clone())
	} else {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()
	observability.SetUnread(unread)
	s.notify()
	return active
}

// AppendPrivateMessage adds msg to the conversation under key.
func (s *Store) AppendPrivateMessage(key string, msg models.PrivateMessage) {
	msg.Message = msg.Message.Clone()
	s.mu.Lock()
	s.conversations[key] = append(s.conversations[key], msg)
	s.mu.Unlock()
	s.notify()
}

// SetTyping adds or removes username from the typing set.
func (s *Store) SetTyping(username string, typing bool) {
	if username == "" {
		return
	}
	s.mu.Lock()
	idx := -1
	for i, u := range s.typing {
		if u == username {
			idx = i
			break
		}
	}
	switch {
	case typing && idx < 0:
		s.typing = append(s.typing, username)
	case !typing && idx >= 0:
		s.typing = append(s.typing[:idx:idx], s.typing[idx+1:]...)
	default:
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceReactions overwrites the reactions of one message in the active
// log. It reports false when the message is not loaded.
func (s *Store) ReplaceReactions(messageID string, reactions models.Reactions) bool {
	s.mu.Lock()
	found := false
	for i := range s.messages {
		if s.messages[i].ID == messageID {
			s.messages[i].Reactions = reactions.Clone()
			found = true
			break
		}
	}
	s.mu.Unlock()
	if found {
		s.notify()
	}
	return found
}

func cloneMessages(msgs []models.Message) []models.Message {
	if msgs == nil {
		return nil
	}
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

func clonePrivate(msgs []models.PrivateMessage) []models.PrivateMessage {
	if msgs == nil {
		return nil
	}
	out := make([]models.PrivateMessage, len(msgs))
	for i, m := range msgs {
		m.Message = m.Message.Clone()
		out[i] = m
	}
	return out
}
