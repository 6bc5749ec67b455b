package models

// Inbound event names. The lifecycle names are produced by the transport
// itself; the rest are pushed by the server.
const (
	EventConnecting       = "connecting"
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventReconnectAttempt = "reconnect_attempt"
	EventReconnect        = "reconnect"

	EventUsersUpdate       = "users_update"
	EventUserAuthenticated = "user_authenticated"
	EventRoomsList         = "rooms_list"
	EventRoomMessages      = "room_messages"
	EventNewRoom           = "new_room"
	EventNewMessage        = "new_message"
	EventPrivateMessage    = "private_message"
	EventMessageDelivered  = "message_delivered"
	EventUserTyping        = "user_typing"
	EventReactionUpdate    = "reaction_update"
	EventUserJoinedRoom    = "user_joined_room"
	EventUserLeftRoom      = "user_left_room"
)

// Outbound command names.
const (
	CommandUserJoin           = "user_join"
	CommandJoinRoom           = "join_room"
	CommandSendMessage        = "send_message"
	CommandSendPrivateMessage = "send_private_message"
	CommandCreateRoom         = "create_room"
	CommandTypingStart        = "typing_start"
	CommandTypingStop         = "typing_stop"
	CommandAddReaction        = "add_reaction"
	CommandMarkMessageRead    = "mark_message_read"
	CommandSendFile           = "send_file"
)

// TypingEvent is the user_typing payload.
type TypingEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// ReactionUpdate is the reaction_update payload.
type ReactionUpdate struct {
	MessageID string    `json:"messageId"`
	Reactions Reactions `json:"reactions"`
}

// RoomPresence is the user_joined_room / user_left_room payload.
type RoomPresence struct {
	User   User   `json:"user"`
	RoomID string `json:"roomId"`
}

// DeliveryReceipt is the message_delivered payload.
type DeliveryReceipt struct {
	MessageID string `json:"messageId"`
}

// SendMessageRequest is the send_message payload.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendPrivateMessageRequest is the send_private_message payload.
type SendPrivateMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

// AddReactionRequest is the add_reaction payload.
type AddReactionRequest struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// Notification is a system-level notification.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}
