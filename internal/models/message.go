package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType distinguishes plain text from file attachments.
type MessageType string

const (
	TextMessage MessageType = "text"
	FileMessage MessageType = "file"
)

// Message is a chat message posted to a room.
type Message struct {
	ID           string      `json:"id"`
	RoomID       string      `json:"roomId"`
	Sender       string      `json:"sender"`
	SenderID     string      `json:"senderId"`
	SenderAvatar string      `json:"senderAvatar,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Content      string      `json:"content"`
	Type         MessageType `json:"type"`
	FileName     string      `json:"fileName,omitempty"`
	FileURL      string      `json:"fileUrl,omitempty"`
	FileSize     int64       `json:"fileSize,omitempty"`
	Reactions    Reactions   `json:"reactions,omitempty"`
}

// IsFile reports whether the message carries an attachment.
func (m Message) IsFile() bool {
	return m.Type == FileMessage
}

// Clone returns a copy that shares no reaction storage with m.
func (m Message) Clone() Message {
	m.Reactions = m.Reactions.Clone()
	return m
}

// PrivateMessage is a one-to-one message. The server fills ConversationID
// with the same sorted pair key the client derives.
type PrivateMessage struct {
	Message
	Recipient      string `json:"recipient,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// FileDescriptor is what the upload endpoint returns and send_file carries.
type FileDescriptor struct {
	FileName string `json:"fileName"`
	FileURL  string `json:"fileUrl"`
	FileSize int64  `json:"fileSize"`
}

// Reaction is one symbol and the usernames that placed it.
type Reaction struct {
	Symbol string
	Users  []string
}

// Reactions maps a reaction symbol to its users, keeping the order in
// which symbols were first seen. It encodes as a JSON object.
type Reactions []Reaction

// Users returns the users that reacted with symbol.
func (r Reactions) Users(symbol string) []string {
	for _, reaction := range r {
		if reaction.Symbol == symbol {
			return reaction.Users
		}
	}
	return nil
}

// Symbols returns the reaction symbols in display order.
func (r Reactions) Symbols() []string {
	out := make([]string, 0, len(r))
	for _, reaction := range r {
		out = append(out, reaction.Symbol)
	}
	return out
}

// Has reports whether username reacted with symbol.
func (r Reactions) Has(symbol, username string) bool {
	for _, u := range r.Users(symbol) {
		if u == username {
			return true
		}
	}
	return false
}

// Clone deep-copies the mapping.
func (r Reactions) Clone() Reactions {
	if r == nil {
		return nil
	}
	out := make(Reactions, len(r))
	for i, reaction := range r {
		out[i] = Reaction{Symbol: reaction.Symbol, Users: append([]string(nil), reaction.Users...)}
	}
	return out
}

// MarshalJSON writes the mapping as an object in display order.
func (r Reactions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, reaction := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(reaction.Symbol)
		if err != nil {
			return nil, err
		}
		users := reaction.Users
		if users == nil {
			users = []string{}
		}
		val, err := json.Marshal(users)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping key order. Duplicate usernames under
// one symbol are collapsed.
func (r *Reactions) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("reactions: expected object, got %v", tok)
	}

	out := Reactions{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		symbol, ok := tok.(string)
		if !ok {
			return fmt.Errorf("reactions: expected key, got %v", tok)
		}
		var users []string
		if err := dec.Decode(&users); err != nil {
			return fmt.Errorf("reactions %q: %w", symbol, err)
		}
		out = append(out, Reaction{Symbol: symbol, Users: dedupe(users)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func dedupe(users []string) []string {
	seen := make(map[string]struct{}, len(users))
	out := make([]string, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
