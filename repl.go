package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"chat-client/internal/handlers"
	"chat-client/internal/models"
	"chat-client/internal/present"
)

var (
	errLogout = errors.New("logout")
	errQuit   = errors.New("quit")
)

const helpText = `commands:
  /join <room>                      switch room
  /rooms                            list rooms
  /users [search]                   list other users
  /create <name> [| description]    create a room (add --private for a private room)
  /msg <user> <text>                send a private message
  /open <user> | /close             show or hide a private conversation
  /react <messageId> <symbol>       react to a message
  /read <messageId>                 mark a message read
  /upload <path>                    upload and send a file
  /history                          print the room log
  /logout | /quit
anything else is sent to the active room`

// repl is the line-oriented front end.
type repl struct {
	chat    handlers.Chat
	session handlers.Session
	typing  handlers.Typing
	out     io.Writer
	loc     *time.Location
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := r.exec(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errLogout) || errors.Is(err, errQuit) {
				return err
			}
			fmt.Fprintf(r.out, "! %v\n", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return scanner.Err()
}

func (r *repl) exec(ctx context.Context, line string) error {
	if !strings.HasPrefix(line, "/") {
		if strings.TrimSpace(line) == "" {
			return nil
		}
		r.typing.Submit()
		return r.chat.SendMessage(line)
	}

	cmd, rest, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	rest = strings.TrimSpace(rest)
	switch cmd {
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "join":
		if rest == "" {
			return errors.New("usage: /join <room>")
		}
		return r.session.JoinRoom(rest)
	case "rooms":
		r.printRooms()
	case "users":
		for _, u := range present.OtherUsers(r.chat.Users(), r.session.Self(), r.session.ClientID(), rest) {
			fmt.Fprintf(r.out, "  %s (%s)\n", u.Username, present.StatusText(u.Status))
		}
	case "create":
		return r.createRoom(rest)
	case "msg":
		return r.privateMessage(rest)
	case "open":
		if rest == "" {
			return errors.New("usage: /open <user>")
		}
		key := r.chat.OpenConversation(rest)
		for _, m := range r.chat.Conversation(key) {
			r.printMessage(m.Message)
		}
	case "close":
		r.chat.CloseConversation()
	case "react":
		id, symbol, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(symbol) == "" {
			return errors.New("usage: /react <messageId> <symbol>")
		}
		return r.chat.AddReaction(id, strings.TrimSpace(symbol))
	case "read":
		return r.chat.MarkMessageRead(rest)
	case "upload":
		if rest == "" {
			return errors.New("usage: /upload <path>")
		}
		return r.session.SendFile(ctx, rest)
	case "history":
		r.printHistory()
	case "logout":
		return errLogout
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command /%s, try /help", cmd)
	}
	return nil
}

func (r *repl) createRoom(args string) error {
	private := strings.Contains(args, "--private")
	args = strings.TrimSpace(strings.ReplaceAll(args, "--private", ""))
	name, description, _ := strings.Cut(args, "|")
	return r.chat.CreateRoom(name, description, private)
}

func (r *repl) privateMessage(args string) error {
	username, text, ok := strings.Cut(args, " ")
	if !ok || strings.TrimSpace(text) == "" {
		return errors.New("usage: /msg <user> <text>")
	}
	for _, u := range r.chat.Users() {
		if u.Username == username {
			return r.chat.SendPrivateMessage(u.ID, text)
		}
	}
	return fmt.Errorf("no online user named %q", username)
}

func (r *repl) printRooms() {
	active := r.chat.ActiveRoom()
	for _, room := range r.chat.Rooms() {
		marker := " "
		if room.ID == active {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s #%s %s (%d users)\n", marker, room.ID, room.Name, room.UserCount)
	}
	if n := r.chat.UnreadCount(); n > 0 {
		fmt.Fprintf(r.out, "  %d unread in other rooms\n", n)
	}
}

func (r *repl) printHistory() {
	for _, g := range present.GroupByDate(r.chat.Messages(), time.Now(), r.loc) {
		fmt.Fprintf(r.out, "-- %s --\n", g.Label)
		for _, m := range g.Messages {
			r.printMessage(m)
		}
	}
}

func (r *repl) printMessage(m models.Message) {
	body := m.Content
	if m.IsFile() {
		body = fmt.Sprintf("[file] %s (%s) %s", m.FileName, present.FormatFileSize(m.FileSize), m.FileURL)
	}
	line := fmt.Sprintf("[%s] %s: %s", present.FormatTime(m.Timestamp, r.loc), m.Sender, body)
	if len(m.Reactions) > 0 {
		parts := make([]string, 0, len(m.Reactions))
		for _, reaction := range m.Reactions {
			parts = append(parts, fmt.Sprintf("%s %d", reaction.Symbol, len(reaction.Users)))
		}
		line += "  (" + strings.Join(parts, ", ") + ")"
	}
	fmt.Fprintln(r.out, line)
}

// watch prints room messages as they arrive until ctx is done.
func (r *repl) watch(ctx context.Context) {
	room := r.chat.ActiveRoom()
	seen := len(r.chat.Messages())
	state := r.chat.ConnectionState()
	typing := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.chat.Changes():
		}

		if s := r.chat.ConnectionState(); s != state {
			state = s
			fmt.Fprintf(r.out, "~ %s\n", s)
		}
		if active := r.chat.ActiveRoom(); active != room {
			room, seen = active, 0
			fmt.Fprintf(r.out, "~ now in #%s\n", room)
		}
		msgs := r.chat.Messages()
		if len(msgs) < seen {
			seen = 0
		}
		for _, m := range msgs[seen:] {
			r.printMessage(m)
		}
		seen = len(msgs)

		if t := present.TypingText(r.chat.TypingUsers()); t != typing {
			typing = t
			if t != "" {
				fmt.Fprintf(r.out, "~ %s...\n", t)
			}
		}
	}
}
