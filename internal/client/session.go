// Package client assembles one logged-in chat session: transport,
// dispatcher, store, notification router and typing debouncer.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"chat-client/internal/dispatcher"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/store"
	"chat-client/internal/telemetry"
	"chat-client/internal/typing"
	"chat-client/internal/upload"
	"chat-client/internal/ws"
)

const (
	uploadFailedText = "Failed to upload file. Please try again."
	fileTooLargeText = "File is too large. Maximum file size: 5MB"
)

// Uploader stores an attachment and reports where it lives.
type Uploader interface {
	Upload(ctx context.Context, path string) (models.FileDescriptor, error)
}

type Options struct {
	ServerURL   string
	UploadURL   string
	DefaultRoom string

	TypingQuiet      time.Duration
	BlurGrace        time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration

	Toaster notify.Toaster
	System  notify.SystemNotifier
	Audit   *telemetry.AuditEmitter
	Logger  *zap.Logger

	// Transport and Uploader replace the network defaults when set.
	Transport ws.Transport
	Uploader  Uploader
}

// Session lives from login to logout.
type Session struct {
	self       models.Identity
	transport  ws.Transport
	dispatcher *dispatcher.Dispatcher
	store      *store.Store
	router     *notify.Router
	typing     *typing.Debouncer
	uploader   Uploader
	audit      *telemetry.AuditEmitter
	log        *zap.Logger

	mu        sync.Mutex
	auditSubs []auditSub
	closed    bool
}

type auditSub struct {
	event string
	id    ws.ListenerID
}

// New wires a session for self. Nothing touches the network until Start.
func New(self models.Identity, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("user", self.Username))

	transport := opts.Transport
	if transport == nil {
		transport = ws.NewClient(ws.Options{
			URL:             opts.ServerURL,
			InitialInterval: opts.ReconnectInitial,
			MaxInterval:     opts.ReconnectMax,
			Logger:          log.Named("ws"),
		})
	}
	uploader := opts.Uploader
	if uploader == nil {
		uploader = upload.NewClient(opts.UploadURL, nil, log.Named("upload"))
	}

	router := notify.NewRouter(opts.Toaster, opts.System, self, transport.ID, log.Named("notify"))
	disp := dispatcher.New(transport, self, router, log.Named("dispatcher"))
	st := store.New(disp, self, opts.DefaultRoom)
	disp.Attach(st)

	return &Session{
		self:       self,
		transport:  transport,
		dispatcher: disp,
		store:      st,
		router:     router,
		typing: typing.New(st, typing.Options{
			QuietPeriod: opts.TypingQuiet,
			BlurGrace:   opts.BlurGrace,
			Logger:      log.Named("typing"),
		}),
		uploader: uploader,
		audit:    opts.Audit,
		log:      log,
	}
}

func (s *Session) Self() models.Identity { return s.self }
func (s *Session) ClientID() string { return s.transport.ID() }
func (s *Session) Store() *store.Store { return s.store }
func (s *Session) Typing() *typing.Debouncer { return s.typing }
func (s *Session) Router() *notify.Router { return s.router }

// Start registers the handlers and opens the channel.
func (s *Session) Start(ctx context.Context) error {
	s.router.Start()
	s.dispatcher.Subscribe()

	s.mu.Lock()
	for event, action := range map[string]string{
		models.EventConnect:    telemetry.ActionConnected,
		models.EventReconnect:  telemetry.ActionReconnected,
		models.EventDisconnect: telemetry.ActionDisconnected,
	} {
		action := action
		id := s.transport.On(event, func(json.RawMessage) {
			s.emitAudit("INFO", action, "session "+action)
		})
		s.auditSubs = append(s.auditSubs, auditSub{event: event, id: id})
	}
	s.mu.Unlock()

	if err := s.transport.Connect(ctx); err != nil {
		return err
	}
	s.log.Info("session started", zap.String("client_id", s.transport.ID()))
	s.emitAudit("INFO", telemetry.ActionLogin, "session started")
	return nil
}

// JoinRoom switches the active room.
func (s *Session) JoinRoom(roomID string) error {
	err := s.store.JoinRoom(roomID)
	s.emitAudit("INFO", telemetry.ActionRoomJoined, "joined "+roomID)
	return err
}

// SendFile uploads path and posts it to the active room. On failure the
// user gets an alert and nothing is sent, so the same file can be retried.
func (s *Session) SendFile(ctx context.Context, path string) error {
	fd, err := s.uploader.Upload(ctx, path)
	if err != nil {
		text := uploadFailedText
		if errors.Is(err, upload.ErrFileTooLarge) {
			text = fileTooLargeText
		}
		s.router.Alert(text)
		s.emitAudit("ERROR", telemetry.ActionUploadFailed, err.Error())
		return err
	}
	return s.store.SendFile(fd)
}

// Close ends the session: typing is stopped, handlers are removed and the
// channel is closed. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.auditSubs
	s.auditSubs = nil
	s.mu.Unlock()

	s.typing.Close()
	s.dispatcher.Unsubscribe()
	for _, sub := range subs {
		s.transport.Off(sub.event, sub.id)
	}
	err := s.transport.Disconnect()
	// The dispatcher is already unsubscribed, so the final disconnect event never reaches the store.
	s.store.SetConnectionState(models.StateDisconnected)

	s.emitAudit("INFO", telemetry.ActionLogout, "session closed")
	s.log.Info("session closed")
	return err
}

func (s *Session) emitAudit(level, action, text string) {
	s.audit.Emit(context.Background(), level, action, text, s.transport.ID(), s.self.Username)
}
