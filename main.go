package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"syscall"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"go.uber.org/zap"

	"chat-client/internal/client"
	"chat-client/internal/config"
	"chat-client/internal/db"
	"chat-client/internal/handlers"
	"chat-client/internal/identity"
	"chat-client/internal/logger"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/observability"
	"chat-client/internal/rabbitmq"
	"chat-client/internal/telemetry"
)

const (
	serviceName     = "chat-client"
	shutdownTimeout = 5 * time.Second
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log.Named("rabbitmq"))
	log.Info("audit publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, "chat_client.audit", serviceName, cfg.Environment, log.Named("audit"))

	idStore, err := openIdentityStore(cfg, log)
	if err != nil {
		log.Fatal("failed to open identity store", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	a := &app{cfg: cfg, log: log, audit: audit, ids: idStore, in: bufio.NewReader(os.Stdin)}

	go func() {
		err := a.run(runCtx)
		if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, context.Canceled) {
			log.Error("session ended", zap.Error(err))
		}
		// a local quit takes the same shutdown path as Ctrl+C
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	}()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, shutdownOps(a, cancel, publisher, shutdownTracing))
	exitCode := <-wait
	log.Info("chat client exited", zap.Int("exit_code", exitCode))
	_ = log.Sync()
	os.Exit(exitCode)
}

// shutdownOps lists what runs on exit. The session closes before the
// publisher so the logout audit still goes out.
func shutdownOps(a *app, cancel context.CancelFunc, publisher rabbitmq.Publisher, tracing func(context.Context) error) map[string]gfshutdown.Operation {
	ops := map[string]gfshutdown.Operation{
		"client": func(ctx context.Context) error {
			cancel()
			err := a.endSession(ctx)
			if cerr := publisher.Close(); cerr != nil && err == nil {
				err = cerr
			}
			return err
		},
	}
	if tracing != nil {
		ops["tracing"] = tracing
	}
	return ops
}

func openIdentityStore(cfg config.Config, log *zap.Logger) (identity.Store, error) {
	if cfg.IdentityDSN == "" {
		return identity.NewFileStore(cfg.IdentityFile), nil
	}
	database, err := db.Connect(cfg.IdentityDSN, log.Named("db"))
	if err != nil {
		return nil, err
	}
	profile, err := os.Hostname()
	if err != nil {
		profile = "default"
	}
	return identity.NewSQLStore(database, profile), nil
}

// app owns the login loop and whichever session is live.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	audit *telemetry.AuditEmitter
	ids   identity.Store
	in    *bufio.Reader

	mu      sync.Mutex
	session *client.Session
	server  *http.Server
}

// run logs in and runs sessions until the user quits. Logging out clears
// the saved identity and goes back to the prompt.
func (a *app) run(ctx context.Context) error {
	preset := a.cfg.Username
	for {
		self, err := identity.Login(ctx, a.ids, preset, a.in, os.Stdout)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}

		err = a.runSession(ctx, self)
		_ = a.endSession(ctx)
		if !errors.Is(err, errLogout) {
			return err
		}
		if err := a.ids.Clear(ctx); err != nil {
			a.log.Warn("failed to clear identity", zap.Error(err))
		}
		preset = ""
	}
}

func (a *app) runSession(ctx context.Context, self models.Identity) error {
	console := notify.NewConsole(os.Stdout, true)
	session := client.New(self, client.Options{
		ServerURL:        a.cfg.ServerURL,
		UploadURL:        a.cfg.UploadURL,
		DefaultRoom:      a.cfg.DefaultRoom,
		TypingQuiet:      a.cfg.TypingQuiet,
		BlurGrace:        a.cfg.BlurGrace,
		ReconnectInitial: a.cfg.ReconnectInitial,
		ReconnectMax:     a.cfg.ReconnectMax,
		Toaster:          console,
		System:           console,
		Audit:            a.audit,
		Logger:           a.log,
	})
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	if err := session.Start(ctx); err != nil {
		return err
	}

	if a.cfg.ControlAddr != "" {
		handler := handlers.NewControlHandler(session.Store(), session, session.Typing(), a.log.Named("control"))
		srv := &http.Server{
			Addr: a.cfg.ControlAddr,
			Handler: handlers.NewRouter(handler, handlers.RouterOptions{
				Service:     serviceName,
				Token:       a.cfg.ControlToken,
				Audit:       a.audit,
				DebugRoutes: a.cfg.DebugRoutes,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		a.mu.Lock()
		a.server = srv
		a.mu.Unlock()
		go func() {
			a.log.Info("control api listening", zap.String("addr", a.cfg.ControlAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("control api error", zap.Error(err))
			}
		}()
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &repl{
		chat:    session.Store(),
		session: session,
		typing:  session.Typing(),
		out:     os.Stdout,
		loc:     time.Local,
	}
	fmt.Printf("logged in as %s, /help for commands\n", self.Username)
	go r.watch(sessionCtx)

	lines := make(chan error, 1)
	go func() { lines <- r.run(sessionCtx, a.in) }()
	select {
	case err := <-lines:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// endSession stops the control API and closes the live session, if any.
func (a *app) endSession(ctx context.Context) error {
	a.mu.Lock()
	session, srv := a.session, a.server
	a.session, a.server = nil, nil
	a.mu.Unlock()

	var err error
	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		err = srv.Shutdown(shutdownCtx)
		done()
	}
	if session != nil {
		if cerr := session.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
