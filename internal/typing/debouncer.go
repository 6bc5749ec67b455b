// Package typing turns raw keystrokes into a strictly alternating
// typing_start / typing_stop signal.
package typing

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultQuietPeriod = time.Second
	DefaultBlurGrace   = 100 * time.Millisecond
)

// Signaler sends the typing commands.
type Signaler interface {
	StartTyping() error
	StopTyping() error
}

type State int

const (
	Idle State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

type Options struct {
	QuietPeriod time.Duration
	BlurGrace   time.Duration
	Logger      *zap.Logger
}

// Debouncer is the per-user typing state machine. Timer callbacks carry the
// generation they were scheduled under and do nothing once it has moved on.
type Debouncer struct {
	sig   Signaler
	quiet time.Duration
	grace time.Duration
	log   *zap.Logger

	mu         sync.Mutex
	state      State
	gen        uint64
	blurGen    uint64
	quietTimer *time.Timer
	blurTimer  *time.Timer
	closed     bool
}

func New(sig Signaler, opts Options) *Debouncer {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.BlurGrace <= 0 {
		opts.BlurGrace = DefaultBlurGrace
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Debouncer{
		sig:   sig,
		quiet: opts.QuietPeriod,
		grace: opts.BlurGrace,
		log:   opts.Logger,
	}
}

func (d *Debouncer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Keystroke records an edit of the message input. The first non-blank
// input starts typing; every edit while active restarts the quiet period.
func (d *Debouncer) Keystroke(input string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.cancelBlur()

	if d.state == Idle {
		if strings.TrimSpace(input) == "" {
			return
		}
		d.state = Active
		d.send(d.sig.StartTyping, "typing_start")
	}

	d.gen++
	gen := d.gen
	if d.quietTimer != nil {
		d.quietTimer.Stop()
	}
	d.quietTimer = time.AfterFunc(d.quiet, func() { d.expire(gen, 0, false) })
}

// Submit ends typing because the message was sent.
func (d *Debouncer) Submit() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.toIdle()
}

// Blur ends typing after the grace delay unless focus returns first.
func (d *Debouncer) Blur() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.state != Active {
		return
	}
	d.cancelBlur()
	gen, blurGen := d.gen, d.blurGen
	d.blurTimer = time.AfterFunc(d.grace, func() { d.expire(gen, blurGen, true) })
}

// Focus cancels a pending blur.
func (d *Debouncer) Focus() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancelBlur()
}

// Close stops all timers and sends a final stop when typing.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.toIdle()
	d.closed = true
}

func (d *Debouncer) expire(gen, blurGen uint64, blur bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen || d.state != Active {
		return
	}
	if blur && blurGen != d.blurGen {
		return
	}
	d.toIdle()
}

func (d *Debouncer) cancelBlur() {
	d.blurGen++
	if d.blurTimer != nil {
		d.blurTimer.Stop()
		d.blurTimer = nil
	}
}

func (d *Debouncer) toIdle() {
	d.gen++
	d.cancelBlur()
	if d.quietTimer != nil {
		d.quietTimer.Stop()
		d.quietTimer = nil
	}
	if d.state != Active {
		return
	}
	d.state = Idle
	d.send(d.sig.StopTyping, "typing_stop")
}

func (d *Debouncer) send(fn func() error, command string) {
	if err := fn(); err != nil {
		d.log.Debug("typing signal not sent", zap.String("command", command), zap.Error(err))
	}
}
