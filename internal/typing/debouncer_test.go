package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/mocks"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) StartTyping() error { r.add("start"); return nil }
func (r *recorder) StopTyping() error  { r.add("stop"); return nil }

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newDebouncer(quiet, grace time.Duration) (*Debouncer, *recorder) {
	rec := &recorder{}
	return New(rec, Options{QuietPeriod: quiet, BlurGrace: grace}), rec
}

func TestKeystrokesStartOnce(t *testing.T) {
	d, rec := newDebouncer(time.Hour, time.Hour)
	defer d.Close()

	for _, in := range []string{"h", "he", "hel", "hell", "hello"} {
		d.Keystroke(in)
	}
	assert.Equal(t, []string{"start"}, rec.get())
	assert.Equal(t, Active, d.State())
}

func TestBlankInputDoesNotStart(t *testing.T) {
	d, rec := newDebouncer(time.Hour, time.Hour)
	d.Keystroke("   ")
	assert.Empty(t, rec.get())
	assert.Equal(t, Idle, d.State())
}

func TestQuietPeriodStops(t *testing.T) {
	d, rec := newDebouncer(30*time.Millisecond, time.Hour)
	d.Keystroke("a")
	d.Keystroke("ab")

	require.Eventually(t, func() bool { return d.State() == Idle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, rec.get())
}

func TestKeystrokeReschedulesQuietPeriod(t *testing.T) {
	d, rec := newDebouncer(80*time.Millisecond, time.Hour)
	defer d.Close()

	d.Keystroke("a")
	for i := 0; i < 5; i++ {
		time.Sleep(30 * time.Millisecond)
		d.Keystroke("ab")
	}
	assert.Equal(t, []string{"start"}, rec.get())
}

func TestSubmitStopsExactlyOnce(t *testing.T) {
	d, rec := newDebouncer(20*time.Millisecond, time.Hour)
	d.Keystroke("hello")
	d.Submit()
	d.Submit()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, rec.get())
}

func TestEmissionsAlternate(t *testing.T) {
	d, rec := newDebouncer(10*time.Millisecond, 5*time.Millisecond)

	d.Keystroke("a")
	d.Submit()
	d.Keystroke("b")
	d.Blur()
	time.Sleep(40 * time.Millisecond)
	d.Keystroke("c")
	time.Sleep(40 * time.Millisecond)
	d.Close()

	calls := rec.get()
	require.NotEmpty(t, calls)
	for i, c := range calls {
		if i%2 == 0 {
			assert.Equal(t, "start", c)
		} else {
			assert.Equal(t, "stop", c)
		}
	}
	assert.Equal(t, "stop", calls[len(calls)-1])
}

func TestBlurGraceAndFocus(t *testing.T) {
	d, rec := newDebouncer(time.Hour, 30*time.Millisecond)
	defer d.Close()

	d.Keystroke("hi")
	d.Blur()
	d.Focus()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, Active, d.State())

	d.Blur()
	require.Eventually(t, func() bool { return d.State() == Idle }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"start", "stop"}, rec.get())
}

func TestKeystrokeCancelsBlur(t *testing.T) {
	d, rec := newDebouncer(time.Hour, 20*time.Millisecond)
	defer d.Close()

	d.Keystroke("hi")
	d.Blur()
	d.Keystroke("hi!")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"start"}, rec.get())
}

func TestCloseSendsFinalStop(t *testing.T) {
	d, rec := newDebouncer(time.Hour, time.Hour)
	d.Keystroke("x")
	d.Close()
	d.Keystroke("y")
	assert.Equal(t, []string{"start", "stop"}, rec.get())
}

func TestSendErrorsDoNotBreakAlternation(t *testing.T) {
	sig := new(mocks.SignalerMock)
	sig.On("StartTyping").Return(assert.AnError).Once()
	sig.On("StopTyping").Return(nil).Once()

	d := New(sig, Options{QuietPeriod: time.Hour})
	d.Keystroke("x")
	assert.Equal(t, Active, d.State())
	d.Submit()
	assert.Equal(t, Idle, d.State())
	sig.AssertExpectations(t)
}
