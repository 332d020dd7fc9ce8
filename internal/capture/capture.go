// Package capture turns a speech recognizer's event stream into a committed
// transcript and a silence signal.
//
// A Unit is either Idle or Listening. Every recognition result resets a
// silence timer; when the timer elapses the silence callback runs once for
// that quiet period. Stop cancels any pending timer.
package capture

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultSilence = 2000 * time.Millisecond

var (
	ErrUnsupported = errors.New("speech recognition unsupported")
	// ErrPending means the recognizer ended but the silence timer for its
	// last utterance has not fired yet.
	ErrPending = errors.New("previous utterance not yet submitted")
)

type State int

const (
	Idle State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "idle"
}

type EventKind int

const (
	EventResult EventKind = iota
	EventError
	EventEnd
)

// Event is what a Recognizer reports. Final marks a result whose text will
// not change any more; a non-final result replaces the interim text.
type Event struct {
	Kind  EventKind
	Text  string
	Final bool
	Code  string
}

// Error codes that end a listening session without surfacing an error.
const (
	CodeNoSpeech = "no-speech"
	CodeAborted  = "aborted"
)

// Recognizer is a platform speech recognition session. Start must return
// once recognition is running; events are delivered on any goroutine.
type Recognizer interface {
	Start(ctx context.Context, emit func(Event)) error
	Stop()
}

type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. It matches time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Unit)

func WithSilence(d time.Duration) Option {
	return func(u *Unit) {
		if d > 0 {
			u.silence = d
		}
	}
}

func WithAfterFunc(fn AfterFunc) Option {
	return func(u *Unit) { u.afterFunc = fn }
}

// OnError registers a handler for non-recoverable recognition errors.
func OnError(fn func(error)) Option {
	return func(u *Unit) { u.onError = fn }
}

type Unit struct {
	rec       Recognizer
	silence   time.Duration
	afterFunc AfterFunc
	onError   func(error)

	mu        sync.Mutex
	state     State
	committed string
	interim   string
	session   uint64
	cancel    context.CancelFunc
	timer     Timer
	timerGen  uint64
	onSilence func()
}

func New(rec Recognizer, opts ...Option) *Unit {
	u := &Unit{
		rec:       rec,
		silence:   DefaultSilence,
		afterFunc: realAfterFunc,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Start begins a listening session with empty transcript buffers. onSilence
// runs after each quiet period that follows a result.
func (u *Unit) Start(ctx context.Context, onSilence func()) error {
	if u.rec == nil {
		return ErrUnsupported
	}

	u.mu.Lock()
	if u.state == Listening {
		u.mu.Unlock()
		return nil
	}
	if u.timer != nil {
		u.mu.Unlock()
		return ErrPending
	}
	u.committed, u.interim = "", ""
	u.state = Listening
	u.onSilence = onSilence
	u.session++
	session := u.session
	rctx, cancel := context.WithCancel(ctx)
	u.cancel = cancel
	u.mu.Unlock()

	err := u.rec.Start(rctx, func(ev Event) { u.handle(session, ev) })
	if err != nil {
		u.mu.Lock()
		if u.session == session {
			u.toIdleLocked()
		}
		u.mu.Unlock()
		return fmt.Errorf("start recognition: %w", err)
	}

	log.Debug("Listening started")
	return nil
}

// Stop ends the listening session and cancels a pending silence timer.
func (u *Unit) Stop() {
	u.mu.Lock()
	u.cancelTimerLocked()
	wasListening := u.state == Listening
	if wasListening {
		u.toIdleLocked()
	}
	u.mu.Unlock()

	if wasListening {
		u.rec.Stop()
		log.Debug("Listening stopped")
	}
}

// Latest returns the committed and interim text joined by a single space.
func (u *Unit) Latest() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return join(u.committed, u.interim)
}

// Take returns Latest and empties the buffers, so a transcript is handed
// over at most once.
func (u *Unit) Take() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	text := join(u.committed, u.interim)
	u.committed, u.interim = "", ""
	return text
}

func (u *Unit) handle(session uint64, ev Event) {
	u.mu.Lock()
	if session != u.session || u.state != Listening {
		u.mu.Unlock()
		return
	}

	switch ev.Kind {
	case EventResult:
		text := strings.TrimSpace(ev.Text)
		if ev.Final {
			u.committed = join(u.committed, text)
			u.interim = ""
		} else {
			u.interim = text
		}
		u.resetTimerLocked()
		u.mu.Unlock()

	case EventError:
		u.cancelTimerLocked()
		u.toIdleLocked()
		u.mu.Unlock()

		if ev.Code == CodeNoSpeech || ev.Code == CodeAborted {
			log.Debug("Recognition ended", "code", ev.Code)
			return
		}
		log.Warn("Recognition error", "code", ev.Code)
		if u.onError != nil {
			u.onError(fmt.Errorf("recognition error: %s", ev.Code))
		}

	case EventEnd:
		// a pending silence timer still fires after the recognizer ends
		u.toIdleLocked()
		u.mu.Unlock()

	default:
		u.mu.Unlock()
	}
}

func (u *Unit) resetTimerLocked() {
	u.cancelTimerLocked()
	gen := u.timerGen
	u.timer = u.afterFunc(u.silence, func() { u.fire(gen) })
}

func (u *Unit) cancelTimerLocked() {
	u.timerGen++
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
}

func (u *Unit) fire(gen uint64) {
	u.mu.Lock()
	if gen != u.timerGen {
		u.mu.Unlock()
		return
	}
	// invalidate so a second delivery is a no-op
	u.timerGen++
	u.timer = nil
	cb := u.onSilence
	u.mu.Unlock()

	if cb != nil {
		cb()
	}
}

func (u *Unit) toIdleLocked() {
	u.state = Idle
	if u.cancel != nil {
		u.cancel()
		u.cancel = nil
	}
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
