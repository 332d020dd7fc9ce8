// Package session runs one interview: it owns the message log, takes turns
// with the model, speaks the replies and closes the session with a scored
// summary.
package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rehearse/internal/capture"
	"rehearse/internal/events"
	"rehearse/internal/gateway"
	"rehearse/internal/history"
	"rehearse/internal/interview"
	"rehearse/internal/memory"
	"rehearse/internal/synth"
)

const DefaultInactivity = 2 * time.Minute

var (
	ErrEmptyInput = errors.New("empty input")
	ErrBusy       = errors.New("turn already in progress")
	ErrSpeaking   = errors.New("reply is still playing")
	ErrEnded      = errors.New("session ended")
	// ErrNotListening is returned by StopListening when there is nothing
	// left to submit.
	ErrNotListening = errors.New("not listening")
)

type Interviewer interface {
	Turn(ctx context.Context, req gateway.TurnRequest) (interview.Envelope, error)
}

type Memories interface {
	Context(ctx context.Context, owner, query string) ([]memory.Memory, error)
	Remember(ctx context.Context, owner string, note *interview.Note) (*memory.Memory, error)
}

type Speaker interface {
	Speak(ctx context.Context, text string) (synth.Outcome, error)
}

type Listener interface {
	Start(ctx context.Context, onSilence func()) error
	Stop()
	// Take returns the transcript heard so far and clears it.
	Take() string
	State() capture.State
}

// Profile is the candidate context sent with every turn.
type Profile struct {
	OwnerID        string
	Role           string
	Resume         string
	JobDescription string
}

type Deps struct {
	Interviewer Interviewer
	Memories    Memories
	Speaker     Speaker
	Listener    Listener
	Summarizer  *Summarizer
	Events      events.Publisher
}

type Config struct {
	Inactivity time.Duration
	AfterFunc  capture.AfterFunc
}

// Orchestrator serialises turns: a submission while a turn is processing or
// its reply is playing is rejected, and nothing is accepted after End.
type Orchestrator struct {
	id      string
	profile Profile
	deps    Deps
	cfg     Config

	mu         sync.Mutex
	log        []interview.Message
	analyses   []interview.Analysis
	processing bool
	speaking   bool
	ended      bool
	idle       capture.Timer
	idleGen    uint64
	record     *history.Session
}

func New(profile Profile, deps Deps, cfg Config) *Orchestrator {
	if cfg.Inactivity <= 0 {
		cfg.Inactivity = DefaultInactivity
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) capture.Timer { return time.AfterFunc(d, f) }
	}
	if deps.Events == nil {
		deps.Events = events.Logger{}
	}

	o := &Orchestrator{
		id:      uuid.NewString(),
		profile: profile,
		deps:    deps,
		cfg:     cfg,
	}
	o.mu.Lock()
	o.armIdleLocked()
	o.mu.Unlock()
	return o
}

func (o *Orchestrator) ID() string { return o.id }

func (o *Orchestrator) Profile() Profile { return o.profile }

// Messages returns a copy of the log.
func (o *Orchestrator) Messages() []interview.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]interview.Message(nil), o.log...)
}

func (o *Orchestrator) Analyses() []interview.Analysis {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]interview.Analysis(nil), o.analyses...)
}

type Status struct {
	ID         string `json:"id"`
	Messages   int    `json:"messages"`
	Processing bool   `json:"processing"`
	Speaking   bool   `json:"speaking"`
	Listening  bool   `json:"listening"`
	Ended      bool   `json:"ended"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	st := Status{
		ID:         o.id,
		Messages:   len(o.log),
		Processing: o.processing,
		Speaking:   o.speaking,
		Ended:      o.ended,
	}
	o.mu.Unlock()
	if o.deps.Listener != nil {
		st.Listening = o.deps.Listener.State() == capture.Listening
	}
	return st
}

// Submit runs one turn for text: memory read, model call, memory write and
// speech, in that order. On failure the log is restored to its pre-turn
// state and nothing is retried.
func (o *Orchestrator) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	o.mu.Lock()
	switch {
	case o.ended:
		o.mu.Unlock()
		return ErrEnded
	case o.processing || o.speaking:
		o.mu.Unlock()
		return ErrBusy
	}
	o.processing = true
	o.stopIdleLocked()
	before := len(o.log)
	o.log = append(o.log, interview.Message{Role: interview.RoleUser, Content: text})
	msgs := append([]interview.Message(nil), o.log...)
	o.mu.Unlock()

	o.publish(events.KindTranscript, text, nil)
	o.publish(events.KindProcessing, "", nil)

	env, err := o.takeTurn(ctx, text, msgs)
	if err != nil {
		o.mu.Lock()
		o.log = o.log[:before]
		o.processing = false
		o.armIdleLocked()
		o.mu.Unlock()

		o.publish(events.KindError, err.Error(), nil)
		return err
	}

	o.mu.Lock()
	if o.ended {
		o.processing = false
		o.mu.Unlock()
		return ErrEnded
	}
	o.log = append(o.log, interview.Message{Role: interview.RoleAssistant, Content: env.Response})
	if env.Analysis != nil {
		o.analyses = append(o.analyses, *env.Analysis)
	}
	o.processing = false
	o.speaking = true
	o.mu.Unlock()

	o.publish(events.KindReply, env.Response, map[string]any{"stage": env.Stage})
	if env.Analysis != nil {
		o.publish(events.KindAnalysis, env.Analysis.Reasoning, env.Analysis)
	}
	if env.Feedback != "" {
		o.publish(events.KindFeedback, env.Feedback, nil)
	}
	if interview.TechnicalRole(o.profile.Role) && env.CodingRequested() {
		o.publish(events.KindWorkspace, "", nil)
	}

	if env.Memory != nil {
		if _, err := o.deps.Memories.Remember(ctx, o.profile.OwnerID, env.Memory); err != nil {
			log.Warn("Failed to persist memory", "session", o.id, "err", err)
			o.publish(events.KindError, err.Error(), nil)
		}
	}

	o.speak(ctx, env.Response)
	return nil
}

func (o *Orchestrator) takeTurn(ctx context.Context, text string, msgs []interview.Message) (interview.Envelope, error) {
	mems, err := o.deps.Memories.Context(ctx, o.profile.OwnerID, text)
	if err != nil {
		return interview.Envelope{}, fmt.Errorf("read memories: %w", err)
	}

	env, err := o.deps.Interviewer.Turn(ctx, gateway.TurnRequest{
		Messages:       msgs,
		Resume:         o.profile.Resume,
		JobDescription: o.profile.JobDescription,
		Role:           o.profile.Role,
		UserID:         o.profile.OwnerID,
		Memories:       memory.FormatBlock(mems),
	})
	if err != nil {
		return interview.Envelope{}, fmt.Errorf("interviewer turn: %w", err)
	}
	return env, nil
}

// speak plays the reply and clears the speaking state exactly once,
// whichever path produced the audio.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	o.publish(events.KindSpeaking, text, nil)

	var once sync.Once
	done := func(path string) {
		once.Do(func() {
			o.mu.Lock()
			o.speaking = false
			o.armIdleLocked()
			o.mu.Unlock()
			o.publish(events.KindIdle, path, nil)
		})
	}

	if o.deps.Speaker == nil {
		done("")
		return
	}

	out, err := o.deps.Speaker.Speak(ctx, text)
	if err != nil {
		log.Error("Failed to voice out", "session", o.id, "err", err)
		o.publish(events.KindError, err.Error(), nil)
	}
	done(out.Path)
}

// Listen starts speech capture. It is a no-op while a reply is playing.
func (o *Orchestrator) Listen(ctx context.Context) error {
	if o.deps.Listener == nil {
		return capture.ErrUnsupported
	}

	o.mu.Lock()
	switch {
	case o.ended:
		o.mu.Unlock()
		return ErrEnded
	case o.speaking:
		o.mu.Unlock()
		return ErrSpeaking
	}
	o.armIdleLocked()
	o.mu.Unlock()

	return o.deps.Listener.Start(ctx, func() { o.onSilence(ctx) })
}

// StopListening stops capture and submits whatever was heard. A transcript
// already submitted on silence is not sent again.
func (o *Orchestrator) StopListening(ctx context.Context) error {
	if o.deps.Listener == nil {
		return capture.ErrUnsupported
	}
	listening := o.deps.Listener.State() == capture.Listening
	o.deps.Listener.Stop()
	text := o.deps.Listener.Take()
	if !listening && strings.TrimSpace(text) == "" {
		return ErrNotListening
	}
	return o.Submit(ctx, text)
}

// Toggle is the microphone button: stop and submit while listening,
// otherwise start listening.
func (o *Orchestrator) Toggle(ctx context.Context) error {
	if o.deps.Listener != nil && o.deps.Listener.State() == capture.Listening {
		return o.StopListening(ctx)
	}
	return o.Listen(ctx)
}

func (o *Orchestrator) onSilence(ctx context.Context) {
	o.deps.Listener.Stop()
	text := o.deps.Listener.Take()
	if err := o.Submit(ctx, text); err != nil && !errors.Is(err, ErrEmptyInput) {
		log.Warn("Silence submit rejected", "session", o.id, "err", err)
	}
}

// End closes the session and stores its summary. Only the first call does
// any work; later calls return ErrEnded.
func (o *Orchestrator) End(ctx context.Context) (*history.Session, error) {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return nil, ErrEnded
	}
	o.ended = true
	o.stopIdleLocked()
	msgs := append([]interview.Message(nil), o.log...)
	o.mu.Unlock()

	if o.deps.Listener != nil {
		o.deps.Listener.Stop()
	}

	rec, err := o.deps.Summarizer.Finalize(ctx, o.profile.OwnerID, o.profile.Role, msgs)

	o.mu.Lock()
	o.record = rec
	o.mu.Unlock()

	if err != nil {
		o.publish(events.KindError, err.Error(), nil)
	}
	if rec != nil {
		o.publish(events.KindSummary, rec.Summary, rec)
	}
	o.publish(events.KindEnded, "", nil)
	return rec, err
}

// Record returns the stored summary once the session has ended.
func (o *Orchestrator) Record() *history.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record
}

func (o *Orchestrator) armIdleLocked() {
	if o.ended || o.processing || o.speaking {
		return
	}
	o.stopIdleLocked()
	gen := o.idleGen
	o.idle = o.cfg.AfterFunc(o.cfg.Inactivity, func() { o.onIdle(gen) })
}

func (o *Orchestrator) stopIdleLocked() {
	o.idleGen++
	if o.idle != nil {
		o.idle.Stop()
		o.idle = nil
	}
}

func (o *Orchestrator) onIdle(gen uint64) {
	o.mu.Lock()
	stale := gen != o.idleGen || o.ended || o.processing || o.speaking
	o.mu.Unlock()
	if stale {
		return
	}

	log.Info("Session timed out due to inactivity", "session", o.id)
	if _, err := o.End(context.Background()); err != nil && !errors.Is(err, ErrEnded) {
		log.Error("Failed to store timed out session", "session", o.id, "err", err)
	}
}

func (o *Orchestrator) publish(kind events.Kind, content string, data any) {
	o.deps.Events.Publish(events.Event{
		Kind:    kind,
		Session: o.id,
		Content: content,
		Data:    data,
		At:      time.Now(),
	})
}
