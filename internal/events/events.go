// Package events carries orchestrator state changes to whatever renders
// them: the log, a websocket UI, or a test recorder.
package events

import (
	log "log/slog"
	"sync"
	"time"
)

type Kind string

const (
	KindTranscript Kind = "transcript"
	KindProcessing Kind = "processing"
	KindReply      Kind = "reply"
	KindAnalysis   Kind = "analysis"
	KindFeedback   Kind = "feedback"
	KindWorkspace  Kind = "workspace"
	KindSpeaking   Kind = "speaking"
	KindIdle       Kind = "idle"
	KindError      Kind = "error"
	KindSummary    Kind = "summary"
	KindEnded      Kind = "ended"

	// KindCommand flows the other way: a UI asking the daemon to act.
	KindCommand Kind = "command"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	Session string    `json:"session,omitempty"`
	Content string    `json:"content,omitempty"`
	Data    any       `json:"data,omitempty"`
	At      time.Time `json:"at"`
}

type Publisher interface {
	Publish(ev Event)
}

// Fanout publishes every event to all targets in order.
type Fanout []Publisher

func (f Fanout) Publish(ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ev)
		}
	}
}

// Logger writes events to slog.
type Logger struct{}

func (Logger) Publish(ev Event) {
	switch ev.Kind {
	case KindError:
		log.Error("Session event", "kind", ev.Kind, "session", ev.Session, "msg", ev.Content)
	case KindAnalysis, KindTranscript:
		log.Debug("Session event", "kind", ev.Kind, "session", ev.Session, "content", ev.Content, "data", ev.Data)
	default:
		log.Info("Session event", "kind", ev.Kind, "session", ev.Session, "content", ev.Content)
	}
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// Count returns how many events of kind were published.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
