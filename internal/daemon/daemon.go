// Package daemon dispatches control commands to the current interview
// session and keeps the application context in step with it.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"rehearse/internal/appctx"
	"rehearse/internal/events"
	"rehearse/internal/history"
	"rehearse/internal/ipc"
	"rehearse/internal/session"
)

var ErrNoSession = errors.New("no active session")

type Options struct {
	Deps      session.Deps
	Session   session.Config
	State     appctx.State
	StatePath string
	History   history.Store

	// Transcribe turns a recorded answer file into text.
	Transcribe func(ctx context.Context, path string) (string, error)
	// Cue signals that the microphone is open.
	Cue func(ctx context.Context) error
}

type Controller struct {
	opts Options
	out  events.Publisher

	mu    sync.Mutex
	state appctx.State
	cur   *session.Orchestrator
}

func New(opts Options) *Controller {
	c := &Controller{opts: opts, state: opts.State, out: opts.Deps.Events}
	if c.out == nil {
		c.out = events.Logger{}
	}
	c.opts.Deps.Events = c
	return c
}

// Publish forwards session events and refreshes the saved context when a
// session ends, whichever way it ended.
func (c *Controller) Publish(ev events.Event) {
	c.out.Publish(ev)
	if ev.Kind == events.KindEnded {
		c.snapshot(context.Background())
	}
}

func (c *Controller) State() appctx.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) profile() session.Profile {
	p := c.state.Profile
	return session.Profile{
		OwnerID:        p.OwnerID,
		Role:           p.Role,
		Resume:         p.Resume,
		JobDescription: p.JobDescription,
	}
}

// start returns the live session or replaces an ended one.
func (c *Controller) start() *session.Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != nil && !c.cur.Status().Ended {
		return c.cur
	}
	c.cur = session.New(c.profile(), c.opts.Deps, c.opts.Session)
	log.Info("Session started", "session", c.cur.ID(), "owner", c.state.Profile.OwnerID, "role", c.state.Profile.Role)
	return c.cur
}

func (c *Controller) current() *session.Orchestrator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Handle executes one control message.
func (c *Controller) Handle(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
	data, err := c.handle(ctx, msg)
	if err != nil {
		log.Warn("Command failed", "cmd", msg.Cmd, "err", err)
		return ipc.Fail(err)
	}
	return ipc.Reply{OK: true, Data: data}
}

func (c *Controller) handle(ctx context.Context, msg ipc.ControlMessage) (any, error) {
	switch msg.Cmd {
	case ipc.CmdStart:
		if o := c.current(); o != nil && !o.Status().Ended {
			return nil, errors.New("a session is already running; end it first")
		}
		o := c.start()
		return o.Status(), nil

	case ipc.CmdProfile:
		return c.setProfile(msg.Text)

	case ipc.CmdListen:
		o := c.start()
		if err := o.Listen(ctx); err != nil {
			return nil, err
		}
		c.cue(ctx)
		return o.Status(), nil

	case ipc.CmdStop:
		o := c.current()
		if o == nil {
			return nil, ErrNoSession
		}
		if err := o.StopListening(ctx); err != nil {
			return nil, err
		}
		return lastReply(o), nil

	case ipc.CmdToggle:
		o := c.start()
		wasListening := o.Status().Listening
		if err := o.Toggle(ctx); err != nil {
			return nil, err
		}
		if !wasListening {
			c.cue(ctx)
		}
		return o.Status(), nil

	case ipc.CmdSubmit:
		o := c.start()
		if err := o.Submit(ctx, msg.Text); err != nil {
			return nil, err
		}
		return lastReply(o), nil

	case ipc.CmdAnswer:
		if c.opts.Transcribe == nil {
			return nil, errors.New("transcription unavailable")
		}
		text, err := c.opts.Transcribe(ctx, msg.Path)
		if err != nil {
			return nil, err
		}
		o := c.start()
		if err := o.Submit(ctx, text); err != nil {
			return nil, err
		}
		return lastReply(o), nil

	case ipc.CmdEnd:
		o := c.current()
		if o == nil {
			return nil, ErrNoSession
		}
		return o.End(ctx)

	case ipc.CmdStatus:
		o := c.current()
		if o == nil {
			return map[string]any{"active": false, "profile": c.State().Profile}, nil
		}
		return o.Status(), nil
	}
	return nil, fmt.Errorf("unknown command %q", msg.Cmd)
}

func lastReply(o *session.Orchestrator) string {
	msgs := o.Messages()
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

func (c *Controller) cue(ctx context.Context) {
	if c.opts.Cue == nil {
		return
	}
	if err := c.opts.Cue(ctx); err != nil {
		log.Warn("Failed to play cue", "err", err)
	}
}

// setProfile merges the non-empty fields of a JSON profile. It applies to
// the next session.
func (c *Controller) setProfile(raw string) (appctx.Profile, error) {
	var p appctx.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return appctx.Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	c.mu.Lock()
	cur := &c.state.Profile
	merge(&cur.OwnerID, p.OwnerID)
	merge(&cur.Name, p.Name)
	merge(&cur.Role, p.Role)
	merge(&cur.Resume, p.Resume)
	merge(&cur.JobDescription, p.JobDescription)
	if p.Theme != "" {
		cur.Theme = p.Theme
	}
	st := c.state
	c.mu.Unlock()

	c.save(st)
	return st.Profile, nil
}

func merge(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

// snapshot caches the owner's history and memories and saves the context.
func (c *Controller) snapshot(ctx context.Context) {
	c.mu.Lock()
	owner := c.state.Profile.OwnerID
	c.mu.Unlock()

	if owner == "" {
		owner = session.GuestOwner
	}
	if c.opts.History != nil {
		if hist, err := c.opts.History.ListByOwner(ctx, owner); err == nil {
			c.mu.Lock()
			c.state.History = hist
			c.mu.Unlock()
		} else {
			log.Warn("Failed to refresh history snapshot", "owner", owner, "err", err)
		}
	}
	if m := c.opts.Deps.Memories; m != nil && owner != session.GuestOwner {
		if mems, err := m.Context(ctx, owner, ""); err == nil {
			c.mu.Lock()
			c.state.Memories = mems
			c.mu.Unlock()
		} else {
			log.Warn("Failed to refresh memory snapshot", "owner", owner, "err", err)
		}
	}

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	c.save(st)
}

func (c *Controller) save(st appctx.State) {
	if c.opts.StatePath == "" {
		return
	}
	if err := appctx.Save(c.opts.StatePath, st); err != nil {
		log.Error("Failed to save app context", "path", c.opts.StatePath, "err", err)
	}
}

// Shutdown ends a running session so its summary is stored.
func (c *Controller) Shutdown(ctx context.Context) {
	o := c.current()
	if o == nil || o.Status().Ended {
		return
	}
	if _, err := o.End(ctx); err != nil && !errors.Is(err, session.ErrEnded) {
		log.Error("Failed to end session on shutdown", "err", err)
	}
}

// ServeBus executes UI commands read from the bus until it is closed. The
// command name is the event content; typed text travels in data.
func (c *Controller) ServeBus(ctx context.Context, bus *events.Bus) {
	for {
		ev, err := bus.Read()
		if err != nil {
			if errors.Is(err, events.ErrBusClosed) {
				return
			}
			log.Warn("Bus read failed", "err", err)
			continue
		}
		if ev.Kind != events.KindCommand {
			continue
		}

		msg := ipc.ControlMessage{Cmd: ev.Content}
		if s, ok := ev.Data.(string); ok {
			msg.Text = s
		}
		go func() {
			reply := c.Handle(ctx, msg)
			if !reply.OK {
				bus.Publish(events.Event{Kind: events.KindError, Content: reply.Error})
			}
		}()
	}
}
