package listen

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rehearse/internal/audio"
	"rehearse/internal/capture"
	"rehearse/pkg/stt"
)

type scriptedSource struct {
	mu    sync.Mutex
	steps []error
}

// RecordUtterance returns one sample per step; a nil step is speech. Once
// the script is exhausted it blocks until ctx is done.
func (s *scriptedSource) RecordUtterance(ctx context.Context, _ audio.VAD) ([]float32, error) {
	s.mu.Lock()
	if len(s.steps) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	err := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []float32{0.5}, nil
}

type echoTranscriber struct {
	texts []string
	err   error
}

func (e *echoTranscriber) TranscribePCM(context.Context, []float32, stt.Options) (stt.Result, error) {
	if e.err != nil {
		return stt.Result{}, e.err
	}
	t := e.texts[0]
	e.texts = e.texts[1:]
	return stt.Result{Text: t}, nil
}

type collector struct {
	mu  sync.Mutex
	evs []capture.Event
}

func (c *collector) emit(ev capture.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) events() []capture.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capture.Event(nil), c.evs...)
}

func (c *collector) waitFor(t *testing.T, n int) []capture.Event {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.events()) >= n }, time.Second, time.Millisecond)
	return c.events()
}

func TestMicEmitsFinalResultsUntilStopped(t *testing.T) {
	src := &scriptedSource{steps: []error{nil, nil}}
	mic := NewMic(src, &echoTranscriber{texts: []string{"I built", ""}}, audio.DefaultVAD(), stt.Options{})
	c := &collector{}

	require.NoError(t, mic.Start(context.Background(), c.emit))
	evs := c.waitFor(t, 1)
	assert.Equal(t, capture.Event{Kind: capture.EventResult, Text: "I built", Final: true}, evs[0])

	mic.Stop()
	evs = c.waitFor(t, 2)
	assert.Equal(t, capture.EventEnd, evs[1].Kind)
}

func TestMicNoSpeech(t *testing.T) {
	mic := NewMic(&scriptedSource{steps: []error{audio.ErrNoSpeech}}, &echoTranscriber{}, audio.DefaultVAD(), stt.Options{})
	c := &collector{}

	require.NoError(t, mic.Start(context.Background(), c.emit))
	evs := c.waitFor(t, 1)
	assert.Equal(t, capture.EventError, evs[0].Kind)
	assert.Equal(t, capture.CodeNoSpeech, evs[0].Code)
}

func TestMicPauseAfterSpeechEnds(t *testing.T) {
	src := &scriptedSource{steps: []error{nil, audio.ErrNoSpeech}}
	mic := NewMic(src, &echoTranscriber{texts: []string{"done"}}, audio.DefaultVAD(), stt.Options{})
	c := &collector{}

	require.NoError(t, mic.Start(context.Background(), c.emit))
	evs := c.waitFor(t, 2)
	assert.Equal(t, capture.EventEnd, evs[1].Kind)
}

func TestMicTranscriptionFailure(t *testing.T) {
	mic := NewMic(&scriptedSource{steps: []error{nil}}, &echoTranscriber{err: errors.New("model")}, audio.DefaultVAD(), stt.Options{})
	c := &collector{}

	require.NoError(t, mic.Start(context.Background(), c.emit))
	evs := c.waitFor(t, 1)
	assert.Equal(t, CodeTranscription, evs[0].Code)
}

func TestMicUnsupported(t *testing.T) {
	require.ErrorIs(t, NewMic(nil, nil, audio.VAD{}, stt.Options{}).Start(context.Background(), func(capture.Event) {}), capture.ErrUnsupported)
}
