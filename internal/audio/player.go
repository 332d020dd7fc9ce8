// Package audio owns the sound card: playing synthesized replies, the
// listening cue, microphone capture and ducking other applications.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	log "log/slog"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

const outputRate beep.SampleRate = 44100

// Duck levels while the interviewer speaks.
const (
	DuckFactor = 0.3
	DuckFade   = 200 * time.Millisecond
)

type Ducking interface {
	Duck(ctx context.Context, factor float64, over time.Duration) error
	Restore(ctx context.Context, over time.Duration) error
}

// Player plays mp3 clips one at a time through the beep speaker.
type Player struct {
	ducker Ducking
	cue    []byte

	initOnce sync.Once
	initErr  error
	mu       sync.Mutex
}

// NewPlayer loads the optional listening cue from cuePath. ducker may be
// nil.
func NewPlayer(ducker Ducking, cuePath string) (*Player, error) {
	p := &Player{ducker: ducker}
	if cuePath != "" {
		cue, err := os.ReadFile(cuePath)
		if err != nil {
			return nil, fmt.Errorf("read cue: %w", err)
		}
		p.cue = cue
	}
	return p, nil
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	return p.initErr
}

// Play decodes an mp3 clip and blocks until it finished or ctx is done.
// Other applications are ducked for the duration.
func (p *Player) Play(ctx context.Context, clip []byte) error {
	if p.ducker != nil {
		if err := p.ducker.Duck(ctx, DuckFactor, DuckFade); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
		defer func() {
			if err := p.ducker.Restore(context.WithoutCancel(ctx), DuckFade); err != nil {
				log.Warn("Failed to restore other streams", "err", err)
			}
		}()
	}
	return p.play(ctx, clip)
}

// Cue plays the short sound that signals the microphone is open.
func (p *Player) Cue(ctx context.Context) error {
	if len(p.cue) == 0 {
		return nil
	}
	return p.play(ctx, p.cue)
}

func (p *Player) play(ctx context.Context, clip []byte) error {
	if err := p.init(); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(clip)))
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	p.mu.Lock()
	defer p.mu.Unlock()

	var s beep.Streamer = streamer
	if format.SampleRate != outputRate {
		s = beep.Resample(4, format.SampleRate, outputRate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() { close(done) })))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
