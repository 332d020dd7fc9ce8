// Package synth turns interviewer replies into speech through an ordered
// chain of providers, ending in on-device synthesis.
package synth

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
)

var (
	ErrEmptyText          = errors.New("empty text")
	ErrAllProvidersFailed = errors.New("all speech providers failed")
)

// Provider returns audio/mpeg bytes for text.
type Provider interface {
	Name() string
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays encoded audio and returns when playback finished.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Device speaks text directly with no audio-format guarantee.
type Device interface {
	Say(ctx context.Context, text string) error
}

const DevicePath = "device"

// Outcome names the single path that produced the audio.
type Outcome struct {
	Path string
}

type Gateway struct {
	providers []Provider
	player    Player
	device    Device
}

func NewGateway(player Player, device Device, providers ...Provider) *Gateway {
	return &Gateway{providers: providers, player: player, device: device}
}

// Synthesize walks the provider chain and returns the first audio produced.
func (g *Gateway) Synthesize(ctx context.Context, text string) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyText
	}

	var errs []error
	for _, p := range g.providers {
		audio, err := p.Synthesize(ctx, text)
		if err == nil {
			return audio, p.Name(), nil
		}
		log.Warn("Speech provider failed, falling back", "provider", p.Name(), "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return nil, "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

// Speak plays text through the first provider that succeeds and falls back
// to the device when no provider audio could be played.
func (g *Gateway) Speak(ctx context.Context, text string) (Outcome, error) {
	audio, name, err := g.Synthesize(ctx, text)
	if err == nil {
		perr := errors.New("no audio player configured")
		if g.player != nil {
			perr = g.player.Play(ctx, audio)
		}
		if perr == nil {
			return Outcome{Path: name}, nil
		}
		log.Warn("Playback failed, using device voice", "provider", name, "err", perr)
		err = fmt.Errorf("play %s audio: %w", name, perr)
	} else if errors.Is(err, ErrEmptyText) {
		return Outcome{}, err
	}

	if g.device == nil {
		return Outcome{}, err
	}
	if derr := g.device.Say(ctx, text); derr != nil {
		return Outcome{}, fmt.Errorf("device voice: %w (after %v)", derr, err)
	}
	return Outcome{Path: DevicePath}, nil
}
