package synth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haguro/elevenlabs-go"
)

const (
	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
	elevenLabsModel        = "eleven_turbo_v2_5"
	elevenLabsTimeout      = 60 * time.Second
)

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Timeout time.Duration
}

// TextToSpeecher is the part of the ElevenLabs client used here.
type TextToSpeecher interface {
	TextToSpeech(voiceID string, req elevenlabs.TextToSpeechRequest, queries ...elevenlabs.QueryFunc) ([]byte, error)
}

// ElevenLabs is the primary voice provider. The SDK binds a context per
// client, so one is built for every call.
type ElevenLabs struct {
	cfg       ElevenLabsConfig
	newClient func(ctx context.Context, apiKey string, timeout time.Duration) TextToSpeecher
}

var _ Provider = (*ElevenLabs)(nil)

func NewElevenLabs(cfg ElevenLabsConfig) *ElevenLabs {
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultElevenLabsVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = elevenLabsTimeout
	}
	return &ElevenLabs{
		cfg: cfg,
		newClient: func(ctx context.Context, apiKey string, timeout time.Duration) TextToSpeecher {
			return elevenlabs.NewClient(ctx, apiKey, timeout)
		},
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

func (e *ElevenLabs) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if e.cfg.APIKey == "" {
		return nil, errors.New("elevenlabs api key not set")
	}

	client := e.newClient(ctx, e.cfg.APIKey, e.cfg.Timeout)
	audio, err := client.TextToSpeech(e.cfg.VoiceID, elevenlabs.TextToSpeechRequest{
		Text:    text,
		ModelID: elevenLabsModel,
		VoiceSettings: &elevenlabs.VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("elevenlabs returned no audio")
	}
	return audio, nil
}
