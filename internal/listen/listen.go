// Package listen is the on-device speech recognizer: microphone utterances
// transcribed by whisper and reported as capture events.
package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"

	"rehearse/internal/audio"
	"rehearse/internal/capture"
	"rehearse/pkg/audioconv"
	"rehearse/pkg/stt"
)

// Error codes reported besides the recoverable capture ones.
const (
	CodeAudioCapture  = "audio-capture"
	CodeTranscription = "transcription"
)

type Transcriber interface {
	TranscribePCM(ctx context.Context, pcm []float32, opt stt.Options) (stt.Result, error)
}

type Source interface {
	RecordUtterance(ctx context.Context, vad audio.VAD) ([]float32, error)
}

// Mic records utterances until stopped. Each transcribed utterance is one
// final result.
type Mic struct {
	src  Source
	tr   Transcriber
	vad  audio.VAD
	opts stt.Options

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewMic(src Source, tr Transcriber, vad audio.VAD, opts stt.Options) *Mic {
	return &Mic{src: src, tr: tr, vad: vad, opts: opts}
}

func (m *Mic) Start(ctx context.Context, emit func(capture.Event)) error {
	if m.src == nil || m.tr == nil {
		return capture.ErrUnsupported
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	rctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	go m.loop(rctx, emit)
	return nil
}

func (m *Mic) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Mic) loop(ctx context.Context, emit func(capture.Event)) {
	heard := false
	for {
		pcm, err := m.src.RecordUtterance(ctx, m.vad)
		switch {
		case ctx.Err() != nil:
			emit(capture.Event{Kind: capture.EventEnd})
			return
		case errors.Is(err, audio.ErrNoSpeech):
			if heard {
				emit(capture.Event{Kind: capture.EventEnd})
			} else {
				emit(capture.Event{Kind: capture.EventError, Code: capture.CodeNoSpeech})
			}
			return
		case err != nil:
			log.Error("Failed to record", "err", err)
			emit(capture.Event{Kind: capture.EventError, Code: CodeAudioCapture})
			return
		}

		res, err := m.tr.TranscribePCM(ctx, pcm, m.opts)
		if err != nil {
			if ctx.Err() != nil {
				emit(capture.Event{Kind: capture.EventEnd})
				return
			}
			log.Error("Failed to transcribe", "err", err)
			emit(capture.Event{Kind: capture.EventError, Code: CodeTranscription})
			return
		}
		if res.Text == "" {
			continue
		}

		log.Debug("Transcribed", "text", res.Text, "lang", res.Language)
		heard = true
		emit(capture.Event{Kind: capture.EventResult, Text: res.Text, Final: true})
	}
}

// TranscribeFile turns a recorded answer (wav, mp3 or ogg) into text.
func TranscribeFile(ctx context.Context, tr Transcriber, path string, opts stt.Options) (string, error) {
	pcm, err := audioconv.DecodeFile(ctx, path, audioconv.Options{})
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	res, err := tr.TranscribePCM(ctx, pcm, opts)
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, err)
	}
	return res.Text, nil
}
