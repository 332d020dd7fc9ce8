package audio

import (
	"context"
	"errors"
	"time"

	"github.com/gordonklaus/portaudio"

	"rehearse/pkg/audioconv"
)

const frameSize = 320 // 20ms at 16 kHz

var ErrNoSpeech = errors.New("no speech detected")

// VAD configures utterance detection by frame energy.
type VAD struct {
	Threshold float64       // RMS above which a frame counts as speech
	Trailing  time.Duration // silence that ends an utterance
	NoSpeech  time.Duration // give up if nobody speaks for this long
	MaxLength time.Duration
}

func DefaultVAD() VAD {
	return VAD{
		Threshold: 0.015,
		Trailing:  600 * time.Millisecond,
		NoSpeech:  8 * time.Second,
		MaxLength: 30 * time.Second,
	}
}

func (v VAD) frames(d time.Duration) int {
	return int(d / (20 * time.Millisecond))
}

// Segmenter accumulates frames until an utterance is complete.
type Segmenter struct {
	vad      VAD
	speaking bool
	silent   int
	waited   int
	total    int
	out      []float32
}

func NewSegmenter(vad VAD) *Segmenter {
	return &Segmenter{vad: vad}
}

// Push feeds one frame. It returns true once the utterance is complete and
// ErrNoSpeech if the wait for speech ran out.
func (s *Segmenter) Push(frame []float32) (bool, error) {
	s.total++
	loud := audioconv.RMS(frame) > s.vad.Threshold

	switch {
	case loud:
		s.speaking = true
		s.silent = 0
		s.out = append(s.out, frame...)
	case s.speaking:
		s.silent++
		s.out = append(s.out, frame...)
		if s.silent >= s.vad.frames(s.vad.Trailing) {
			return true, nil
		}
	default:
		s.waited++
		if s.vad.NoSpeech > 0 && s.waited >= s.vad.frames(s.vad.NoSpeech) {
			return false, ErrNoSpeech
		}
	}

	if s.vad.MaxLength > 0 && s.total >= s.vad.frames(s.vad.MaxLength) {
		if !s.speaking {
			return false, ErrNoSpeech
		}
		return true, nil
	}
	return false, nil
}

func (s *Segmenter) Samples() []float32 { return s.out }

// Recorder reads the default input device at 16 kHz mono.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Init() error { return portaudio.Initialize() }

func (r *Recorder) Close() { _ = portaudio.Terminate() }

// RecordUtterance returns the samples of the next utterance. Cancelling ctx
// returns what was captured so far along with the context error.
func (r *Recorder) RecordUtterance(ctx context.Context, vad VAD) ([]float32, error) {
	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audioconv.Rate, len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	seg := NewSegmenter(vad)
	for {
		if err := ctx.Err(); err != nil {
			return seg.Samples(), err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		done, err := seg.Push(buf)
		if err != nil {
			return nil, err
		}
		if done {
			return seg.Samples(), nil
		}
	}
}
