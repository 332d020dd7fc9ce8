package synth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haguro/elevenlabs-go"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlayer struct {
	played [][]byte
	err    error
}

func (p *recordingPlayer) Play(_ context.Context, audio []byte) error {
	if p.err != nil {
		return p.err
	}
	p.played = append(p.played, audio)
	return nil
}

type recordingDevice struct {
	said []string
	err  error
}

func (d *recordingDevice) Say(_ context.Context, text string) error {
	if d.err != nil {
		return d.err
	}
	d.said = append(d.said, text)
	return nil
}

type stubProvider struct {
	name  string
	audio []byte
	err   error
	texts []string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.texts = append(s.texts, text)
	return s.audio, s.err
}

func TestSpeakPrimaryShortCircuits(t *testing.T) {
	primary := &stubProvider{name: "primary", audio: []byte("P")}
	secondary := &stubProvider{name: "secondary", audio: []byte("S")}
	player, device := &recordingPlayer{}, &recordingDevice{}

	out, err := NewGateway(player, device, primary, secondary).Speak(context.Background(), "Hello")
	require.NoError(t, err)

	assert.Equal(t, "primary", out.Path)
	assert.Equal(t, [][]byte{[]byte("P")}, player.played)
	assert.Empty(t, secondary.texts)
	assert.Empty(t, device.said)
}

func TestSpeakFallsBackToSecondaryWithSameText(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("status 500")}
	secondary := &stubProvider{name: "secondary", audio: []byte("S")}
	player, device := &recordingPlayer{}, &recordingDevice{}

	out, err := NewGateway(player, device, primary, secondary).Speak(context.Background(), "Tell me more")
	require.NoError(t, err)

	assert.Equal(t, "secondary", out.Path)
	assert.Equal(t, []string{"Tell me more"}, secondary.texts)
	assert.Len(t, player.played, 1)
	assert.Empty(t, device.said)
}

func TestSpeakFallsBackToDevice(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	secondary := &stubProvider{name: "secondary", err: errors.New("down")}
	player, device := &recordingPlayer{}, &recordingDevice{}

	out, err := NewGateway(player, device, primary, secondary).Speak(context.Background(), "Goodbye")
	require.NoError(t, err)

	assert.Equal(t, DevicePath, out.Path)
	assert.Empty(t, player.played)
	assert.Equal(t, []string{"Goodbye"}, device.said)
}

func TestSpeakPlaybackFailureUsesDevice(t *testing.T) {
	primary := &stubProvider{name: "primary", audio: []byte("P")}
	player := &recordingPlayer{err: errors.New("no sink")}
	device := &recordingDevice{}

	out, err := NewGateway(player, device, primary).Speak(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, DevicePath, out.Path)
	assert.Equal(t, []string{"Hi"}, device.said)
}

func TestSpeakEverythingFails(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("down")}
	device := &recordingDevice{err: errors.New("espeak missing")}

	_, err := NewGateway(&recordingPlayer{}, device, primary).Speak(context.Background(), "Hi")
	assert.Error(t, err)
}

func TestSpeakEmptyText(t *testing.T) {
	device := &recordingDevice{}
	_, err := NewGateway(&recordingPlayer{}, device).Speak(context.Background(), "  ")
	assert.True(t, errors.Is(err, ErrEmptyText))
	assert.Empty(t, device.said)
}

type fakeElevenLabs struct {
	calls   atomic.Int32
	voiceID string
	req     elevenlabs.TextToSpeechRequest
	apiKey  string
	audio   []byte
	err     error
}

func (f *fakeElevenLabs) TextToSpeech(voiceID string, req elevenlabs.TextToSpeechRequest, _ ...elevenlabs.QueryFunc) ([]byte, error) {
	f.calls.Add(1)
	f.voiceID, f.req = voiceID, req
	return f.audio, f.err
}

func newFakeElevenLabs(fake *fakeElevenLabs, cfg ElevenLabsConfig) *ElevenLabs {
	e := NewElevenLabs(cfg)
	e.newClient = func(_ context.Context, apiKey string, _ time.Duration) TextToSpeecher {
		fake.apiKey = apiKey
		return fake
	}
	return e
}

func TestElevenLabsRequest(t *testing.T) {
	fake := &fakeElevenLabs{audio: []byte("ID3mp3")}
	e := newFakeElevenLabs(fake, ElevenLabsConfig{APIKey: "key"})

	audio, err := e.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3mp3"), audio)

	assert.Equal(t, "key", fake.apiKey)
	assert.Equal(t, DefaultElevenLabsVoice, fake.voiceID)
	assert.Equal(t, "Hello", fake.req.Text)
	assert.Equal(t, "eleven_turbo_v2_5", fake.req.ModelID)
	require.NotNil(t, fake.req.VoiceSettings)
	assert.InDelta(t, 0.5, float64(fake.req.VoiceSettings.Stability), 1e-6)
	assert.InDelta(t, 0.75, float64(fake.req.VoiceSettings.SimilarityBoost), 1e-6)
}

func TestElevenLabsNon2xx(t *testing.T) {
	fake := &fakeElevenLabs{err: errors.New("status 429: quota exceeded")}
	e := newFakeElevenLabs(fake, ElevenLabsConfig{APIKey: "key", VoiceID: "voice-1"})

	_, err := e.Synthesize(context.Background(), "Hello")
	assert.ErrorContains(t, err, "429")
	assert.Equal(t, "voice-1", fake.voiceID)
}

func TestElevenLabsEmptyAudio(t *testing.T) {
	e := newFakeElevenLabs(&fakeElevenLabs{}, ElevenLabsConfig{APIKey: "key"})
	_, err := e.Synthesize(context.Background(), "Hello")
	assert.Error(t, err)
}

func TestElevenLabsWithoutKey(t *testing.T) {
	fake := &fakeElevenLabs{}
	_, err := newFakeElevenLabs(fake, ElevenLabsConfig{}).Synthesize(context.Background(), "Hello")
	assert.Error(t, err)
	assert.Equal(t, int32(0), fake.calls.Load())
}

func TestChainElevenLabsToOpenAI(t *testing.T) {
	var openaiCalls atomic.Int32
	eleven := &fakeElevenLabs{err: errors.New("status 500: internal error")}

	oai := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		openaiCalls.Add(1)
		assert.Equal(t, "/audio/speech", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tts-1-hd", body["model"])
		assert.Equal(t, "onyx", body["voice"])
		assert.Equal(t, "Tell me about React", body["input"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("onyx-mp3"))
	}))
	defer oai.Close()

	client := openai.NewClient(option.WithAPIKey("test"), option.WithBaseURL(oai.URL), option.WithMaxRetries(0))
	player := &recordingPlayer{}
	gw := NewGateway(player, &recordingDevice{},
		newFakeElevenLabs(eleven, ElevenLabsConfig{APIKey: "key"}),
		NewOpenAI(client),
	)

	out, err := gw.Speak(context.Background(), "Tell me about React")
	require.NoError(t, err)

	assert.Equal(t, "openai", out.Path)
	assert.Equal(t, int32(1), eleven.calls.Load())
	assert.Equal(t, "Tell me about React", eleven.req.Text)
	assert.Equal(t, int32(1), openaiCalls.Load())
	assert.Equal(t, [][]byte{[]byte("onyx-mp3")}, player.played)
}
