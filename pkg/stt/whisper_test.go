package stt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNonSpeech(t *testing.T) {
	for _, s := range []string{"", "[BLANK_AUDIO]", "(music)", "[ Silence ]"} {
		assert.True(t, IsNonSpeech(s), s)
	}
	assert.False(t, IsNonSpeech("I led the migration to Go."))
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	tr := &Transcriber{}
	_, err := tr.TranscribePCM(context.Background(), nil, Options{})
	require.ErrorIs(t, err, ErrNoAudio)
	assert.NoError(t, tr.Close())
}
