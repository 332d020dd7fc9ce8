// Package tts is the on-device voice: espeak-ng speaking straight to the
// sound card. It is the last link of the speech chain.
package tts

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

int
espeak_say(const char *text, const char *lang, int rate)
{
	if (!text)
	{ return -1; }

	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -2; }

	espeak_VOICE specs = { .languages = lang };
	espeak_SetVoiceByProperties(&specs);
	espeak_SetParameter(espeakRATE, rate, 0);

	espeak_Synth(text, 0, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL);
	espeak_Synchronize();
	espeak_Terminate();

	return 0;
}
*/
import "C"

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

const (
	DefaultLanguage = "en"
	DefaultRate     = 175
)

// Espeak implements the device voice. espeak-ng keeps global state, so
// utterances are serialised.
type Espeak struct {
	Language string
	Rate     int

	mu sync.Mutex
}

func NewEspeak(language string, rate int) *Espeak {
	if language == "" {
		language = DefaultLanguage
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Espeak{Language: language, Rate: rate}
}

// Say blocks until the utterance has been played. A cancelled context only
// prevents the utterance from starting.
func (e *Espeak) Say(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ctext := C.CString(text)
	defer C.free(unsafe.Pointer(ctext))
	clang := C.CString(e.Language)
	defer C.free(unsafe.Pointer(clang))

	if rc := C.espeak_say(ctext, clang, C.int(e.Rate)); rc != 0 {
		return fmt.Errorf("espeak_say failed: %d", int(rc))
	}
	return nil
}
