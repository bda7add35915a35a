// Package tts defines the external text-to-speech collaborator
// consumed by the Backend Adapter. Speech synthesis itself is out of
// scope; this is the seam an Internal/ExternalAPI adapter calls through.
package tts

import (
	"context"
	"errors"
)

// Synthesizer turns text into audio bytes plus lip-sync volume samples.
// Implementations are external collaborators: failures are contained
// locally by the caller and never torn down the session.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (audio []byte, format string, volumes []float64, sliceLengthMs int, err error)
}

// NoOp is a Synthesizer that always fails, used where no TTS backend is
// configured. skip_tts requests never reach it.
type NoOp struct{}

func (NoOp) Synthesize(_ context.Context, _ string) ([]byte, string, []float64, int, error) {
	return nil, "", nil, 0, errNoTTSConfigured
}

var errNoTTSConfigured = errors.New("tts: no synthesizer configured")
