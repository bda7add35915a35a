// Package asr defines the external speech-recognition collaborator the
// control-plane router calls through when a mic-audio-end frame
// arrives. Mirrors internal/tts's Synthesizer seam: recognition itself
// is out of scope, only the contract the router depends on lives here.
package asr

import (
	"context"
	"errors"
)

// Transcriber turns buffered mic audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (text string, err error)
}

// NoOp always fails; used where no ASR backend is configured.
type NoOp struct{}

func (NoOp) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "", errNoASRConfigured
}

var errNoASRConfigured = errors.New("asr: no transcriber configured")
