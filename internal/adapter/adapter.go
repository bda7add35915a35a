// Package adapter implements the polymorphic BackendAdapter surface
// consumed by the session registry, control-plane router, scheduler,
// and chat ingest pipeline: a capability-set interface with one small
// struct per variant, rather than an abstract-base dispatch hierarchy.
package adapter

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vtuber/controlplane/internal/agent"
	"github.com/vtuber/controlplane/internal/asr"
	"github.com/vtuber/controlplane/internal/frame"
	"github.com/vtuber/controlplane/internal/model"
	"github.com/vtuber/controlplane/internal/tts"
)

// Mode tags which variant a session's adapter is running as.
type Mode string

const (
	ModeInternal    Mode = "Internal"
	ModeExternalAPI Mode = "ExternalAPI"
	ModeAutonomous  Mode = "Autonomous"
)

// Outbound is the direct send handle a session hands its adapter. It is
// never a strong reference back to the session itself, only a narrow
// capability to enqueue frames, avoiding a session/adapter/context
// reference cycle.
type Outbound interface {
	// Send blocks up to a short timeout and fails if the channel stays
	// full; used on direct-reply paths (REST acks, client-ws replies).
	Send(f any) error
	// TrySend is best-effort; used on broadcast/scheduler paths. Returns
	// false (and logs) if the frame was dropped.
	TrySend(f any) bool
}

// Result is the {status, error?} shape every adapter operation returns.
// TTSGenerated is only meaningful on a Speak result: it reports whether
// audio was actually synthesized, as opposed to the caller's requested
// skip_tts/empty-text gating condition.
type Result struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	TTSGenerated bool   `json:"-"`
}

func ok() Result { return Result{Status: "success"} }
func errResult(err error) Result {
	return Result{Status: "error", Error: err.Error()}
}

// Context bundles the external collaborators an adapter may call
// through: the agent engine, the live-model descriptor, and the TTS and
// ASR handles, plus the speaker name. All are supplied by whoever owns
// the session.
type Context struct {
	Agent   agent.Agent
	Model   *model.LiveModelDescriptor
	TTS     tts.Synthesizer
	ASR     asr.Transcriber
	Speaker string // display name surfaced in AudioPayload.DisplayText
}

// MotionSpec names one motion to trigger, mirroring frame.MotionSpec.
type MotionSpec = frame.MotionSpec

// BackendAdapter is the capability set every variant exposes.
type BackendAdapter interface {
	TriggerExpression(ctx context.Context, expressionID, durationMs, priority int) Result
	TriggerMotion(ctx context.Context, group string, index int, loop bool, priority int) Result
	Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool) Result
	GenerateText(ctx context.Context, prompt string, promptContext map[string]any) (string, error)
	Mode() Mode
}

// base holds the fields shared by all three variants: the invariants
// (validate against the model, emit audio-before-motion, at most one
// audio frame per invocation) live here so each variant only supplies
// its Speak/GenerateText framing differences.
type base struct {
	out     Outbound
	ctx     *Context
	mode    Mode
	forward bool // ExternalAPI/Autonomous frames set forwarded_flag
}

func (b *base) TriggerExpression(_ context.Context, expressionID, durationMs, priority int) Result {
	if expressionID < 0 {
		return errResult(fmt.Errorf("expression_id %d is negative", expressionID))
	}
	if b.ctx.Model != nil && !b.ctx.Model.HasExpression(expressionID) {
		return errResult(fmt.Errorf("expression_id %d not in active model", expressionID))
	}

	f := frame.NewAudioFrame(
		frame.Actions{Expressions: []int{expressionID}},
		frame.DisplayText{SpeakerName: b.ctx.Speaker},
	)
	f.Forwarded = b.forward
	_ = durationMs // duration only governs client-side reset scheduling; it is not carried on the frame.
	b.emit(f)
	return ok()
}

func (b *base) TriggerMotion(_ context.Context, group string, index int, loop bool, priority int) Result {
	if index < 0 {
		return errResult(fmt.Errorf("motion index %d is negative", index))
	}
	if b.ctx.Model != nil && !b.ctx.Model.HasMotion(group, index) {
		return errResult(fmt.Errorf("unknown motion group %q", group))
	}

	b.emit(frame.NewMotionCommandFrame(MotionSpec{Group: group, Index: index, Loop: loop, Priority: priority}))
	return ok()
}

// speakCommon implements the shared Speak body: validate, optionally
// synthesize, emit audio frame then motion frames in order. skipTTS
// forces audio_bytes=null even when a TTS handle is configured.
func (b *base) speakCommon(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool) Result {
	for _, id := range expressions {
		if id < 0 {
			return errResult(fmt.Errorf("expression_id %d is negative", id))
		}
		if b.ctx.Model != nil && !b.ctx.Model.HasExpression(id) {
			return errResult(fmt.Errorf("expression_id %d not in active model", id))
		}
	}
	for _, m := range motions {
		if b.ctx.Model != nil && !b.ctx.Model.HasMotion(m.Group, m.Index) {
			return errResult(fmt.Errorf("unknown motion group %q", m.Group))
		}
	}

	audio := frame.NewAudioFrame(
		frame.Actions{Expressions: expressions, Motions: motions},
		frame.DisplayText{Text: text, SpeakerName: b.ctx.Speaker},
	)
	audio.Forwarded = b.forward

	ttsGenerated := false
	if text != "" && !skipTTS && b.ctx.TTS != nil {
		bytes, format, volumes, sliceMs, err := b.ctx.TTS.Synthesize(ctx, text)
		if err != nil {
			// ExternalServiceError: contained locally, reported on the
			// ack, no partial audio emitted.
			return errResult(fmt.Errorf("tts synthesis failed: %w", err))
		}
		audio.AudioBytes = bytes
		audio.Format = format
		audio.Volumes = volumes
		audio.SliceLengthMs = sliceMs
		ttsGenerated = true
	}

	b.emit(audio)
	for _, m := range motions {
		b.emit(frame.NewMotionCommandFrame(m))
	}
	res := ok()
	res.TTSGenerated = ttsGenerated
	return res
}

// generateTextCommon streams chunks from the Agent to this adapter's
// session and returns the full text. Each chunk is emitted as a
// text-generation-chunk and a partial-text frame; once the agent is
// done, a full-text frame and then the terminal text-generation-response
// frame are emitted.
func (b *base) generateTextCommon(ctx context.Context, prompt string, promptContext map[string]any) (string, error) {
	if b.ctx.Agent == nil {
		return "", fmt.Errorf("no agent configured")
	}
	full, err := b.ctx.Agent.Stream(ctx, prompt, promptContext, func(chunk string) {
		b.emit(frame.NewTextChunk(chunk))
		b.emit(frame.NewPartialText(chunk))
	})
	if err != nil {
		return "", err
	}
	b.emit(frame.NewFullText(full))
	b.emit(frame.NewTextResponse(full))
	return full, nil
}

// emit uses TrySend for Autonomous/broadcast-origin frames and Send
// (blocks up to the sink's timeout) otherwise. Either way a frame that
// cannot be enqueued is dropped with a logged warning; the failure is
// not reported in the Result of the operation that emitted it.
func (b *base) emit(f any) {
	if b.mode == ModeAutonomous {
		b.out.TrySend(f)
		return
	}
	if err := b.out.Send(f); err != nil {
		logrus.WithError(err).Warn("adapter: producer dropped frame")
	}
}

func (b *base) Mode() Mode { return b.mode }

// Internal is the default adapter variant: commands from the client's
// own text-input/expression-command frames.
type Internal struct{ base }

// NewInternal constructs the default, lazily-created-and-reused
// per-session adapter.
func NewInternal(out Outbound, ctx *Context) *Internal {
	return &Internal{base{out: out, ctx: ctx, mode: ModeInternal}}
}

func (a *Internal) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool) Result {
	return a.speakCommon(ctx, text, expressions, motions, skipTTS)
}

func (a *Internal) GenerateText(ctx context.Context, prompt string, promptContext map[string]any) (string, error) {
	return a.generateTextCommon(ctx, prompt, promptContext)
}

// ExternalAPI is selected per session through a set-backend-mode frame;
// REST endpoints call whichever variant the target session currently
// holds. Speak accepts pre-generated text rather than prompting the
// agent itself, and its frames set forwarded_flag.
type ExternalAPI struct{ base }

func NewExternalAPI(out Outbound, ctx *Context) *ExternalAPI {
	return &ExternalAPI{base{out: out, ctx: ctx, mode: ModeExternalAPI, forward: true}}
}

func (a *ExternalAPI) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool) Result {
	return a.speakCommon(ctx, text, expressions, motions, skipTTS)
}

func (a *ExternalAPI) GenerateText(ctx context.Context, prompt string, promptContext map[string]any) (string, error) {
	return a.generateTextCommon(ctx, prompt, promptContext)
}

// Autonomous is used by the scheduler to broadcast speech to every
// session currently in Autonomous mode. Its emit path is always
// best-effort.
type Autonomous struct{ base }

func NewAutonomous(out Outbound, ctx *Context) *Autonomous {
	return &Autonomous{base{out: out, ctx: ctx, mode: ModeAutonomous, forward: true}}
}

func (a *Autonomous) Speak(ctx context.Context, text string, expressions []int, motions []MotionSpec, skipTTS bool) Result {
	return a.speakCommon(ctx, text, expressions, motions, skipTTS)
}

func (a *Autonomous) GenerateText(ctx context.Context, prompt string, promptContext map[string]any) (string, error) {
	return a.generateTextCommon(ctx, prompt, promptContext)
}
