// Package frame defines the tagged JSON envelopes exchanged over the
// /client-ws streaming connection, inbound and outbound.
package frame

// Inbound frame type tags (client -> server).
const (
	TypeExpressionCommand     = "expression-command"
	TypeMotionCommand         = "motion-command"
	TypeTextInput             = "text-input"
	TypeTextGenerationRequest = "text-generation-request"
	TypeSetBackendMode        = "set-backend-mode"
	TypeGetBackendMode        = "get-backend-mode"
	TypeMicAudioData          = "mic-audio-data"
	TypeMicAudioEnd           = "mic-audio-end"
)

// Outbound frame type tags (server -> client).
const (
	TypeAudio                  = "audio"
	TypeExpressionAck          = "expression-ack"
	TypeMotionAck              = "motion-ack"
	TypeBackendModeSet         = "backend-mode-set"
	TypeTextGenerationChunk    = "text-generation-chunk"
	TypeTextGenerationResponse = "text-generation-response"
	TypeUserInputTranscription = "user-input-transcription"
	TypeAutonomousChat         = "autonomous-chat"
	TypeFullText               = "full-text"
	TypePartialText            = "partial-text"
	TypeError                  = "error"
)

// Envelope is the minimal shape every frame shares: a type discriminator.
// Handlers decode the remaining fields from the same raw bytes once Type
// is known.
type Envelope struct {
	Type string `json:"type"`
}

// MotionSpec names one motion by group/index with playback hints, used
// both in Actions and in raw inbound motion commands.
type MotionSpec struct {
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop,omitempty"`
	Priority int    `json:"priority,omitempty"`
}

// Actions is attached to outbound speech events. Every expression ID
// present must appear as a value in the active model's emotion_map.
type Actions struct {
	Expressions []int        `json:"expressions"`
	Motions     []MotionSpec `json:"motions"`
}

// DisplayText carries the caption shown alongside an audio frame.
type DisplayText struct {
	Text        string `json:"text"`
	SpeakerName string `json:"speaker_name"`
	Avatar      string `json:"avatar,omitempty"`
}

// AudioPayload is the "audio" outbound frame. AudioBytes is nil for
// expression-only frames.
type AudioPayload struct {
	Type          string      `json:"type"`
	AudioBytes    []byte      `json:"audio_bytes,omitempty"`
	Format        string      `json:"format,omitempty"`
	Volumes       []float64   `json:"volumes,omitempty"`
	SliceLengthMs int         `json:"slice_length_ms,omitempty"`
	DisplayText   DisplayText `json:"display_text"`
	Actions       Actions     `json:"actions"`
	Forwarded     bool        `json:"forwarded_flag"`
}

// NewAudioFrame builds an AudioPayload with Type pre-set.
func NewAudioFrame(actions Actions, display DisplayText) AudioPayload {
	return AudioPayload{Type: TypeAudio, Actions: actions, DisplayText: display}
}

// MotionCommandFrame is the outbound "motion-command" frame, distinct
// from AudioPayload because motions may be triggered independent of
// speech.
type MotionCommandFrame struct {
	Type     string `json:"type"`
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

func NewMotionCommandFrame(spec MotionSpec) MotionCommandFrame {
	return MotionCommandFrame{
		Type:     TypeMotionCommand,
		Group:    spec.Group,
		Index:    spec.Index,
		Loop:     spec.Loop,
		Priority: spec.Priority,
	}
}

// AckFrame acknowledges an expression/motion/backend-mode command.
type AckFrame struct {
	Type  string `json:"type"`
	Status string `json:"status"`
	Error string `json:"error,omitempty"`
}

func NewExpressionAck(status, errMsg string) AckFrame {
	return AckFrame{Type: TypeExpressionAck, Status: status, Error: errMsg}
}

func NewMotionAck(status, errMsg string) AckFrame {
	return AckFrame{Type: TypeMotionAck, Status: status, Error: errMsg}
}

func NewBackendModeSet(status, errMsg string) AckFrame {
	return AckFrame{Type: TypeBackendModeSet, Status: status, Error: errMsg}
}

// TextChunkFrame carries one streamed fragment of generated text.
type TextChunkFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextChunk(text string) TextChunkFrame {
	return TextChunkFrame{Type: TypeTextGenerationChunk, Text: text}
}

// TextResponseFrame is the terminal frame after a streamed generation.
type TextResponseFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextResponse(text string) TextResponseFrame {
	return TextResponseFrame{Type: TypeTextGenerationResponse, Text: text}
}

// TranscriptionFrame reflects ASR output back to the client.
type TranscriptionFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTranscription(text string) TranscriptionFrame {
	return TranscriptionFrame{Type: TypeUserInputTranscription, Text: text}
}

// AutonomousChatFrame is emitted by the scheduler alongside the audio
// frame it accompanies.
type AutonomousChatFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewAutonomousChat(text string) AutonomousChatFrame {
	return AutonomousChatFrame{Type: TypeAutonomousChat, Text: text}
}

// FullTextFrame / PartialTextFrame mirror agent streaming progress for
// clients that want incremental display text distinct from TTS chunks.
type FullTextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type PartialTextFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewFullText(text string) FullTextFrame       { return FullTextFrame{Type: TypeFullText, Text: text} }
func NewPartialText(text string) PartialTextFrame { return PartialTextFrame{Type: TypePartialText, Text: text} }

// ErrorFrame is delivered for any inbound parse/handling failure. It is
// never fatal to the stream.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Message: message}
}

// Inbound payloads, decoded once Envelope.Type identifies the shape.

type ExpressionCommandIn struct {
	ExpressionID int `json:"expression_id"`
	DurationMs   int `json:"duration,omitempty"`
	Priority     int `json:"priority,omitempty"`
}

type MotionCommandIn struct {
	MotionGroup string `json:"motion_group"`
	MotionIndex int    `json:"motion_index"`
	Loop        bool   `json:"loop,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

type TextInputIn struct {
	Text string `json:"text"`
}

type TextGenerationRequestIn struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context,omitempty"`
}

type SetBackendModeIn struct {
	Mode string `json:"mode"`
}

type MicAudioDataIn struct {
	Chunk []byte `json:"chunk"`
}
