// Package control implements the REST endpoints and the bidirectional
// /client-ws streaming endpoint: a Register method attaching every
// route, pkg/response envelopes, and a connection-upgrade guard
// in front of the websocket handler.
package control

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/r3labs/sse/v2"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/audit"
	"github.com/vtuber/controlplane/internal/frame"
	"github.com/vtuber/controlplane/internal/scheduler"
	"github.com/vtuber/controlplane/internal/session"
	"github.com/vtuber/controlplane/pkg/pkgerror"
	"github.com/vtuber/controlplane/pkg/response"
)

// auditStore records dispatched actions for the retention-swept audit
// trail. Set once at startup via SetAuditStore; a nil store (the
// zero value) makes every Log call a no-op, so it's always safe to
// call even before SetAuditStore runs.
var auditStore *audit.Store

// SetAuditStore installs the audit store every handler and dispatch
// function logs through. Call once during startup wiring.
func SetAuditStore(s *audit.Store) { auditStore = s }

// Router wires the session registry and scheduler to fiber routes.
type Router struct {
	registry  *session.Registry
	scheduler *scheduler.Scheduler
	sseServer *sse.Server
}

// New builds a Router. sseServer may be nil to disable the streaming
// generate endpoint's SSE transport.
func New(reg *session.Registry, sched *scheduler.Scheduler, sseServer *sse.Server) *Router {
	return &Router{registry: reg, scheduler: sched, sseServer: sseServer}
}

// Register attaches every REST endpoint and the /client-ws upgrade
// route to app.
func (rt *Router) Register(app *fiber.App) {
	app.Get("/healthz", rt.handleHealthz)
	app.Get("/api/sessions", rt.handleListSessions)

	app.Post("/api/expression", rt.handleExpression)
	app.Post("/api/motion", rt.handleMotion)
	app.Post("/api/autonomous/speak", rt.handleSpeak)
	app.Post("/api/autonomous/generate", rt.handleGenerate)
	if rt.sseServer != nil {
		app.Get("/api/autonomous/generate/stream", rt.handleGenerateStream)
	}
	app.Post("/api/autonomous/control", rt.handleControl)
	app.Get("/api/autonomous/status", rt.handleStatus)

	app.Use("/client-ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})
	app.Get("/client-ws", websocket.New(rt.handleClientWS))
}

func (rt *Router) handleHealthz(c *fiber.Ctx) error {
	return response.OK(c, "ok", fiber.Map{"sessions": rt.registry.Count()})
}

func (rt *Router) handleListSessions(c *fiber.Ctx) error {
	return response.OK(c, "active sessions", fiber.Map{"count": rt.registry.Count()})
}

// resolveClientUID applies the X-Client-UID / body client_uid
// precedence rule: body field wins on conflict.
func resolveClientUID(c *fiber.Ctx, bodyValue string) string {
	if bodyValue != "" {
		return bodyValue
	}
	return c.Get("X-Client-UID")
}

func (rt *Router) handleExpression(c *fiber.Ctx) error {
	var req expressionRequest
	if err := c.BodyParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateExpressionRequest(c.UserContext(), req))

	uid := resolveClientUID(c, req.ClientUID)
	s := rt.registry.GetOrDefault(uid)

	res := s.Adapter.TriggerExpression(c.UserContext(), req.ExpressionID, req.DurationMs, req.Priority)
	status := "success"
	if res.Status != "success" {
		status = "error"
	}
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "expression", status, res.Error)
	return response.OK(c, "expression dispatched", fiber.Map{
		"status":        status,
		"expression_id": req.ExpressionID,
		"result":        res,
	})
}

func (rt *Router) handleMotion(c *fiber.Ctx) error {
	var req motionRequest
	if err := c.BodyParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateMotionRequest(c.UserContext(), req))

	uid := resolveClientUID(c, req.ClientUID)
	s := rt.registry.GetOrDefault(uid)

	res := s.Adapter.TriggerMotion(c.UserContext(), req.MotionGroup, req.MotionIndex, req.Loop, req.Priority)
	status := "success"
	if res.Status != "success" {
		status = "error"
	}
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "motion", status, res.Error)
	return response.OK(c, "motion dispatched", fiber.Map{
		"status":       status,
		"motion_group": req.MotionGroup,
		"motion_index": req.MotionIndex,
		"result":       res,
	})
}

func (rt *Router) handleSpeak(c *fiber.Ctx) error {
	var req speakRequest
	if err := c.BodyParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateSpeakRequest(c.UserContext(), req))

	uid := resolveClientUID(c, req.ClientUID)
	s := rt.registry.GetOrDefault(uid)

	motions := make([]adapter.MotionSpec, len(req.Motions))
	motionLabels := make([]string, len(req.Motions))
	for i, m := range req.Motions {
		motions[i] = adapter.MotionSpec{Group: m.Group, Index: m.Index, Loop: m.Loop, Priority: m.Priority}
		motionLabels[i] = m.Group + "/" + strconv.Itoa(m.Index)
	}

	res := s.Adapter.Speak(c.UserContext(), req.Text, req.Expressions, motions, req.SkipTTS)
	status := "success"
	if res.Status != "success" {
		status = "error"
	}
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "speak", status, res.Error)

	return response.OK(c, "speak dispatched", fiber.Map{
		"status":        status,
		"message_id":    uuid.NewString(),
		"text":          req.Text,
		"expressions":   req.Expressions,
		"motions":       motionLabels,
		"tts_generated": res.TTSGenerated,
		"metadata":      req.Metadata,
	})
}

func (rt *Router) handleGenerate(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateGenerateRequest(c.UserContext(), req))

	s := rt.registry.GetOrDefault("default")
	text, err := s.Adapter.GenerateText(c.UserContext(), req.Prompt, req.Context)
	if err != nil {
		auditStore.Log(s.ID, string(s.Adapter.Mode()), "generate", "error", err.Error())
		response.PanicIfNeeded(pkgerror.ExternalServiceError(err.Error()))
	}
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "generate", "success", "")

	return response.OK(c, "generated", fiber.Map{"text": text, "metadata": req.Context})
}

// handleGenerateStream streams generation chunks as Server-Sent Events,
// an alternate transport to the client-ws text-generation-chunk frames
// for callers that only want text, not the full renderer protocol.
func (rt *Router) handleGenerateStream(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.QueryParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateGenerateRequest(c.UserContext(), req))

	streamID := uuid.NewString()
	rt.sseServer.CreateStream(streamID)
	defer rt.sseServer.RemoveStream(streamID)

	s := rt.registry.GetOrDefault("default")
	if s.Context.Agent == nil {
		response.PanicIfNeeded(pkgerror.ExternalServiceError("no agent configured"))
	}

	go func() {
		_, err := s.Context.Agent.Stream(context.Background(), req.Prompt, req.Context, func(chunk string) {
			rt.sseServer.Publish(streamID, &sse.Event{Data: []byte(chunk)})
		})
		if err != nil {
			rt.sseServer.Publish(streamID, &sse.Event{Event: []byte("error"), Data: []byte(err.Error())})
		}
		rt.sseServer.Publish(streamID, &sse.Event{Event: []byte("done")})
	}()

	c.Request().URI().SetQueryString("stream=" + streamID)
	return adaptor.HTTPHandler(rt.sseServer)(c)
}

func (rt *Router) handleControl(c *fiber.Ctx) error {
	var req controlRequest
	if err := c.BodyParser(&req); err != nil {
		response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
	}
	response.PanicIfNeeded(validateControlRequest(c.UserContext(), req))

	if req.Enabled != nil {
		rt.scheduler.SetEnabled(*req.Enabled)
	}
	if req.MinInterval != nil && req.MaxInterval != nil {
		min := time.Duration(*req.MinInterval * float64(time.Second))
		max := time.Duration(*req.MaxInterval * float64(time.Second))
		if err := rt.scheduler.SetIntervals(min, max); err != nil {
			response.PanicIfNeeded(pkgerror.ValidationError(err.Error()))
		}
	}

	snap := rt.scheduler.Snapshot()
	return response.OK(c, "autonomous control updated", fiber.Map{
		"status":       "success",
		"enabled":      snap.Enabled,
		"min_interval": snap.MinInterval.Seconds(),
		"max_interval": snap.MaxInterval.Seconds(),
	})
}

func (rt *Router) handleStatus(c *fiber.Ctx) error {
	snap := rt.scheduler.Snapshot()
	return response.OK(c, "autonomous status", fiber.Map{
		"mode":                          adapter.ModeAutonomous,
		"active":                        snap.Enabled,
		"autonomous_generator_enabled":  snap.Enabled,
		"autonomous_generator_interval": snap.MinInterval.Seconds(),
		"min_interval_seconds":          snap.MinInterval.Seconds(),
		"max_interval_seconds":          snap.MaxInterval.Seconds(),
		"min_interval_human":            humanize.RelTime(time.Now().Add(-snap.MinInterval), time.Now(), "", ""),
		"max_interval_human":            humanize.RelTime(time.Now().Add(-snap.MaxInterval), time.Now(), "", ""),
		"auto_responses_enabled":        snap.Enabled,
	})
}

// handleClientWS is the /client-ws upgrade target. Connection
// establishment triggers OnConnect; graceful close triggers
// OnDisconnect (both handled inside session.Registry).
func (rt *Router) handleClientWS(conn *websocket.Conn) {
	rt.registry.OnConnect(conn)
}

// Dispatch is the inbound frame handler table wired into
// session.NewRegistry via session.WithDispatch.
func Dispatch(ctx context.Context, s *session.Session, frameType string, raw []byte) error {
	switch frameType {
	case frame.TypeExpressionCommand:
		return dispatchExpressionCommand(ctx, s, raw)
	case frame.TypeMotionCommand:
		return dispatchMotionCommand(ctx, s, raw)
	case frame.TypeTextInput:
		return dispatchTextInput(ctx, s, raw)
	case frame.TypeTextGenerationRequest:
		return dispatchTextGenerationRequest(ctx, s, raw)
	case frame.TypeSetBackendMode:
		return dispatchSetBackendMode(s, raw)
	case frame.TypeGetBackendMode:
		return dispatchGetBackendMode(s)
	case frame.TypeMicAudioData:
		return dispatchMicAudioData(s, raw)
	case frame.TypeMicAudioEnd:
		return dispatchMicAudioEnd(ctx, s)
	default:
		return pkgerror.ValidationError("unsupported frame type: " + frameType)
	}
}

func dispatchExpressionCommand(ctx context.Context, s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.ExpressionCommandIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	res := s.Adapter.TriggerExpression(ctx, in.ExpressionID, in.DurationMs, in.Priority)
	s.TrySend(frame.NewExpressionAck(res.Status, res.Error))
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "expression", res.Status, res.Error)
	return nil
}

func dispatchMotionCommand(ctx context.Context, s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.MotionCommandIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	res := s.Adapter.TriggerMotion(ctx, in.MotionGroup, in.MotionIndex, in.Loop, in.Priority)
	ack := frame.NewMotionAck(res.Status, res.Error)
	s.TrySend(ack)
	if res.Status == "success" {
		s.TrySend(frame.NewMotionCommandFrame(frame.MotionSpec{
			Group: in.MotionGroup, Index: in.MotionIndex, Loop: in.Loop, Priority: in.Priority,
		}))
	}
	return nil
}

func dispatchTextInput(ctx context.Context, s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.TextInputIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	res := s.Adapter.Speak(ctx, in.Text, nil, nil, false)
	auditStore.Log(s.ID, string(s.Adapter.Mode()), "speak", res.Status, res.Error)
	if res.Status != "success" {
		return pkgerror.ExternalServiceError(res.Error)
	}
	return nil
}

func dispatchTextGenerationRequest(ctx context.Context, s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.TextGenerationRequestIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	_, err := s.Adapter.GenerateText(ctx, in.Prompt, in.Context)
	if err != nil {
		return pkgerror.ExternalServiceError(err.Error())
	}
	return nil
}

func dispatchSetBackendMode(s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.SetBackendModeIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	mode := adapter.Mode(in.Mode)
	switch mode {
	case adapter.ModeInternal, adapter.ModeExternalAPI, adapter.ModeAutonomous:
	default:
		return pkgerror.ValidationError("unknown backend mode: " + in.Mode)
	}
	s.SetMode(mode)
	s.TrySend(frame.NewBackendModeSet("success", ""))
	return nil
}

func dispatchGetBackendMode(s *session.Session) error {
	s.TrySend(frame.NewBackendModeSet("success", string(s.Adapter.Mode())))
	return nil
}

// dispatchMicAudioData appends an inbound mic audio chunk to the
// session's buffer.
func dispatchMicAudioData(s *session.Session, raw []byte) error {
	var in struct {
		frame.Envelope
		frame.MicAudioDataIn
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return err
	}
	micBuffers.append(s.ID, in.Chunk)
	return nil
}

// dispatchMicAudioEnd clears the session's buffer immediately and
// hands it to ASR. This is the drop-late policy resolving the source's
// un-defended mic-audio-end race: any mic-audio-data frame that arrives
// after this point starts a fresh buffer for the next utterance rather
// than being appended to the one just flushed.
func dispatchMicAudioEnd(ctx context.Context, s *session.Session) error {
	audio := micBuffers.flush(s.ID)
	if len(audio) == 0 {
		return nil
	}
	if s.Context.ASR == nil {
		return pkgerror.ExternalServiceError("no ASR transcriber configured")
	}
	text, err := s.Context.ASR.Transcribe(ctx, audio)
	if err != nil {
		return pkgerror.ExternalServiceError(err.Error())
	}
	s.TrySend(frame.NewTranscription(text))
	return nil
}
