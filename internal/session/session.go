// Package session implements the session registry holding one Session
// per connected renderer client, its bounded outbound channel, and its
// adapter, generalized from a single global broadcast hub to one
// outbound channel and writer/reader pair per session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/broadcast"
	"github.com/vtuber/controlplane/internal/frame"
	"github.com/vtuber/controlplane/pkg/pkgerror"
)

// sendTimeout bounds how long a direct-reply Send() blocks against a
// full outbound channel before failing.
const sendTimeout = 1 * time.Second

// Transport is the minimal surface a streaming connection must expose.
// Satisfied directly by *gofiber/websocket/v2.Conn; kept as an
// interface so this package never imports fiber.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, data []byte, err error)
	Close() error
}

const textMessageType = 1 // websocket.TextMessage, duplicated to avoid the fiber/websocket import

// Dispatch handles one decoded inbound frame for a session. Returning
// an error does not tear the session down; the registry turns it into
// an outbound error frame.
type Dispatch func(ctx context.Context, s *Session, frameType string, raw []byte) error

// Session is one per connected renderer client.
type Session struct {
	ID      string
	Adapter adapter.BackendAdapter
	Context *adapter.Context

	sink   *chanSink
	reg    *Registry
	closed chan struct{}
}

// Send delivers f to the renderer, blocking briefly if the channel is
// full. Used by direct-reply paths (REST acks, client-ws replies).
func (s *Session) Send(f any) error { return s.sink.Send(f) }

// TrySend delivers f best-effort; used by broadcast/scheduler paths.
func (s *Session) TrySend(f any) bool { return s.sink.TrySend(f) }

// chanSink is the Outbound implementation handed to a session's
// adapter. It never exposes a reference back to the Session itself.
type chanSink struct {
	mu     sync.Mutex
	ch     chan any
	closed bool
	id     string
}

func newChanSink(id string, capacity int) *chanSink {
	return &chanSink{ch: make(chan any, capacity), id: id}
}

func (s *chanSink) Send(f any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		logrus.WithField("session", s.id).Warn("producer observed closed outbound channel, dropping frame")
		return pkgerror.SessionClosedError(fmt.Sprintf("session %s: outbound channel closed", s.id))
	}
	s.mu.Unlock()

	select {
	case s.ch <- f:
		return nil
	case <-time.After(sendTimeout):
		return pkgerror.ExternalServiceError(fmt.Sprintf("session %s: outbound channel full after %s", s.id, sendTimeout))
	}
}

func (s *chanSink) TrySend(f any) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		logrus.WithField("session", s.id).Warn("producer observed closed outbound channel, dropping frame")
		return false
	}
	s.mu.Unlock()

	select {
	case s.ch <- f:
		return true
	default:
		logrus.WithField("session", s.id).Warn("outbound channel full, dropping frame")
		return false
	}
}

func (s *chanSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Registry is the process-wide session store. Iteration for broadcast
// snapshots under the lock and releases it before doing any I/O.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	capacity   int
	newAdapter func(out adapter.Outbound, ctx *adapter.Context) adapter.BackendAdapter
	dispatch   Dispatch
	defaultCtx func() *adapter.Context
	bus        *broadcast.Bus
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithDispatch installs the inbound frame handler table. Without one,
// every inbound frame is answered with an error frame.
func WithDispatch(d Dispatch) Option {
	return func(r *Registry) { r.dispatch = d }
}

// WithBus fans every Broadcast call out to the other control plane
// instances sharing bus, in addition to this process's own sessions.
func WithBus(b *broadcast.Bus) Option {
	return func(r *Registry) { r.bus = b }
}

// NewRegistry builds a registry whose sessions default to the Internal
// adapter variant, with outbound channels of the given capacity.
func NewRegistry(capacity int, defaultCtx func() *adapter.Context, opts ...Option) *Registry {
	if capacity <= 0 {
		capacity = 64
	}
	r := &Registry{
		sessions:   make(map[string]*Session),
		capacity:   capacity,
		defaultCtx: defaultCtx,
		newAdapter: func(out adapter.Outbound, ctx *adapter.Context) adapter.BackendAdapter {
			return adapter.NewInternal(out, ctx)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnConnect allocates a session, spawns its writer and reader tasks,
// and registers it. The reader task runs until the transport closes or
// errors, at which point OnDisconnect is called automatically.
func (r *Registry) OnConnect(transport Transport) *Session {
	id := uuid.NewString()
	sink := newChanSink(id, r.capacity)
	ctx := r.defaultCtx()

	s := &Session{
		ID:      id,
		Adapter: r.newAdapter(sink, ctx),
		Context: ctx,
		sink:    sink,
		reg:     r,
		closed:  make(chan struct{}),
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	go r.writeLoop(s, transport)
	go r.readLoop(s, transport)

	logrus.WithField("session", id).Info("session connected")
	return s
}

// OnDisconnect closes the outbound channel (producers observe
// closed-on-send and drop) and removes the session from the registry.
func (r *Registry) OnDisconnect(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.sink.close()
	close(s.closed)
	logrus.WithField("session", sessionID).Info("session disconnected")
}

// Get returns the live session for sessionID, or false if unknown.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// GetOrDefault returns the session for sessionID, lazily creating one
// bound to a discard sink if unknown — used by REST endpoints that
// target a nonexistent client_uid.
func (r *Registry) GetOrDefault(sessionID string) *Session {
	if s, ok := r.Get(sessionID); ok {
		return s
	}

	sink := newChanSink(sessionID, r.capacity)
	go discardLoop(sink)

	ctx := r.defaultCtx()
	s := &Session{
		ID:      sessionID,
		Adapter: r.newAdapter(sink, ctx),
		Context: ctx,
		sink:    sink,
		reg:     r,
		closed:  make(chan struct{}),
	}

	r.mu.Lock()
	r.sessions[sessionID] = s
	r.mu.Unlock()

	logrus.WithField("session", sessionID).Info("session lazily created for unknown client_uid")
	return s
}

// Broadcast delivers f, best-effort, to every local session whose
// adapter mode matches predicate, and — if this registry was built
// with WithBus — publishes it for every other instance's Autonomous
// sessions too. The session list is snapshotted under the lock so I/O
// never happens while holding it.
func (r *Registry) Broadcast(predicate func(adapter.Mode) bool, f any) {
	r.mu.RLock()
	targets := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if predicate(s.Adapter.Mode()) {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		s.TrySend(f)
	}

	if r.bus != nil {
		if payload, err := json.Marshal(f); err == nil {
			if err := r.bus.Publish(context.Background(), payload); err != nil {
				logrus.WithError(err).Warn("broadcast: publish to bus failed")
			}
		}
	}
}

// RunRelay subscribes to the registry's bus, delivering every frame
// published by another instance to this process's local Autonomous
// sessions. It never re-publishes what it receives, so instances never
// echo each other's frames back and forth. Blocks until ctx is done.
func (r *Registry) RunRelay(ctx context.Context) error {
	if r.bus == nil {
		return nil
	}
	return r.bus.Subscribe(ctx, func(payload []byte) {
		r.mu.RLock()
		targets := make([]*Session, 0, len(r.sessions))
		for _, s := range r.sessions {
			if s.Adapter.Mode() == adapter.ModeAutonomous {
				targets = append(targets, s)
			}
		}
		r.mu.RUnlock()

		raw := json.RawMessage(payload)
		for _, s := range targets {
			s.TrySend(raw)
		}
	})
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SetMode swaps the session's adapter variant, reusing its existing
// sink and context. Used by the set-backend-mode handler.
func (s *Session) SetMode(mode adapter.Mode) {
	switch mode {
	case adapter.ModeExternalAPI:
		s.Adapter = adapter.NewExternalAPI(s.sink, s.Context)
	case adapter.ModeAutonomous:
		s.Adapter = adapter.NewAutonomous(s.sink, s.Context)
	default:
		s.Adapter = adapter.NewInternal(s.sink, s.Context)
	}
}

// MatchingSessions snapshots every session whose adapter mode satisfies
// predicate. Used by the scheduler, which invokes each matching
// session's own adapter directly rather than broadcasting a pre-built
// frame.
func (r *Registry) MatchingSessions(predicate func(adapter.Mode) bool) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if predicate(s.Adapter.Mode()) {
			out = append(out, s)
		}
	}
	return out
}

func discardLoop(sink *chanSink) {
	for range sink.ch {
		// sink for a virtual (REST-only) client; frames are dropped.
	}
}

func (r *Registry) writeLoop(s *Session, transport Transport) {
	for f := range s.sink.ch {
		data, err := json.Marshal(f)
		if err != nil {
			logrus.WithError(err).WithField("session", s.ID).Error("failed to marshal outbound frame")
			continue
		}
		if err := transport.WriteMessage(textMessageType, data); err != nil {
			logrus.WithError(err).WithField("session", s.ID).Warn("write failed, closing session")
			r.OnDisconnect(s.ID)
			return
		}
	}
}

func (r *Registry) readLoop(s *Session, transport Transport) {
	defer func() {
		_ = transport.Close()
		r.OnDisconnect(s.ID)
	}()

	for {
		_, data, err := transport.ReadMessage()
		if err != nil {
			return
		}

		var env frame.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.TrySend(frame.NewError("malformed frame: " + err.Error()))
			continue
		}

		if r.dispatch == nil {
			s.TrySend(frame.NewError("unsupported frame type: " + env.Type))
			continue
		}

		if err := r.dispatch(context.Background(), s, env.Type, data); err != nil {
			s.TrySend(frame.NewError(err.Error()))
		}
	}
}
