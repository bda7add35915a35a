package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuber/controlplane/internal/adapter"
)

type fakeTransport struct {
	mu       sync.Mutex
	written  [][]byte
	inbound  chan []byte
	closed   bool
	writeErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan []byte, 16)}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	data, ok := <-f.inbound
	if !ok {
		return 0, nil, assert.AnError
	}
	return textMessageType, data, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) snapshot() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func testCtx() *adapter.Context { return &adapter.Context{} }

func TestOnConnect_WriterDeliversEnqueuedFrame(t *testing.T) {
	reg := NewRegistry(8, testCtx)
	transport := newFakeTransport()
	s := reg.OnConnect(transport)

	require.NoError(t, s.Send(map[string]string{"type": "audio"}))

	assert.Eventually(t, func() bool { return len(transport.snapshot()) == 1 }, time.Second, time.Millisecond)
}

func TestOnDisconnect_ClosesOutboundSendFails(t *testing.T) {
	reg := NewRegistry(8, testCtx)
	transport := newFakeTransport()
	s := reg.OnConnect(transport)

	reg.OnDisconnect(s.ID)
	err := s.Send(map[string]string{"type": "audio"})
	assert.Error(t, err)

	_, ok := reg.Get(s.ID)
	assert.False(t, ok)
}

func TestGetOrDefault_CreatesVirtualSession(t *testing.T) {
	reg := NewRegistry(8, testCtx)
	s := reg.GetOrDefault("unknown-client")
	require.NotNil(t, s)
	assert.NoError(t, s.Send(map[string]string{"type": "audio"}))
}

func TestBroadcast_OnlyMatchingPredicateReceives(t *testing.T) {
	reg := NewRegistry(8, testCtx)
	internal := reg.OnConnect(newFakeTransport())
	_ = internal

	reg.Broadcast(func(m adapter.Mode) bool { return m == adapter.ModeAutonomous }, map[string]string{"type": "autonomous-chat"})
	// Internal-mode session should not receive it; nothing to assert via
	// transport since TrySend on a non-matching session never happens.
	assert.Equal(t, 1, reg.Count())
}

func TestReadLoop_UnknownFrameTypeProducesErrorFrame(t *testing.T) {
	reg := NewRegistry(8, testCtx)
	transport := newFakeTransport()
	_ = reg.OnConnect(transport)

	raw, err := json.Marshal(map[string]string{"type": "not-a-real-type"})
	require.NoError(t, err)
	transport.inbound <- raw

	assert.Eventually(t, func() bool { return len(transport.snapshot()) == 1 }, time.Second, time.Millisecond)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(transport.snapshot()[0], &decoded))
	assert.Equal(t, "error", decoded["type"])
}

func TestReadLoop_DispatchErrorProducesErrorFrameNotFatal(t *testing.T) {
	dispatched := 0
	reg := NewRegistry(8, testCtx, WithDispatch(func(_ context.Context, s *Session, frameType string, raw []byte) error {
		dispatched++
		return assert.AnError
	}))
	transport := newFakeTransport()
	_ = reg.OnConnect(transport)

	raw, _ := json.Marshal(map[string]string{"type": "text-input"})
	transport.inbound <- raw
	transport.inbound <- raw

	assert.Eventually(t, func() bool { return len(transport.snapshot()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, dispatched)
}
