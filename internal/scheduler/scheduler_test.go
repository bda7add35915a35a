package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/agenttest"
	"github.com/vtuber/controlplane/internal/model"
	"github.com/vtuber/controlplane/internal/session"
)

type discardTransport struct {
	inbound chan []byte
	mu      sync.Mutex
	writes  int
}

func newDiscardTransport() *discardTransport { return &discardTransport{inbound: make(chan []byte)} }
func (d *discardTransport) WriteMessage(int, []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes++
	return nil
}
func (d *discardTransport) ReadMessage() (int, []byte, error) { <-d.inbound; return 0, nil, nil }
func (d *discardTransport) Close() error                      { return nil }
func (d *discardTransport) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func TestSetIntervals_RejectsInvalidBounds(t *testing.T) {
	s := New(nil, "default", time.Second, 2*time.Second, []string{"hi"})
	assert.Error(t, s.SetIntervals(0, time.Second))
	assert.Error(t, s.SetIntervals(2*time.Second, time.Second))
	assert.NoError(t, s.SetIntervals(time.Second, 3*time.Second))
}

func TestSnapshot_ReflectsSetEnabledAndIntervals(t *testing.T) {
	s := New(nil, "default", time.Second, 2*time.Second, []string{"hi"})
	s.SetEnabled(true)
	require.NoError(t, s.SetIntervals(5*time.Second, 10*time.Second))

	snap := s.Snapshot()
	assert.True(t, snap.Enabled)
	assert.Equal(t, 5*time.Second, snap.MinInterval)
	assert.Equal(t, 10*time.Second, snap.MaxInterval)
}

func TestTick_DispatchesToAutonomousSessionsOnly(t *testing.T) {
	agentFake := &agenttest.Fake{Responses: []string{"A pleasant greeting for everyone here today"}}
	descriptor, err := model.Descriptor("Miko", map[string]int{"joy": 3}, nil, "", nil)
	require.NoError(t, err)

	reg := session.NewRegistry(8, func() *adapter.Context {
		return &adapter.Context{Agent: agentFake, Model: descriptor}
	})

	autonomousTransport := newDiscardTransport()
	autonomousSession := reg.OnConnect(autonomousTransport)
	autonomousSession.SetMode(adapter.ModeAutonomous)

	internalTransport := newDiscardTransport()
	internalSession := reg.OnConnect(internalTransport)

	s := New(reg, "default", time.Millisecond, time.Millisecond, []string{"say hello"})
	s.tick(context.Background())

	assert.Equal(t, adapter.ModeAutonomous, autonomousSession.Adapter.Mode())
	assert.Equal(t, adapter.ModeInternal, internalSession.Adapter.Mode())

	assert.Eventually(t, func() bool { return autonomousTransport.writeCount() >= 2 }, time.Second, time.Millisecond,
		"autonomous session should receive both the audio frame and the autonomous-chat frame")
	assert.Equal(t, 0, internalTransport.writeCount())
}
