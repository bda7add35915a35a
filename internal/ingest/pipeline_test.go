package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/agenttest"
	"github.com/vtuber/controlplane/internal/chatmsg"
	"github.com/vtuber/controlplane/internal/model"
	"github.com/vtuber/controlplane/internal/session"
)

func newTestRegistry(t *testing.T, withAgent bool) *session.Registry {
	t.Helper()
	descriptor, err := model.Descriptor("Miko", map[string]int{"joy": 3}, nil, "", nil)
	require.NoError(t, err)
	return session.NewRegistry(8, func() *adapter.Context {
		ctx := &adapter.Context{Model: descriptor}
		if withAgent {
			ctx.Agent = &agenttest.Fake{Responses: []string{"hello there, thanks for the question today!"}}
		}
		return ctx
	})
}

func chatMsg(userID, text string) chatmsg.ChatMessage {
	return chatmsg.ChatMessage{PlatformTag: "discord", UserID: userID, Username: userID, Text: text, Timestamp: time.Now()}
}

func TestHandle_SpamMessageNeverReachesPresenter(t *testing.T) {
	reg := newTestRegistry(t, true)
	p := New(reg, "presenter", "Miko")

	p.Handle(context.Background(), chatMsg("u1", "CLICK HERE CLICK HERE CLICK HERE!!!"))

	_, ok := reg.Get("presenter")
	assert.False(t, ok, "presenter session should not be lazily created for a dropped spam message")
}

func TestHandle_LowQualityMessageDropped(t *testing.T) {
	reg := newTestRegistry(t, true)
	p := New(reg, "presenter", "Miko")

	p.Handle(context.Background(), chatMsg("u1", "hmm"))

	_, ok := reg.Get("presenter")
	assert.False(t, ok)
}

func TestHandle_NoAgentConfiguredDropsBeforeSpeaking(t *testing.T) {
	reg := newTestRegistry(t, false)
	p := New(reg, "presenter", "Miko")

	before := reg.Count()
	p.Handle(context.Background(), chatMsg("u1", "hey Miko, what's your favorite food today?"))

	// GetOrDefault runs before the agent-nil check, so the presenter
	// session is created but never receives a Speak call.
	assert.Equal(t, before+1, reg.Count())
}

func TestHandle_ValidMessageCreatesPresenterSession(t *testing.T) {
	reg := newTestRegistry(t, true)
	p := New(reg, "presenter", "Miko")

	p.Handle(context.Background(), chatMsg("u1", "hey Miko, what's your favorite food today?"))

	s, ok := reg.Get("presenter")
	require.True(t, ok)
	assert.Equal(t, adapter.ModeInternal, s.Adapter.Mode())
}

func TestNew_DefaultsEmptyPresenterIDToDefault(t *testing.T) {
	reg := newTestRegistry(t, true)
	p := New(reg, "", "Miko")
	assert.Equal(t, "default", p.presenterID)
}
