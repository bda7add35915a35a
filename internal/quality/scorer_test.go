package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vtuber/controlplane/internal/chatmsg"
)

func msg(user, text string, at time.Time) chatmsg.ChatMessage {
	return chatmsg.ChatMessage{UserID: user, Text: text, Timestamp: at}
}

func TestShouldRespond_Cooldown(t *testing.T) {
	s := New()
	base := time.Now()
	v1 := s.ShouldRespond(msg("u", "is this great?", base), "Mira")
	assert.True(t, v1.Respond)

	v2 := s.ShouldRespond(msg("u", "is this great?", base.Add(10*time.Second)), "Mira")
	assert.False(t, v2.Respond)
	assert.Equal(t, "cooldown", v2.Reason)

	v3 := s.ShouldRespond(msg("u", "is this great?", base.Add(31*time.Second)), "Mira")
	assert.True(t, v3.Respond)
}

func TestLengthFeature_Boundary(t *testing.T) {
	assert.Equal(t, 1.0, lengthFeature("0123456789"))   // exactly 10
	assert.Equal(t, 0.5, lengthFeature("012345678"))    // exactly 9
}

func TestMentionFeature_CaseInsensitive(t *testing.T) {
	assert.Equal(t, 1.0, mentionFeature("hey MIRA how are you", "Mira"))
	assert.Equal(t, 0.0, mentionFeature("hey there", "Mira"))
}

func TestShouldRespond_LowScoreNotDispatched(t *testing.T) {
	s := New()
	v := s.ShouldRespond(msg("u", "hi", time.Now()), "Mira")
	assert.False(t, v.Respond)
	assert.Less(t, v.Score, 0.3)
}
