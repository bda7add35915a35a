package responder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vtuber/controlplane/internal/agenttest"
	"github.com/vtuber/controlplane/internal/chatmsg"
)

func TestSelectBest_PicksHighestScoring(t *testing.T) {
	fake := &agenttest.Fake{Responses: []string{
		"hi", // too short, scores low
		"That's a genuinely interesting question, thanks for asking about it today!", // good length
		"ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok ok", // repetitive, naturalness 0
	}}

	got := SelectBest(context.Background(), fake, chatmsg.ChatMessage{Text: "what do you think?"}, nil, 3)
	assert.Equal(t, "That's a genuinely interesting question, thanks for asking about it today!", got)
}

// failingAgent rejects every Generate/Stream call.
type failingAgent struct{}

func (failingAgent) Generate(context.Context, string, string, map[string]any) (string, error) {
	return "", errors.New("forced failure")
}

func (failingAgent) Stream(context.Context, string, map[string]any, func(string)) (string, error) {
	return "", errors.New("forced failure")
}

func TestSelectBest_AllFailReturnsEmpty(t *testing.T) {
	got := SelectBest(context.Background(), failingAgent{}, chatmsg.ChatMessage{Text: "hello"}, nil, 3)
	assert.Equal(t, "", got)
}

func TestSelectBest_PartialFailureStillPicksSurvivor(t *testing.T) {
	fake := &agenttest.Fake{FailAfter: 1, Responses: []string{"A perfectly reasonable length response here"}}
	got := SelectBest(context.Background(), fake, chatmsg.ChatMessage{Text: "hello"}, nil, 3)
	assert.Equal(t, "A perfectly reasonable length response here", got)
}
