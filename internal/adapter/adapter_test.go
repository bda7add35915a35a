package adapter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtuber/controlplane/internal/agenttest"
	"github.com/vtuber/controlplane/internal/frame"
	"github.com/vtuber/controlplane/internal/model"
)

type captureSink struct {
	mu     sync.Mutex
	frames []any
	dropped int
	trySends int
}

func (s *captureSink) Send(f any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return nil
}

func (s *captureSink) TrySend(f any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	s.trySends++
	return true
}

func testModel(t *testing.T) *model.LiveModelDescriptor {
	t.Helper()
	d, err := model.Descriptor("Miko", map[string]int{"joy": 3, "sadness": 1}, map[string][]int{"idle": {0, 1}}, "", nil)
	require.NoError(t, err)
	return d
}

func TestInternal_TriggerExpression_EmitsAudioOnlyFrame(t *testing.T) {
	sink := &captureSink{}
	a := NewInternal(sink, &Context{Model: testModel(t)})

	res := a.TriggerExpression(context.Background(), 3, 5000, 10)
	assert.Equal(t, "success", res.Status)
	require.Len(t, sink.frames, 1)

	audio, ok := sink.frames[0].(frame.AudioPayload)
	require.True(t, ok)
	assert.Nil(t, audio.AudioBytes)
	assert.Equal(t, []int{3}, audio.Actions.Expressions)
}

func TestInternal_TriggerExpression_NegativeIDFailsNoFrame(t *testing.T) {
	sink := &captureSink{}
	a := NewInternal(sink, &Context{Model: testModel(t)})

	res := a.TriggerExpression(context.Background(), -1, 0, 0)
	assert.Equal(t, "error", res.Status)
	assert.Empty(t, sink.frames)
}

func TestInternal_TriggerExpression_UnknownIDFailsNoFrame(t *testing.T) {
	sink := &captureSink{}
	a := NewInternal(sink, &Context{Model: testModel(t)})

	res := a.TriggerExpression(context.Background(), 99, 0, 0)
	assert.Equal(t, "error", res.Status)
	assert.Empty(t, sink.frames)
}

func TestInternal_TriggerMotion_UnknownGroupFailsNoFrame(t *testing.T) {
	sink := &captureSink{}
	a := NewInternal(sink, &Context{Model: testModel(t)})

	res := a.TriggerMotion(context.Background(), "nope", 0, false, 0)
	assert.Equal(t, "error", res.Status)
	assert.Empty(t, sink.frames)
}

func TestSpeak_SkipTTS_NoTTSCallAudioNull(t *testing.T) {
	sink := &captureSink{}
	a := NewExternalAPI(sink, &Context{Model: testModel(t)})

	res := a.Speak(context.Background(), "", []int{3}, nil, true)
	assert.Equal(t, "success", res.Status)
	require.Len(t, sink.frames, 1)
	audio := sink.frames[0].(frame.AudioPayload)
	assert.Nil(t, audio.AudioBytes)
}

func TestSpeak_AudioFrameBeforeMotionFrames(t *testing.T) {
	sink := &captureSink{}
	a := NewInternal(sink, &Context{Model: testModel(t)})

	res := a.Speak(context.Background(), "hello", nil, []frame.MotionSpec{{Group: "idle", Index: 1}}, true)
	require.Equal(t, "success", res.Status)
	require.Len(t, sink.frames, 2)
	_, isAudio := sink.frames[0].(frame.AudioPayload)
	assert.True(t, isAudio)
	_, isMotion := sink.frames[1].(frame.MotionCommandFrame)
	assert.True(t, isMotion)
}

func TestAutonomous_EmitUsesTrySend(t *testing.T) {
	sink := &captureSink{}
	a := NewAutonomous(sink, &Context{Model: testModel(t)})

	res := a.TriggerExpression(context.Background(), 3, 0, 0)
	assert.Equal(t, "success", res.Status)
	require.Len(t, sink.frames, 1)
	assert.Equal(t, 1, sink.trySends)
}

func TestGenerateText_StreamsChunksThenResponse(t *testing.T) {
	sink := &captureSink{}
	fake := &agenttest.Fake{Responses: []string{"hello there"}}
	a := NewInternal(sink, &Context{Model: testModel(t), Agent: fake})

	text, err := a.GenerateText(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	require.Len(t, sink.frames, 4)
	_, isChunk := sink.frames[0].(frame.TextChunkFrame)
	assert.True(t, isChunk)
	_, isPartial := sink.frames[1].(frame.PartialTextFrame)
	assert.True(t, isPartial)
	_, isFull := sink.frames[2].(frame.FullTextFrame)
	assert.True(t, isFull)
	_, isResp := sink.frames[3].(frame.TextResponseFrame)
	assert.True(t, isResp)
}
