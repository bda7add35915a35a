package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptor_NormalizesEmotionMapKeys(t *testing.T) {
	d, err := Descriptor("Miko", map[string]int{"Joy": 3, "SADNESS": 1}, nil, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, d.EmotionMap["joy"])
	assert.Equal(t, 1, d.EmotionMap["sadness"])
}

func TestHasMotion(t *testing.T) {
	d, err := Descriptor("Miko", nil, map[string][]int{"idle": {0, 1, 2}}, "", nil)
	require.NoError(t, err)
	assert.True(t, d.HasMotion("idle", 1))
	assert.False(t, d.HasMotion("idle", 9))
	assert.False(t, d.HasMotion("unknown", 0))
}

func TestHasExpression(t *testing.T) {
	d, err := Descriptor("Miko", map[string]int{"joy": 3}, nil, "", nil)
	require.NoError(t, err)
	assert.True(t, d.HasExpression(3))
	assert.False(t, d.HasExpression(4))
}

func TestDescriptor_NoAvatarBytesLeavesThumbnailNil(t *testing.T) {
	d, err := Descriptor("Miko", nil, nil, "http://example.com/avatar.png", nil)
	require.NoError(t, err)
	assert.Nil(t, d.AvatarThumbnail)
}
