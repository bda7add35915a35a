// Package model loads the LiveModelDescriptor bound to a session on
// connect: the emotion map, motion group table, and character identity
// used to drive rendering.
package model

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
)

// thumbnailSize is the max dimension (px) the avatar reference is
// normalized to, via disintegration/imaging, before being cached on the
// descriptor.
const thumbnailSize = 256

// LiveModelDescriptor is immutable for the lifetime of a session unless
// an explicit switch occurs.
type LiveModelDescriptor struct {
	CharacterName    string
	EmotionMap       map[string]int // lowercase emotion token -> expression ID
	MotionGroups     map[string][]int
	AvatarReference  string
	AvatarThumbnail  []byte // normalized PNG, nil if no avatar bytes were supplied or they could not be decoded
}

// HasMotion reports whether index is a valid motion-index within group.
func (d *LiveModelDescriptor) HasMotion(group string, index int) bool {
	indices, ok := d.MotionGroups[group]
	if !ok {
		return false
	}
	for _, i := range indices {
		if i == index {
			return true
		}
	}
	return false
}

// HasExpression reports whether expressionID is a value present in the
// emotion map, per the Actions invariant that every expression ID must
// come from the active model.
func (d *LiveModelDescriptor) HasExpression(expressionID int) bool {
	for _, id := range d.EmotionMap {
		if id == expressionID {
			return true
		}
	}
	return false
}

// Descriptor builds a LiveModelDescriptor from raw config fields,
// normalizing the emotion map keys to lowercase and thumbnailing the
// avatar reference image if raw bytes are supplied. A thumbnailing
// failure is logged and leaves AvatarThumbnail nil; the raw reference
// is still kept.
func Descriptor(characterName string, emotionMap map[string]int, motionGroups map[string][]int, avatarReference string, avatarBytes []byte) (*LiveModelDescriptor, error) {
	normalized := make(map[string]int, len(emotionMap))
	for k, v := range emotionMap {
		normalized[strings.ToLower(k)] = v
	}

	d := &LiveModelDescriptor{
		CharacterName:   characterName,
		EmotionMap:      normalized,
		MotionGroups:    motionGroups,
		AvatarReference: avatarReference,
	}

	if len(avatarBytes) > 0 {
		thumb, err := thumbnail(avatarBytes)
		if err != nil {
			logrus.WithError(err).Warn("model: failed to thumbnail avatar reference, keeping raw reference only")
		} else {
			d.AvatarThumbnail = thumb
		}
	}

	return d, nil
}

func thumbnail(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	resized := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
