package control

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/vtuber/controlplane/pkg/pkgerror"
)

type expressionRequest struct {
	ExpressionID int    `json:"expressionId"`
	DurationMs   int    `json:"duration"`
	Priority     int    `json:"priority"`
	ClientUID    string `json:"client_uid"`
}

func validateExpressionRequest(ctx context.Context, r expressionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &r,
		validation.Field(&r.DurationMs, validation.Min(0)),
	)
	if err != nil {
		return pkgerror.ValidationError(err.Error())
	}
	return nil
}

type motionRequest struct {
	MotionGroup string `json:"motionGroup"`
	MotionIndex int    `json:"motionIndex"`
	Loop        bool   `json:"loop"`
	Priority    int    `json:"priority"`
	ClientUID   string `json:"client_uid"`
}

func validateMotionRequest(ctx context.Context, r motionRequest) error {
	err := validation.ValidateStructWithContext(ctx, &r,
		validation.Field(&r.MotionGroup, validation.Required),
		validation.Field(&r.MotionIndex, validation.Min(0)),
	)
	if err != nil {
		return pkgerror.ValidationError(err.Error())
	}
	return nil
}

type motionSpecRequest struct {
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

type speakRequest struct {
	Text        string              `json:"text"`
	Expressions []int               `json:"expressions"`
	Motions     []motionSpecRequest `json:"motions"`
	ClientUID   string              `json:"client_uid"`
	SkipTTS     bool                `json:"skip_tts"`
	Metadata    map[string]any      `json:"metadata"`
}

func validateSpeakRequest(ctx context.Context, r speakRequest) error {
	if r.Text == "" && len(r.Expressions) == 0 && len(r.Motions) == 0 {
		return pkgerror.ValidationError("at least one of text, expressions, motions is required")
	}
	err := validation.ValidateStructWithContext(ctx, &r)
	if err != nil {
		return pkgerror.ValidationError(err.Error())
	}
	return nil
}

type generateRequest struct {
	Prompt  string         `json:"prompt"`
	Context map[string]any `json:"context"`
}

func validateGenerateRequest(ctx context.Context, r generateRequest) error {
	err := validation.ValidateStructWithContext(ctx, &r,
		validation.Field(&r.Prompt, validation.Required),
	)
	if err != nil {
		return pkgerror.ValidationError(err.Error())
	}
	return nil
}

type controlRequest struct {
	Enabled     *bool    `json:"enabled"`
	MinInterval *float64 `json:"min_interval"`
	MaxInterval *float64 `json:"max_interval"`
}

func validateControlRequest(_ context.Context, r controlRequest) error {
	if r.MinInterval != nil && r.MaxInterval != nil && *r.MinInterval > *r.MaxInterval {
		return pkgerror.ValidationError("min_interval must be <= max_interval")
	}
	return nil
}
