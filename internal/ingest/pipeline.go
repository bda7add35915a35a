// Package ingest binds the chat ingest pipeline: spam filter -> quality
// scorer -> response selector -> emotion extraction -> adapter Speak,
// plus concrete chat platform sources that feed it. It plays the same
// binding role between an inbound channel message and the bot engine
// that the application layer plays for direct chat replies.
package ingest

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/chatfilter"
	"github.com/vtuber/controlplane/internal/chatmsg"
	"github.com/vtuber/controlplane/internal/emotion"
	"github.com/vtuber/controlplane/internal/frame"
	"github.com/vtuber/controlplane/internal/quality"
	"github.com/vtuber/controlplane/internal/responder"
	"github.com/vtuber/controlplane/internal/session"
)

// Source is any platform that produces ChatMessages for the pipeline to
// consume. DiscordSource is the concrete implementation; other
// platforms (Twitch, YouTube live chat) would implement the same seam.
type Source interface {
	// Listen blocks, delivering messages to handle until ctx is
	// cancelled or the source's connection fails.
	Listen(ctx context.Context, handle func(chatmsg.ChatMessage)) error
	Close() error
}

// Pipeline binds the filter, scorer, selector, and adapter stages in
// order. Character name is used by the quality scorer's mention feature.
type Pipeline struct {
	spam          *chatfilter.Filter
	quality       *quality.Scorer
	registry      *session.Registry
	presenterID   string
	characterName string
}

// New builds a Pipeline that speaks through the presenter session
// (default "default") on the given registry.
func New(reg *session.Registry, presenterID, characterName string) *Pipeline {
	if presenterID == "" {
		presenterID = "default"
	}
	return &Pipeline{
		spam:          chatfilter.New(),
		quality:       quality.New(),
		registry:      reg,
		presenterID:   presenterID,
		characterName: characterName,
	}
}

// Handle runs one ChatMessage through the full pipeline. Failures at
// any step are logged and the message is dropped; no partial
// emission ever reaches the renderer.
func (p *Pipeline) Handle(ctx context.Context, msg chatmsg.ChatMessage) {
	if verdict := p.spam.IsSpam(msg); verdict.IsSpam {
		logrus.WithFields(logrus.Fields{"user": msg.UserID, "reason": verdict.Reason}).Debug("ingest: dropped spam message")
		return
	}

	qv := p.quality.ShouldRespond(msg, p.characterName)
	if !qv.Respond {
		logrus.WithFields(logrus.Fields{"user": msg.UserID, "score": qv.Score, "reason": qv.Reason}).Debug("ingest: quality gate declined")
		return
	}

	presenter := p.registry.GetOrDefault(p.presenterID)
	if presenter.Context.Agent == nil {
		logrus.Warn("ingest: presenter session has no agent configured, dropping message")
		return
	}

	reply := responder.SelectBest(ctx, presenter.Context.Agent, msg, nil, 0)
	if reply == "" {
		logrus.WithField("user", msg.UserID).Warn("ingest: no candidate reply survived selection")
		return
	}

	var expressions []int
	displayText := reply
	if presenter.Context.Model != nil {
		expressions = emotion.Extract(reply, presenter.Context.Model.EmotionMap)
		displayText = emotion.Strip(reply, presenter.Context.Model.EmotionMap)
	}

	res := presenter.Adapter.Speak(ctx, displayText, expressions, nil, false)
	if res.Status != "success" {
		logrus.WithFields(logrus.Fields{"user": msg.UserID, "error": res.Error}).Warn("ingest: speak failed")
		return
	}

	p.registry.Broadcast(func(m adapter.Mode) bool { return m == adapter.ModeAutonomous }, frame.NewAutonomousChat(displayText))
}
