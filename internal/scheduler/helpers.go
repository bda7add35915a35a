package scheduler

import (
	"errors"

	"github.com/vtuber/controlplane/internal/chatmsg"
	"github.com/vtuber/controlplane/internal/frame"
)

var errInvalidIntervals = errors.New("scheduler: require 0 < min <= max")

func chatMsgFor(prompt string) chatmsg.ChatMessage {
	return chatmsg.ChatMessage{PlatformTag: "scheduler", Text: prompt}
}

func autonomousChatFrame(text string) frame.AutonomousChatFrame {
	return frame.NewAutonomousChat(text)
}
