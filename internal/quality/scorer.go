// Package quality implements a gate-then-score quality check that
// decides which chat messages earn a generated response.
package quality

import (
	"strings"
	"sync"
	"time"

	"github.com/vtuber/controlplane/internal/chatmsg"
)

const (
	cooldownWindow   = 30 * time.Second
	respondThreshold = 0.3
	sweepIdleAfter   = 5 * time.Minute

	weightLength     = 0.1
	weightQuestion   = 0.3
	weightMention    = 0.2
	weightEngagement = 0.2
	weightUniqueness = 0.2

	// uniquenessConstant stands in for a real similarity-against-recent-
	// messages score, which needs a message history buffer this scorer
	// doesn't keep yet. Swapping it in later won't change the contract.
	uniquenessConstant = 0.7
)

// Verdict reports whether a message earns a generated response, and why.
type Verdict struct {
	Respond bool
	Score   float64
	Reason  string
}

// Scorer tracks per-user cooldowns across the whole ingest pipeline.
type Scorer struct {
	mu            sync.Mutex
	lastResponse  map[string]time.Time
}

// New returns a ready-to-use Scorer.
func New() *Scorer {
	return &Scorer{lastResponse: make(map[string]time.Time)}
}

// ShouldRespond gates on the per-user cooldown, then scores the message.
// On a true verdict, the user's cooldown timestamp is updated atomically.
func (s *Scorer) ShouldRespond(msg chatmsg.ChatMessage, characterName string) Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(msg.Timestamp)

	if last, ok := s.lastResponse[msg.UserID]; ok && msg.Timestamp.Sub(last) < cooldownWindow {
		return Verdict{false, 0, "cooldown"}
	}

	score := lengthFeature(msg.Text)*weightLength +
		questionFeature(msg.Text)*weightQuestion +
		mentionFeature(msg.Text, characterName)*weightMention +
		engagementFeature(msg.Text)*weightEngagement +
		uniquenessConstant*weightUniqueness

	respond := score >= respondThreshold
	reason := "scored"
	if respond {
		s.lastResponse[msg.UserID] = msg.Timestamp
	} else {
		reason = "low_score"
	}

	return Verdict{respond, score, reason}
}

func (s *Scorer) sweepLocked(now time.Time) {
	for user, last := range s.lastResponse {
		if now.Sub(last) > sweepIdleAfter {
			delete(s.lastResponse, user)
		}
	}
}

func lengthFeature(text string) float64 {
	l := len(text)
	switch {
	case l >= 10 && l <= 200:
		return 1.0
	case (l >= 5 && l < 10) || (l > 200 && l <= 300):
		return 0.5
	default:
		return 0.1
	}
}

func questionFeature(text string) float64 {
	if strings.Contains(text, "?") {
		return 1.0
	}
	return 0
}

func mentionFeature(text, characterName string) float64 {
	if characterName == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(text), strings.ToLower(characterName)) {
		return 1.0
	}
	return 0
}

func engagementFeature(text string) float64 {
	count := strings.Count(text, "!")
	switch {
	case count >= 1 && count <= 3:
		return 0.8
	case count == 0:
		return 0.5
	default:
		return 0.0
	}
}
