// Package chatfilter implements stateless and windowed heuristics that
// reject low-value chat before it ever reaches the quality scorer.
package chatfilter

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/vtuber/controlplane/internal/chatmsg"
)

const (
	minLen               = 2
	maxLen               = 500
	emojiShortLenCutoff  = 20
	emojiCountThreshold  = 5
	rateWindow           = 60 * time.Second
	rateLimitCount       = 5
	rateRingCapacity     = 10
	dupWindowCapacity    = 50
	dupThreshold         = 3
	userSweepIdleAfter   = 5 * time.Minute
)

var (
	urlRe         = regexp.MustCompile(`https?://\S+|www\.\S+`)
	upperRunRe    = regexp.MustCompile(`[A-Z]{5,}`)
	symbolRunRe   = regexp.MustCompile(`[!@#$%^&*()]{3,}`)
	spamKeywords  = []string{
		"buy now", "click here", "free money", "guaranteed profit",
		"pump it", "to the moon", "scam", "hack", "cheat",
	}
)

// Verdict reports whether a message was rejected as spam, and why.
type Verdict struct {
	IsSpam bool
	Reason string
}

type userWindow struct {
	timestamps []time.Time // ring of the last rateRingCapacity message times
	lastSeen   time.Time
}

// Filter holds the process-wide per-user and global windows. Safe for
// concurrent use; entries are swept lazily on access, bounding memory.
type Filter struct {
	mu           sync.Mutex
	users        map[string]*userWindow
	recentGlobal []string // ring of the last dupWindowCapacity normalized texts
}

// New returns a ready-to-use Filter.
func New() *Filter {
	return &Filter{users: make(map[string]*userWindow)}
}

// IsSpam evaluates checks from cheapest to most expensive; the first
// match wins.
func (f *Filter) IsSpam(msg chatmsg.ChatMessage) Verdict {
	text := msg.Text

	if l := len(text); l < minLen || l > maxLen {
		return Verdict{true, "length_out_of_bounds"}
	}

	if urlRe.MatchString(text) {
		return Verdict{true, "contains_url"}
	}
	if upperRunRe.MatchString(text) {
		return Verdict{true, "uppercase_run"}
	}
	if symbolRunRe.MatchString(text) {
		return Verdict{true, "symbol_run"}
	}
	if hasRepeatRun(text, 5) {
		return Verdict{true, "repeated_char"}
	}

	if ec := countEmoji(text); ec > emojiCountThreshold && utf8.RuneCountInString(text) < emojiShortLenCutoff {
		return Verdict{true, "emoji_flood"}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.sweepUsersLocked(msg.Timestamp)

	if f.rateExceededLocked(msg.UserID, msg.Timestamp) {
		return Verdict{true, "rate_limited"}
	}

	normalized := normalize(text)
	f.recordGlobalLocked(normalized)
	if f.isDuplicateLocked(normalized) {
		return Verdict{true, "duplicate_message"}
	}

	lowerText := strings.ToLower(text)
	for _, kw := range spamKeywords {
		if strings.Contains(lowerText, kw) {
			return Verdict{true, "keyword_match"}
		}
	}

	return Verdict{false, ""}
}

func (f *Filter) rateExceededLocked(userID string, at time.Time) bool {
	uw, ok := f.users[userID]
	if !ok {
		uw = &userWindow{}
		f.users[userID] = uw
	}
	uw.lastSeen = at

	cutoff := at.Add(-rateWindow)
	kept := uw.timestamps[:0]
	for _, ts := range uw.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	uw.timestamps = kept

	exceeded := len(uw.timestamps) >= rateLimitCount
	uw.timestamps = append(uw.timestamps, at)
	if len(uw.timestamps) > rateRingCapacity {
		uw.timestamps = uw.timestamps[len(uw.timestamps)-rateRingCapacity:]
	}
	return exceeded
}

func (f *Filter) isDuplicateLocked(normalized string) bool {
	count := 0
	for _, t := range f.recentGlobal {
		if t == normalized {
			count++
		}
	}
	return count >= dupThreshold
}

func (f *Filter) recordGlobalLocked(normalized string) {
	f.recentGlobal = append(f.recentGlobal, normalized)
	if len(f.recentGlobal) > dupWindowCapacity {
		f.recentGlobal = f.recentGlobal[len(f.recentGlobal)-dupWindowCapacity:]
	}
}

func (f *Filter) sweepUsersLocked(now time.Time) {
	for id, uw := range f.users {
		if now.Sub(uw.lastSeen) > userSweepIdleAfter {
			delete(f.users, id)
		}
	}
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// hasRepeatRun reports whether any character occurs n or more times in a row.
func hasRepeatRun(text string, n int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if run > 0 && r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}

func countEmoji(text string) int {
	count := 0
	for _, r := range text {
		if r >= 0x1F300 && r <= 0x1F9FF {
			count++
		}
	}
	return count
}
