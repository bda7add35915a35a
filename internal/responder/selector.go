// Package responder requests N candidate replies from the Agent with
// slight prompt variants, scores each, and returns the best.
package responder

import (
	"context"
	"strings"
	"sync"

	"github.com/vtuber/controlplane/internal/agent"
	"github.com/vtuber/controlplane/internal/chatmsg"
)

var promptVariants = []string{"", " (respond briefly)", " (respond naturally)"}

// SelectBest generates N candidates (default 3, one per promptVariants
// entry if n <= 0 or n > len(promptVariants)) and returns the
// highest-scoring text. Returns "" if every candidate failed; the caller
// MUST NOT dispatch an empty result.
func SelectBest(ctx context.Context, a agent.Agent, msg chatmsg.ChatMessage, context_ map[string]any, n int) string {
	variants := promptVariants
	if n > 0 && n <= len(promptVariants) {
		variants = promptVariants[:n]
	}

	candidates := make([]string, len(variants))
	var wg sync.WaitGroup
	for i, variant := range variants {
		wg.Add(1)
		go func(i int, variant string) {
			defer wg.Done()
			text, err := a.Generate(ctx, msg.Text, variant, context_)
			if err != nil {
				candidates[i] = ""
				return
			}
			candidates[i] = text
		}(i, variant)
	}
	wg.Wait()

	bestIdx := -1
	bestScore := -1.0
	for i, c := range candidates {
		if c == "" {
			continue
		}
		score := scoreLength(c) + scoreUniqueness(i, candidates) + scoreNaturalness(c)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx < 0 {
		return ""
	}
	return candidates[bestIdx]
}

// scoreLength returns the already-weighted (×0.4) length contribution.
func scoreLength(text string) float64 {
	l := len(text)
	switch {
	case l >= 20 && l <= 150:
		return 0.4
	case (l >= 10 && l < 20) || (l > 150 && l <= 200):
		return 0.2
	default:
		return 0.1
	}
}

// scoreUniqueness returns 0.3 * (1 - mean jaccard word similarity against
// the other candidates); with no comparable candidate it defaults to the
// maximum (fully unique).
func scoreUniqueness(idx int, candidates []string) float64 {
	words := strings.Fields(candidates[idx])
	set := wordSet(words)

	var similarities []float64
	for j, other := range candidates {
		if j == idx || other == "" {
			continue
		}
		similarities = append(similarities, jaccard(set, wordSet(strings.Fields(other))))
	}
	if len(similarities) == 0 {
		return 0.3
	}

	var sum float64
	for _, s := range similarities {
		sum += s
	}
	mean := sum / float64(len(similarities))
	return 0.3 * (1 - mean)
}

// scoreNaturalness returns 0 if any of the first 20 words repeats ≥3
// times, else the full 0.3 weight.
func scoreNaturalness(text string) float64 {
	words := strings.Fields(text)
	if len(words) > 20 {
		words = words[:20]
	}
	counts := make(map[string]int, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		counts[w]++
		if counts[w] >= 3 {
			return 0
		}
	}
	return 0.3
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for w := range a {
		if _, ok := b[w]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
