// File: pkg/resolver/matching.go
// Description: Tiered caption-to-target scoring for the learned detection
// tier. Tiers are strictly ordered: an exact substring always outscores a
// word overlap, which outscores a fuzzy match, which outscores a partial
// overlap, for equal region confidence.

package resolver

import (
	"strings"
	"unicode"

	"github.com/mirelock/uipilot/internal/config"
)

// matchTier identifies which rung of the ladder a caption matched on.
type matchTier int

const (
	tierNone matchTier = iota
	tierPartial
	tierFuzzy
	tierWordOverlap
	tierExact
)

// tierMultiplier values are fixed by tier; the bonuses and the fuzzy cutoff
// come from configuration.
const (
	exactMultiplier       = 1.0
	wordOverlapMultiplier = 0.95
	fuzzyMultiplier       = 0.80
	partialMultiplier     = 0.70
)

// captionScore is the outcome of scoring one caption against the target.
type captionScore struct {
	tier       matchTier
	multiplier float64
	bonus      float64
}

// scoreCaption walks the tier ladder top-down and returns the first match.
// Words shorter than cfg.MinWordLength are excluded from every tier to avoid
// spurious matches on articles and prepositions.
func scoreCaption(caption, target string, cfg config.MatchingConfig) captionScore {
	caption = strings.ToLower(strings.TrimSpace(caption))
	target = strings.ToLower(strings.TrimSpace(target))
	if caption == "" || target == "" {
		return captionScore{tier: tierNone}
	}

	// Tier 1: exact substring containment in either direction.
	if strings.Contains(caption, target) || strings.Contains(target, caption) {
		return captionScore{tier: tierExact, multiplier: exactMultiplier, bonus: cfg.ExactBonus}
	}

	captionWords := significantWords(caption, cfg.MinWordLength)
	targetWords := significantWords(target, cfg.MinWordLength)
	if len(captionWords) == 0 || len(targetWords) == 0 {
		return captionScore{tier: tierNone}
	}

	// Tier 2: shared significant words.
	for _, tw := range targetWords {
		for _, cw := range captionWords {
			if tw == cw {
				return captionScore{tier: tierWordOverlap, multiplier: wordOverlapMultiplier, bonus: cfg.WordOverlapBonus}
			}
		}
	}

	// Tier 3: word-level fuzzy similarity above the cutoff.
	best := 0.0
	for _, tw := range targetWords {
		for _, cw := range captionWords {
			if sim := wordSimilarity(tw, cw); sim > best {
				best = sim
			}
		}
	}
	if best >= cfg.FuzzyCutoff {
		return captionScore{tier: tierFuzzy, multiplier: fuzzyMultiplier * best, bonus: cfg.FuzzyBonus}
	}

	// Tier 4: partial substring overlap between significant words.
	for _, tw := range targetWords {
		for _, cw := range captionWords {
			if strings.Contains(cw, tw) || strings.Contains(tw, cw) {
				return captionScore{tier: tierPartial, multiplier: partialMultiplier, bonus: 0}
			}
		}
	}

	return captionScore{tier: tierNone}
}

// significantWords splits on non-alphanumeric runes and drops short words.
func significantWords(s string, minLen int) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) >= minLen {
			words = append(words, w)
		}
	}
	return words
}

// wordSimilarity estimates similarity of two words in [0,1] using cheap
// prefix/substring heuristics before falling back to edit distance.
func wordSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	if longer == 0 {
		return 0
	}

	shorter := la + lb - longer
	if strings.HasPrefix(a, b) || strings.HasPrefix(b, a) {
		return float64(shorter) / float64(longer)
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		// Substring hits rank slightly below a shared prefix of equal length.
		return 0.9 * float64(shorter) / float64(longer)
	}

	dist := editDistance(a, b)
	return 1.0 - float64(dist)/float64(longer)
}

// editDistance is the Levenshtein distance with two rolling rows.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
