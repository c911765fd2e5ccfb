// Package dedup extracts topic keys from question text and detects
// near-duplicate questions within a game.
package dedup

import (
	"strings"
	"unicode"

	"github.com/mroshb/group_quiz_bot/pkg/utils"
)

const (
	// DefaultTopic is returned when no keyword survives filtering.
	DefaultTopic = "geral"

	maxKeywords     = 3
	minKeywordLen   = 4
	overlapRequired = 2
)

var stopwords = map[string]struct{}{
	// Portuguese
	"qual": {}, "quais": {}, "como": {}, "quando": {}, "onde": {}, "quanto": {}, "quantos": {},
	"quantas": {}, "para": {}, "pelo": {}, "pela": {}, "sobre": {}, "entre": {}, "apos": {},
	"antes": {}, "depois": {}, "esse": {}, "essa": {}, "este": {}, "esta": {}, "isso": {},
	"pode": {}, "podem": {}, "deve": {}, "devem": {}, "voce": {}, "voces": {}, "seus": {},
	"suas": {}, "mais": {}, "menos": {}, "muito": {}, "cada": {}, "todo": {}, "toda": {},
	"todos": {}, "todas": {}, "sendo": {}, "seria": {}, "acontece": {}, "correto": {},
	"correta": {}, "afirmativa": {}, "alternativa": {}, "segundo": {}, "conforme": {},
	"programa": {}, "participante": {}, "participantes": {}, "regulamento": {},
	// English
	"what": {}, "which": {}, "when": {}, "where": {}, "does": {}, "about": {}, "with": {},
	"from": {}, "that": {}, "this": {}, "there": {}, "their": {}, "have": {}, "should": {},
	"would": {}, "could": {}, "according": {}, "following": {}, "true": {}, "false": {},
}

// Keywords returns the normalized, stopword-free keywords of text in order
// of first appearance.
func Keywords(text string) []string {
	folded := strings.ToLower(utils.FoldAccents(text))
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if len([]rune(tok)) < minKeywordLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// ExtractTopic returns the topic key of a question: its first three keywords.
func ExtractTopic(questionText string) string {
	kw := Keywords(questionText)
	if len(kw) == 0 {
		return DefaultTopic
	}
	if len(kw) > maxKeywords {
		kw = kw[:maxKeywords]
	}
	return strings.Join(kw, " ")
}

// IsDuplicate reports whether topic equals a used topic or shares at least
// two keywords with one.
func IsDuplicate(topic string, used []string) bool {
	words := strings.Fields(topic)
	for _, u := range used {
		if u == topic {
			return true
		}
		if len(words) < overlapRequired {
			continue
		}
		if overlap(words, strings.Fields(u)) >= overlapRequired {
			return true
		}
	}
	return false
}

// ValidateAndGetTopic extracts the topic and reports whether it is new.
func ValidateAndGetTopic(questionText string, used []string) (bool, string) {
	topic := ExtractTopic(questionText)
	return !IsDuplicate(topic, used), topic
}

// FormatUsedTopics renders the de-duplication hint block placed in prompts.
func FormatUsedTopics(used []string) string {
	if len(used) == 0 {
		return "  (nenhum)"
	}
	lines := make([]string, 0, len(used))
	for _, t := range used {
		lines = append(lines, "  🚫 "+t)
	}
	return strings.Join(lines, "\n")
}

func overlap(a, b []string) int {
	set := make(map[string]struct{}, len(b))
	for _, w := range b {
		set[w] = struct{}{}
	}
	n := 0
	for _, w := range a {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}
