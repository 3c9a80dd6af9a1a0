package responder

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the rule a message falls under.
type Category string

const (
	CategoryFact     Category = "fact"
	CategoryReaction Category = "reaction"
	CategoryDefault  Category = "default"
)

var lower = cases.Lower(language.Und)

// Classify picks the first matching category for text. Matching is
// case-insensitive substring search; facts win over reactions.
func Classify(text string) Category {
	folded := lower.String(text)
	switch {
	case containsAny(folded, factKeywords):
		return CategoryFact
	case containsAny(folded, reactionKeywords):
		return CategoryReaction
	default:
		return CategoryDefault
	}
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
