package resolution

import (
	"strings"
	"unicode"
)

// Phrases are matched as whole-word sequences after apostrophes are dropped,
// so "doesn't" and "doesnt" are the same phrase and "ok" never fires inside "broken".
var (
	resolutionPhrases = compilePhrases(
		"it's working", "it is working", "it works", "works now", "resolved", "fixed", "thank you", "thanks",
		"that worked", "all good", "all set", "working now", "solved", "yes it did", "that did it", "perfect",
	)
	negativePhrases = compilePhrases(
		"still", "broken", "fails", "failing", "failed", "not working", "isn't working", "stopped working",
		"doesn't work", "does not work", "didn't work", "did not work", "never worked",
		"not resolved", "isn't resolved", "wasn't resolved", "not fixed", "isn't fixed", "wasn't fixed",
		"not solved", "isn't solved", "didn't help", "did not help", "didn't fix", "did not fix",
		"doesn't help", "nothing changed", "no change", "no luck", "same error", "same problem",
		"already tried", "tried that", "tried everything",
		"escalate", "speak to someone", "talk to someone", "speak to a human", "talk to a human",
		"real person",
	)
	confirmationPhrases = compilePhrases(
		"done", "completed", "yes", "yep", "yeah", "finished", "ok", "okay", "ready", "did it",
		"i'm there", "i am there", "next", "y", "k",
	)
	// escalationTriggers force escalation of a new ticket before any matching.
	escalationTriggers = compilePhrases(
		"already tried", "tried that", "tried everything", "still not working", "still can't", "still cannot",
		"access denied", "permission denied", "no permission", "don't have permission", "do not have permission",
		"my role", "role is wrong", "admin access", "for days", "since last week",
		"multiple systems", "several systems", "speak to someone", "speak to a human", "talk to a human", "escalate",
	)
)

// refusalOpeners turn a reply negative when they open it ("no, still broken").
var refusalOpeners = map[string]struct{}{"no": {}, "n": {}, "nope": {}, "nah": {}}

// politeAfterNo keeps "no problem" and "no worries" from reading as a refusal.
var politeAfterNo = map[string]struct{}{"problem": {}, "problems": {}, "worries": {}, "issue": {}, "issues": {}}

func words(text string) []string {
	text = strings.ToLower(text)
	text = strings.NewReplacer("'", "", "’", "").Replace(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func compilePhrases(phrases ...string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		if w := words(p); len(w) > 0 {
			out = append(out, w)
		}
	}
	return out
}

func hasPhrase(tokens []string, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		match := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func containsAny(text string, phrases [][]string) bool {
	tokens := words(text)
	for _, p := range phrases {
		if hasPhrase(tokens, p) {
			return true
		}
	}
	return false
}

// IsResolution reports whether the reply says the problem is solved.
// Callers check IsNegative first: "not resolved" contains "resolved".
func IsResolution(text string) bool {
	return containsAny(text, resolutionPhrases)
}

// IsNegative reports whether the reply says the problem persists or asks for a person.
func IsNegative(text string) bool {
	tokens := words(text)
	if len(tokens) > 0 {
		if _, ok := refusalOpeners[tokens[0]]; ok {
			if len(tokens) == 1 {
				return true
			}
			if _, polite := politeAfterNo[tokens[1]]; !polite {
				return true
			}
		}
	}
	for _, p := range negativePhrases {
		if hasPhrase(tokens, p) {
			return true
		}
	}
	return false
}

// IsConfirmation reports whether the reply acknowledges a step.
func IsConfirmation(text string) bool {
	return containsAny(text, confirmationPhrases)
}

// HasEscalationTrigger reports whether a new ticket must go straight to a person.
func HasEscalationTrigger(text string) bool {
	return containsAny(text, escalationTriggers)
}
