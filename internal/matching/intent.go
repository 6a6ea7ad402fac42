package matching

import (
	"strings"

	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

// Intent is a coarse classification of what the requester wants.
type Intent string

const (
	IntentUnclear       Intent = "unclear"
	IntentEmailSetup    Intent = "email_setup"
	IntentPasswordReset Intent = "password_reset"
	IntentVPN           Intent = "vpn"
)

var (
	emailSignals    = setOf("set", "setup", "configure", "add", "account", "company", "email", "mail", "exchange", "outlook")
	passwordSignals = setOf("reset", "forgot", "change", "password", "recover")
	vpnSignals      = setOf("vpn", "connect", "remote", "network")
)

func setOf(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

func overlap(words map[string]struct{}, signals map[string]struct{}) int {
	n := 0
	for w := range words {
		if _, ok := signals[w]; ok {
			n++
		}
	}
	return n
}

// ClassifyIntent returns the intent of a query and a confidence in [0,1].
func ClassifyIntent(query string) (Intent, float64) {
	words := setOf(textnorm.Keywords(query)...)
	if len(words) == 0 {
		return IntentUnclear, 0
	}
	email := overlap(words, emailSignals)
	password := overlap(words, passwordSignals)
	vpn := overlap(words, vpnSignals)
	_, hasSet := words["set"]
	_, hasSetup := words["setup"]
	_, hasConfigure := words["configure"]
	_, hasEmail := words["email"]

	switch {
	case password >= 1 && email == 0:
		if password >= 2 {
			return IntentPasswordReset, 0.9
		}
		return IntentPasswordReset, 0.7
	case email >= 2 && password == 0:
		return IntentEmailSetup, 0.9
	case email >= 1 && (hasSet || hasSetup || hasConfigure):
		return IntentEmailSetup, 0.8
	case vpn >= 1:
		return IntentVPN, 0.8
	case hasEmail && password >= 1:
		return IntentPasswordReset, 0.6
	}
	return IntentUnclear, 0
}

// articleIntentHints derives which intents an article serves from its title, category and lead text.
func articleIntentHints(title, category, content string) map[Intent]struct{} {
	title = strings.ToLower(title)
	if len(content) > 500 {
		content = content[:500]
	}
	combined := strings.ToLower(title + " " + category + " " + content)
	tokens := make(map[string]struct{})
	for _, w := range textnorm.Tokens(combined) {
		if len(w) >= 3 {
			tokens[w] = struct{}{}
		}
	}
	hints := make(map[Intent]struct{})
	if overlap(tokens, passwordSignals) > 0 || strings.Contains(combined, "password") {
		hints[IntentPasswordReset] = struct{}{}
	}
	if overlap(tokens, emailSignals) > 0 || strings.Contains(title, "email") || strings.Contains(title, "setup") || strings.Contains(combined, "set up") {
		hints[IntentEmailSetup] = struct{}{}
	}
	if overlap(tokens, vpnSignals) > 0 {
		hints[IntentVPN] = struct{}{}
	}
	return hints
}
