package agent

import "strings"

// Phrases accepted as an explicit go-ahead for a pending proposal.
var affirmativePhrases = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay",
	"confirm", "confirmed", "proceed", "correct",
	"go ahead", "do it", "please do", "save it", "sounds good",
}

// Phrases that veto the whole reply even when an affirmative word
// appears ("no, don't save it yet").
var negativePhrases = []string{
	"no", "nope", "don't", "do not", "not yet", "cancel", "stop", "wait", "hold",
}

// isAffirmative reports whether a user reply explicitly confirms the
// pending action. Matching is token-bounded so "yesterday" does not
// read as "yes". The list is deliberately conservative: an ambiguous
// reply means the mutating tool does not run.
func isAffirmative(text string) bool {
	normalized := strings.ToLower(text)
	normalized = strings.Map(func(r rune) rune {
		if strings.ContainsRune(",.;:!?\"'", r) {
			return ' '
		}
		return r
	}, normalized)
	padded := " " + strings.Join(strings.Fields(normalized), " ") + " "

	for _, phrase := range negativePhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return false
		}
	}
	for _, phrase := range affirmativePhrases {
		if strings.Contains(padded, " "+phrase+" ") {
			return true
		}
	}
	return false
}
