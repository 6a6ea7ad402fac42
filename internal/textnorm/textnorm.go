// Package textnorm holds the text normalization shared by matching and clustering.
package textnorm

import (
	"sort"
	"strings"
	"unicode"
)

var queryStopWords = toSet(
	"how", "do", "i", "the", "is", "a", "an", "to", "of", "and", "in", "for", "on", "with",
	"at", "by", "from", "as", "it", "that", "this", "be", "are", "was", "were", "been",
	"have", "has", "had", "can", "could", "would", "should", "will", "my", "me", "we",
	"what", "when", "where", "which", "who", "why", "get", "got", "need", "want", "like",
	"up",
)

var topicStopWords = toSet(
	"a", "an", "the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with",
	"by", "from", "as", "is", "was", "are", "were", "been", "be", "have", "has", "had",
	"do", "does", "did", "will", "would", "could", "should", "may", "might", "must",
	"can", "this", "that", "these", "those", "it", "its", "i", "me", "my", "we", "our",
	"you", "your", "he", "she", "they", "them", "not", "no", "yes", "so", "if", "then",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Normalize lowercases text, replaces punctuation with spaces and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits normalized text into words.
func Tokens(text string) []string {
	return strings.Fields(Normalize(text))
}

// Keywords extracts query keywords: stop words and single characters removed, order kept.
func Keywords(text string) []string {
	words := Tokens(text)
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) <= 1 {
			continue
		}
		if _, stop := queryStopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Stem strips a common English suffix.
func Stem(w string) string {
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 2 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 1 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// TopicTerms returns the sorted, de-duplicated, stemmed content terms of text.
func TopicTerms(text string) []string {
	seen := make(map[string]struct{})
	for _, w := range Tokens(text) {
		if _, stop := topicStopWords[w]; stop {
			continue
		}
		seen[Stem(w)] = struct{}{}
	}
	terms := make([]string, 0, len(seen))
	for w := range seen {
		terms = append(terms, w)
	}
	sort.Strings(terms)
	return terms
}

// Topic is TopicTerms joined with single spaces.
func Topic(text string) string {
	return strings.Join(TopicTerms(text), " ")
}

// Jaccard returns |a∩b| / |a∪b| over two space separated term lists.
func Jaccard(a, b string) float64 {
	setA := toSet(strings.Fields(a)...)
	setB := toSet(strings.Fields(b)...)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Preview trims body to max bytes, appending an ellipsis when cut.
func Preview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return strings.TrimSpace(body[:max-3]) + "..."
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
