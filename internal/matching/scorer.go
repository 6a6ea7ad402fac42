package matching

import (
	"strings"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// KeywordScore rates how well an article answers the query keywords.
//
// Title phrase +3, each keyword in title +2, category hit +2 (once), each
// keyword in content +1, tag hit +1, two or more hits +3, matching intent +4,
// contradicting intent -5. The result is floored at zero.
func KeywordScore(article domain.KnowledgeArticle, keywords []string, intent Intent) float64 {
	if len(keywords) == 0 {
		return 0
	}
	title := strings.ToLower(article.Title)
	content := strings.ToLower(article.Content)
	category := ""
	if article.Category != nil {
		category = strings.ToLower(*article.Category)
	}
	tags := strings.ToLower(strings.Join(article.Tags, " "))

	score := 0.0
	if strings.Contains(title, strings.Join(keywords, " ")) {
		score += 3
	}
	titleHits, contentHits := 0, 0
	for _, kw := range keywords {
		if strings.Contains(title, kw) {
			score += 2
			titleHits++
		}
	}
	if category != "" {
		for _, kw := range keywords {
			if strings.Contains(category, kw) {
				score += 2
				break
			}
		}
	}
	for _, kw := range keywords {
		if strings.Contains(content, kw) {
			score++
			contentHits++
		}
	}
	if tags != "" {
		for _, kw := range keywords {
			if strings.Contains(tags, kw) {
				score++
				break
			}
		}
	}
	if titleHits+contentHits >= 2 {
		score += 3
	}

	if intent != IntentUnclear {
		hints := articleIntentHints(article.Title, category, article.Content)
		_, serves := hints[intent]
		_, servesPassword := hints[IntentPasswordReset]
		_, servesEmail := hints[IntentEmailSetup]
		switch {
		case serves:
			score += 4
		case intent == IntentEmailSetup && servesPassword:
			score -= 5
		case intent == IntentPasswordReset && servesEmail:
			score -= 5
		}
	}
	if score < 0 {
		return 0
	}
	return score
}
