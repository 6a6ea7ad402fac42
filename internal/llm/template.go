package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

// TemplateGenerator builds replies and drafts from the source text alone.
type TemplateGenerator struct{}

// NewTemplateGenerator returns the offline generator.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Answer quotes the article as a step-by-step reply.
func (g *TemplateGenerator) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(req.Article.Content)
	if body == "" {
		body = req.Article.Title
	}
	reply := fmt.Sprintf("I'll guide you through this. From \"%s\":\n\n%s\n\nIs everything working correctly now?",
		req.Article.Title, body)
	return &Answer{Reply: reply}, nil
}

// Triage categorizes by keyword families and summarizes by truncation.
func (g *TemplateGenerator) Triage(ctx context.Context, question string) (*Triage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Triage{
		Category: Categorize(question),
		Summary:  textnorm.Preview(question, maxSummaryLen),
	}, nil
}

// DraftArticle assembles a draft from cluster issues and resolutions.
func (g *TemplateGenerator) DraftArticle(ctx context.Context, req DraftRequest) (*Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := topTerms(append(append([]string{}, req.Issues...), req.Resolutions...), 5)
	title := "Draft from resolved tickets"
	if issues := dedupe(req.Issues, 1); len(issues) > 0 {
		title = "Recurring issue: " + textnorm.Preview(issues[0], 120)
	}

	var b strings.Builder
	b.WriteString("## Reported symptoms\n")
	for _, issue := range dedupe(req.Issues, 5) {
		b.WriteString("- " + textnorm.Preview(issue, 300) + "\n")
	}
	resolutions := dedupe(req.Resolutions, 8)
	b.WriteString("\n## Resolution steps\n")
	if len(resolutions) == 0 {
		b.WriteString("Review and edit this article. Generated from ticket patterns.\n")
	}
	for i, r := range resolutions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, textnorm.Preview(r, 800))
	}

	joined := strings.Join(req.Issues, " ")
	return &Draft{
		Title:          textnorm.Truncate(title, MaxTitleLen),
		Content:        textnorm.Truncate(b.String(), MaxContentLen),
		Category:       Categorize(joined),
		Tags:           terms,
		ClusterSummary: textnorm.Preview(fmt.Sprintf("%d tickets about %s", len(req.Issues), strings.Join(terms, ", ")), maxSummaryLen),
	}, nil
}

var categoryFamilies = []struct {
	category string
	words    []string
}{
	{"Account", []string{"password", "login", "sign", "locked", "account", "mfa", "2fa", "reset"}},
	{"Billing", []string{"invoice", "billing", "payment", "charge", "refund", "subscription"}},
	{"Email", []string{"email", "outlook", "mail", "exchange", "inbox"}},
	{"Network", []string{"vpn", "wifi", "network", "internet", "connect"}},
	{"Hardware", []string{"printer", "laptop", "monitor", "keyboard", "device", "phone"}},
}

// Categorize assigns a coarse category from keyword families, Technical otherwise.
func Categorize(text string) string {
	words := textnorm.Tokens(text)
	best, bestHits := "Technical", 0
	for _, fam := range categoryFamilies {
		hits := 0
		for _, w := range words {
			for _, fw := range fam.words {
				if w == fw || textnorm.Stem(w) == fw {
					hits++
				}
			}
		}
		if hits > bestHits {
			best, bestHits = fam.category, hits
		}
	}
	return best
}

func topTerms(texts []string, n int) []string {
	counts := make(map[string]int)
	for _, t := range texts {
		for _, term := range textnorm.TopicTerms(t) {
			if len(term) > 2 {
				counts[term]++
			}
		}
	}
	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func dedupe(items []string, max int) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, max)
	for _, it := range items {
		key := textnorm.Normalize(it)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(it))
		if len(out) == max {
			break
		}
	}
	return out
}
