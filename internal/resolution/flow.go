package resolution

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

const (
	stepEnd      = "end"
	stepDevice   = "device"
	stepTopic    = "topic"
	maxStepChars = 400
	maxSteps     = 15
)

// Step is one turn of a guided flow.
type Step struct {
	ID      string
	Message string
	Options []domain.DialogOption
	SaveAs  string
	Next    string
}

// Flow is the guided dialog derived from an article.
type Flow struct {
	ArticleID string
	Title     string
	Steps     []Step
}

var platforms = []string{"iphone", "android", "windows", "mac", "vpn", "on-site", "off-site", "internal", "external"}

var (
	numberedLine = regexp.MustCompile(`(?i)^\s*(?:step\s*)?(\d+)\s*[.):]\s*(.+)$`)
	bulletLine   = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
)

// BuildFlow turns article content into a step sequence, preceded by a device
// choice when the article has sections for several platforms.
func BuildFlow(article domain.KnowledgeArticle) Flow {
	flow := Flow{ArticleID: article.ID, Title: article.Title}
	lowerContent := strings.ToLower(article.Content)
	lowerTitle := strings.ToLower(article.Title)

	var found []string
	for _, p := range platforms {
		if strings.Contains(lowerContent, p) || strings.Contains(lowerTitle, p) {
			found = append(found, p)
		}
	}
	if len(found) > 0 && platformSections(lowerContent, found) >= 2 {
		if len(found) > 5 {
			found = found[:5]
		}
		options := make([]domain.DialogOption, 0, len(found))
		for _, p := range found {
			options = append(options, domain.DialogOption{ID: p, Label: platformLabel(p)})
		}
		flow.Steps = append(flow.Steps, Step{
			ID:      stepDevice,
			Message: "What device or environment are you using?",
			Options: options,
			SaveAs:  "device_type",
			Next:    "step_1",
		})
	}

	steps := parseSteps(article.Content)
	for i, text := range steps {
		next := stepEnd
		if i+1 < len(steps) {
			next = fmt.Sprintf("step_%d", i+2)
		}
		flow.Steps = append(flow.Steps, Step{ID: fmt.Sprintf("step_%d", i+1), Message: text, Next: next})
	}
	if len(steps) == 0 {
		msg := strings.TrimSpace(article.Content)
		if msg == "" {
			msg = article.Title
		}
		if msg == "" {
			msg = "Please follow the instructions provided."
		}
		flow.Steps = append(flow.Steps, Step{ID: "step_1", Message: textnorm.Truncate(msg, 500), Next: stepEnd})
	}
	return flow
}

// Step returns the step with the given id.
func (f Flow) Step(id string) (Step, bool) {
	for _, s := range f.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

func platformSections(content string, found []string) int {
	count := 0
	for _, p := range found {
		q := regexp.QuoteMeta(p)
		re := regexp.MustCompile(`\b` + q + `\b|` + q + `\s*:|` + q + `\s*-`)
		if re.MatchString(content) {
			count++
		}
	}
	return count
}

func platformLabel(p string) string {
	words := strings.Fields(strings.ReplaceAll(p, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func parseSteps(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")

	var steps []string
	current := -1
	for _, line := range lines {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			steps = append(steps, strings.TrimSpace(m[2]))
			current = len(steps) - 1
			continue
		}
		if current >= 0 && strings.TrimSpace(line) != "" {
			steps[current] += "\n" + strings.TrimSpace(line)
		}
	}
	if len(steps) == 0 {
		for _, line := range lines {
			if m := bulletLine.FindStringSubmatch(line); m != nil {
				steps = append(steps, strings.TrimSpace(m[1]))
			}
		}
	}
	if len(steps) == 0 {
		for _, para := range strings.Split(content, "\n\n") {
			para = strings.TrimSpace(para)
			if len(para) > 10 {
				steps = append(steps, para)
			}
		}
		if len(steps) <= 1 {
			return nil
		}
	}
	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	for i := range steps {
		steps[i] = textnorm.Truncate(steps[i], maxStepChars)
	}
	return steps
}

// chooseOption matches a reply against options by id, label or 1-based index.
func chooseOption(options []domain.DialogOption, reply string) (domain.DialogOption, bool) {
	m := strings.ToLower(strings.TrimSpace(reply))
	if m == "" {
		return domain.DialogOption{}, false
	}
	for _, opt := range options {
		id := strings.ToLower(opt.ID)
		label := strings.ToLower(opt.Label)
		if m == id || m == label || strings.Contains(m, id) || (len(m) > 2 && strings.Contains(label, m)) {
			return opt, true
		}
	}
	if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return domain.DialogOption{}, false
}
