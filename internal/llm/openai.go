package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"golang.org/x/time/rate"

	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("llm: empty response")

const answerSystemPrompt = `You are an IT support technician answering a helpdesk ticket from one knowledge base article.
Escalate when the user already tried the documented steps, mentions delays or persistent failures,
reports role, permission or access problems, or when the article does not clearly match.
Return only JSON: {"status":"auto_resolved"|"needs_escalation","user_reply":string,"confidence":"High"|"Medium"|"Low","internal_note":string|null}`

const triageSystemPrompt = `You triage helpdesk tickets for a human agent.
Return only JSON: {"category":"Technical"|"Billing"|"Account"|"General","summary":string (max 200 chars)}`

const draftSystemPrompt = `You write IT helpdesk knowledge base articles from resolved ticket data.
Use only the provided ticket content.
Return only JSON with keys: title (concise), content (step-by-step solution), category (single word),
tags (array of 3-5 strings), cluster_summary (one sentence, max 100 chars).`

var confidenceLabels = map[string]float64{"high": 0.9, "medium": 0.6, "low": 0.3}

// OpenAIGenerator calls a chat model through langchaingo.
type OpenAIGenerator struct {
	model       llms.Model
	limiter     *rate.Limiter
	temperature float64
	maxTokens   int
}

// NewOpenAIGenerator builds a generator backed by an OpenAI-compatible endpoint.
func NewOpenAIGenerator(cfg config.LLMConfig) (*OpenAIGenerator, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return NewModelGenerator(client, cfg), nil
}

// NewModelGenerator wraps any langchaingo model.
func NewModelGenerator(model llms.Model, cfg config.LLMConfig) *OpenAIGenerator {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1500
	}
	return &OpenAIGenerator{
		model:       model,
		limiter:     rate.NewLimiter(limit, 1),
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// New picks the OpenAI generator when an API key is configured, the template generator otherwise.
func New(cfg config.LLMConfig) (Generator, error) {
	if cfg.Enabled() {
		return NewOpenAIGenerator(cfg)
	}
	return NewTemplateGenerator(), nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, system, user string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := g.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeSystem, system),
			llms.TextParts(schema.ChatMessageTypeHuman, user),
		},
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Content, nil
}

// extractJSON strips markdown fences and surrounding prose.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

type answerPayload struct {
	Status       string  `json:"status"`
	UserReply    string  `json:"user_reply"`
	Confidence   string  `json:"confidence"`
	InternalNote *string `json:"internal_note"`
}

// Answer asks the model for a grounded reply and a confidence label.
func (g *OpenAIGenerator) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	user := fmt.Sprintf("Support ticket:\n%s\n\nKnowledge base article \"%s\":\n%s",
		req.Question, req.Article.Title, textnorm.Truncate(req.Article.Content, 6000))
	raw, err := g.complete(ctx, answerSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	var payload answerPayload
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("decoding answer: %w", err)
	}
	if strings.TrimSpace(payload.UserReply) == "" {
		return nil, ErrEmptyResponse
	}
	answer := &Answer{
		Reply:    strings.TrimSpace(payload.UserReply),
		Escalate: payload.Status != "auto_resolved",
	}
	conf, ok := confidenceLabels[strings.ToLower(strings.TrimSpace(payload.Confidence))]
	if !ok {
		conf = confidenceLabels["low"]
	}
	answer.Confidence = &conf
	if payload.InternalNote != nil {
		answer.Reason = *payload.InternalNote
	}
	return answer, nil
}

// Triage asks the model for a category and summary.
func (g *OpenAIGenerator) Triage(ctx context.Context, question string) (*Triage, error) {
	raw, err := g.complete(ctx, triageSystemPrompt, question)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Category string `json:"category"`
		Summary  string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("decoding triage: %w", err)
	}
	t := &Triage{
		Category: strings.TrimSpace(payload.Category),
		Summary:  textnorm.Preview(payload.Summary, maxSummaryLen),
	}
	if t.Category == "" {
		t.Category = "Technical"
	}
	if t.Summary == "" {
		t.Summary = textnorm.Preview(question, maxSummaryLen)
	}
	return t, nil
}

// DraftArticle asks the model to write an article from the cluster texts.
func (g *OpenAIGenerator) DraftArticle(ctx context.Context, req DraftRequest) (*Draft, error) {
	var b strings.Builder
	b.WriteString("---ISSUES---\n")
	for _, issue := range req.Issues {
		b.WriteString(textnorm.Truncate(issue, 500) + "\n")
	}
	b.WriteString("---RESOLUTIONS---\n")
	for _, r := range req.Resolutions {
		b.WriteString(textnorm.Truncate(r, 800) + "\n")
	}
	raw, err := g.complete(ctx, draftSystemPrompt, textnorm.Truncate(b.String(), 6000))
	if err != nil {
		return nil, err
	}
	var payload struct {
		Title          string   `json:"title"`
		Content        string   `json:"content"`
		Category       string   `json:"category"`
		Tags           []string `json:"tags"`
		ClusterSummary string   `json:"cluster_summary"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &payload); err != nil {
		return nil, fmt.Errorf("decoding draft: %w", err)
	}
	d := &Draft{
		Title:          textnorm.Truncate(strings.TrimSpace(payload.Title), MaxTitleLen),
		Content:        textnorm.Truncate(payload.Content, MaxContentLen),
		Category:       textnorm.Truncate(strings.TrimSpace(payload.Category), MaxCategoryLen),
		Tags:           payload.Tags,
		ClusterSummary: textnorm.Truncate(payload.ClusterSummary, maxSummaryLen),
	}
	if d.Title == "" {
		d.Title = "Untitled"
	}
	if d.Category == "" {
		d.Category = "General"
	}
	if d.ClusterSummary == "" {
		d.ClusterSummary = "Recurring issue from resolved tickets"
	}
	return d, nil
}
