// Package resolution decides whether a ticket is answered directly, walked
// through a guided dialog, or escalated to a person.
package resolution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/llm"
	"github.com/vicmordi/AIHelpdesk/internal/matching"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
)

var tracer = observability.Tracer("resolution")

// ErrNotEngaged is returned by Continue for tickets the engine is not handling.
var ErrNotEngaged = errors.New("resolution: ticket is not in an automated conversation")

const (
	replyEscalated     = "I'm escalating this to a support specialist. They will follow up on this ticket shortly."
	replyGuidedIntro   = "I'll guide you through this."
	replyTopicChoice   = "I found a few articles that might help. Which one best matches your issue?"
	replyNotCaught     = "I didn't catch that. Please choose one of the options above."
	replyFlowComplete  = "It looks like we've completed all steps. Did this resolve your issue?"
	replyResolved      = "Glad that worked! I'll mark this ticket as resolved."
	replyAskConfirm    = "Is everything working correctly now?"
	replyStepReminder  = "Let me know when you've completed this step."
	reasonTrigger      = "escalation_trigger"
	reasonNoMatch      = "no_match"
	reasonUpstream     = "upstream_failure"
	reasonModel        = "model_escalation"
	reasonLowConf      = "low_confidence"
	reasonUserNegative = "user_reported_unresolved"
	reasonMissing      = "article_unavailable"
)

// Matcher ranks articles for a ticket.
type Matcher interface {
	Match(ctx context.Context, orgID, text string, articles []domain.KnowledgeArticle, k int) (*matching.Result, error)
}

// Decision is the outcome of one engine invocation.
type Decision struct {
	Mode       domain.AIMode
	Status     domain.TicketStatus
	Reply      string
	Options    []domain.DialogOption
	Guided     *domain.GuidedState
	Confidence *float64
	Category   *string
	Summary    *string
	Escalated  bool
	ArticleID  string
	Reason     string
}

// Engine is the resolution decision engine.
type Engine struct {
	matcher   Matcher
	generator llm.Generator
	fallback  llm.Generator
	cfg       config.EngineConfig
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// Dependencies bundles engine collaborators.
type Dependencies struct {
	Matcher   Matcher
	Generator llm.Generator
	Config    config.EngineConfig
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gen := deps.Generator
	if gen == nil {
		gen = llm.NewTemplateGenerator()
	}
	return &Engine{
		matcher:   deps.Matcher,
		generator: gen,
		fallback:  llm.NewTemplateGenerator(),
		cfg:       deps.Config,
		logger:    logger,
		metrics:   deps.Metrics,
	}
}

// WithConfig returns a copy of the engine using cfg.
func (e *Engine) WithConfig(cfg config.EngineConfig) *Engine {
	cp := *e
	cp.cfg = cfg
	return &cp
}

// Config returns the active thresholds.
func (e *Engine) Config() config.EngineConfig {
	return e.cfg
}

func (e *Engine) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.UpstreamTimeout > 0 {
		return context.WithTimeout(ctx, e.cfg.UpstreamTimeout)
	}
	return context.WithCancel(ctx)
}

// Resolve decides how to handle a new ticket. Backend failures never surface
// as errors: they produce an escalation.
func (e *Engine) Resolve(ctx context.Context, orgID, text string, articles []domain.KnowledgeArticle) Decision {
	ctx, span := tracer.Start(ctx, "Engine.Resolve")
	defer span.End()

	d := e.resolve(ctx, orgID, text, articles)
	span.SetAttributes(
		attribute.String("mode", string(d.Mode)),
		attribute.String("status", string(d.Status)),
		attribute.String("reason", d.Reason),
	)
	e.metrics.RecordResolution(string(d.Mode), string(d.Status))
	e.logger.Info("resolution decision",
		zap.String("organization_id", orgID),
		zap.String("mode", string(d.Mode)),
		zap.String("status", string(d.Status)),
		zap.String("article_id", d.ArticleID),
		zap.String("reason", d.Reason))
	return d
}

func (e *Engine) resolve(ctx context.Context, orgID, text string, articles []domain.KnowledgeArticle) Decision {
	if HasEscalationTrigger(text) {
		return e.escalate(ctx, text, domain.AIModeDirect, floatPtr(0), reasonTrigger)
	}

	matchCtx, cancel := e.bounded(ctx)
	res, err := e.matcher.Match(matchCtx, orgID, text, articles, e.topK())
	cancel()
	if err != nil {
		return e.upstreamFailure(ctx, text, "matching", err)
	}

	best, ok := res.Best()
	if !ok || best.Relevance < e.cfg.GuidedFloor {
		conf := 0.0
		if ok {
			conf = round2(best.Relevance)
		}
		return e.escalate(ctx, text, domain.AIModeDirect, &conf, reasonNoMatch)
	}

	if tied := e.closeCandidates(res); len(tied) > 1 {
		return e.topicChoice(tied)
	}

	if best.Relevance < e.cfg.MatchThreshold {
		return e.startFlow(best.Article, "")
	}

	genCtx, cancel := e.bounded(ctx)
	answer, err := e.generator.Answer(genCtx, llm.AnswerRequest{Question: text, Article: best.Article})
	cancel()
	if err != nil {
		return e.upstreamFailure(ctx, text, "generation", err)
	}

	conf := best.Relevance
	if answer.Confidence != nil {
		conf = math.Min(conf, *answer.Confidence)
	}
	conf = round2(conf)
	if answer.Escalate {
		d := e.escalate(ctx, text, domain.AIModeDirect, &conf, reasonModel)
		d.ArticleID = best.Article.ID
		return d
	}
	if conf >= e.cfg.AutoResolveThreshold {
		return Decision{
			Mode:       domain.AIModeDirect,
			Status:     domain.TicketStatusAutoResolved,
			Reply:      answer.Reply,
			Confidence: &conf,
			ArticleID:  best.Article.ID,
		}
	}
	d := e.startFlow(best.Article, "")
	d.Reason = reasonLowConf
	return d
}

func (e *Engine) topK() int {
	if e.cfg.TopK > 0 {
		return e.cfg.TopK
	}
	return 3
}

// closeCandidates returns the candidates competing with the best one when the
// requester's intent does not settle it.
func (e *Engine) closeCandidates(res *matching.Result) []matching.Candidate {
	if res.Intent != matching.IntentUnclear || len(res.Candidates) < 2 {
		return nil
	}
	best := res.Candidates[0].Relevance
	var out []matching.Candidate
	for _, c := range res.Candidates {
		if c.Relevance >= e.cfg.GuidedFloor && best-c.Relevance <= e.cfg.CloseCallGap {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) topicChoice(candidates []matching.Candidate) Decision {
	options := make([]domain.DialogOption, 0, len(candidates))
	ids := make([]string, 0, len(candidates))
	var b strings.Builder
	b.WriteString(replyTopicChoice)
	for i, c := range candidates {
		options = append(options, domain.DialogOption{ID: c.Article.ID, Label: c.Article.Title})
		ids = append(ids, c.Article.ID)
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Article.Title)
	}
	state := &domain.GuidedState{StepID: stepTopic, Candidates: ids, Options: options}
	return Decision{
		Mode:    domain.AIModeGuided,
		Status:  domain.TicketStatusInProgress,
		Reply:   b.String(),
		Options: options,
		Guided:  state,
	}
}

func (e *Engine) startFlow(article domain.KnowledgeArticle, intro string) Decision {
	flow := BuildFlow(article)
	first := flow.Steps[0]
	if intro == "" {
		intro = replyGuidedIntro
	}
	state := &domain.GuidedState{ArticleID: article.ID, StepID: first.ID, Options: first.Options}
	return Decision{
		Mode:      domain.AIModeGuided,
		Status:    domain.TicketStatusInProgress,
		Reply:     intro + "\n\n" + first.Message,
		Options:   first.Options,
		Guided:    state,
		ArticleID: article.ID,
	}
}

func (e *Engine) upstreamFailure(ctx context.Context, text, backend string, err error) Decision {
	e.metrics.RecordUpstreamFailure(backend)
	e.logger.Warn("upstream failure, escalating", zap.String("backend", backend), zap.Error(err))
	return e.escalate(ctx, text, domain.AIModeDirect, floatPtr(0), reasonUpstream)
}

// escalate hands the ticket to a person. Confidence must be nil for guided mode.
func (e *Engine) escalate(ctx context.Context, text string, mode domain.AIMode, confidence *float64, reason string) Decision {
	triage := e.triage(ctx, text)
	if mode != domain.AIModeDirect {
		confidence = nil
	}
	return Decision{
		Mode:       mode,
		Status:     domain.TicketStatusEscalated,
		Reply:      replyEscalated,
		Confidence: confidence,
		Category:   &triage.Category,
		Summary:    &triage.Summary,
		Escalated:  true,
		Reason:     reason,
	}
}

func (e *Engine) triage(ctx context.Context, text string) *llm.Triage {
	tctx, cancel := e.bounded(ctx)
	defer cancel()
	t, err := e.generator.Triage(tctx, text)
	if err == nil && t != nil {
		return t
	}
	if err != nil {
		e.logger.Warn("triage failed, using template", zap.Error(err))
	}
	t, _ = e.fallback.Triage(context.WithoutCancel(ctx), text)
	return t
}

// Continue handles a requester reply on a ticket the engine is still driving:
// an auto-resolved ticket awaiting confirmation or a guided dialog.
func (e *Engine) Continue(ctx context.Context, ticket *domain.Ticket, reply string, articles []domain.KnowledgeArticle) (Decision, error) {
	ctx, span := tracer.Start(ctx, "Engine.Continue")
	defer span.End()

	var d Decision
	switch {
	case ticket.Status == domain.TicketStatusAutoResolved:
		d = e.continueAutoResolved(ctx, ticket, reply)
	case ticket.Guided != nil && ticket.Status == domain.TicketStatusInProgress && ticket.AIMode == domain.AIModeGuided:
		d = e.continueGuided(ctx, ticket, reply, articles)
	default:
		return Decision{}, ErrNotEngaged
	}
	e.metrics.RecordResolution(string(d.Mode), string(d.Status))
	span.SetAttributes(attribute.String("status", string(d.Status)))
	return d, nil
}

func (e *Engine) continueAutoResolved(ctx context.Context, ticket *domain.Ticket, reply string) Decision {
	base := Decision{Mode: ticket.AIMode, Confidence: ticket.Confidence, Status: ticket.Status}
	if base.Mode == domain.AIModeNone {
		base.Mode = domain.AIModeDirect
	}
	switch {
	case IsNegative(reply):
		return e.escalate(ctx, ticket.Message+"\n"+reply, base.Mode, base.Confidence, reasonUserNegative)
	case IsResolution(reply) || IsConfirmation(reply):
		base.Status = domain.TicketStatusResolved
		base.Reply = replyResolved
	default:
		base.Reply = replyAskConfirm
	}
	return base
}

func (e *Engine) continueGuided(ctx context.Context, ticket *domain.Ticket, reply string, articles []domain.KnowledgeArticle) Decision {
	state := *ticket.Guided
	keep := Decision{Mode: domain.AIModeGuided, Status: domain.TicketStatusInProgress, Guided: &state, ArticleID: state.ArticleID}

	if IsNegative(reply) {
		d := e.escalate(ctx, ticket.Message+"\n"+reply, domain.AIModeGuided, nil, reasonUserNegative)
		d.ArticleID = state.ArticleID
		return d
	}
	if state.AwaitConfirm {
		if IsResolution(reply) || IsConfirmation(reply) {
			return Decision{Mode: domain.AIModeGuided, Status: domain.TicketStatusResolved, Reply: replyResolved, ArticleID: state.ArticleID}
		}
		keep.Reply = replyFlowComplete
		return keep
	}
	if IsResolution(reply) {
		return Decision{Mode: domain.AIModeGuided, Status: domain.TicketStatusResolved, Reply: replyResolved, ArticleID: state.ArticleID}
	}

	if state.StepID == stepTopic {
		opt, ok := chooseOption(state.Options, reply)
		if !ok {
			keep.Reply = replyNotCaught
			keep.Options = state.Options
			return keep
		}
		article, found := findArticle(articles, opt.ID, ticket.OrganizationID)
		if !found {
			return e.escalate(ctx, ticket.Message, domain.AIModeGuided, nil, reasonMissing)
		}
		return e.startFlow(article, "Got it.")
	}

	article, found := findArticle(articles, state.ArticleID, ticket.OrganizationID)
	if !found {
		return e.escalate(ctx, ticket.Message, domain.AIModeGuided, nil, reasonMissing)
	}
	flow := BuildFlow(article)
	current, ok := flow.Step(state.StepID)
	if !ok {
		current = flow.Steps[0]
	}

	var nextID string
	if len(current.Options) > 0 {
		opt, chosen := chooseOption(current.Options, reply)
		if !chosen {
			keep.Reply = replyNotCaught
			keep.Options = current.Options
			return keep
		}
		if current.SaveAs != "" {
			if state.Context == nil {
				state.Context = map[string]string{}
			}
			state.Context[current.SaveAs] = opt.ID
		}
		nextID = current.Next
	} else {
		if !IsConfirmation(reply) {
			keep.Reply = current.Message
			if keep.Reply == "" {
				keep.Reply = replyStepReminder
			}
			return keep
		}
		nextID = current.Next
	}

	next, ok := flow.Step(nextID)
	if nextID == stepEnd || !ok {
		state.StepID = stepEnd
		state.Options = nil
		state.AwaitConfirm = true
		keep.Reply = replyFlowComplete
		return keep
	}
	state.StepID = next.ID
	state.Options = next.Options
	keep.Reply = next.Message
	keep.Options = next.Options
	return keep
}

func findArticle(articles []domain.KnowledgeArticle, id, orgID string) (domain.KnowledgeArticle, bool) {
	for _, a := range articles {
		if a.ID == id && a.OrganizationID == orgID {
			return a, true
		}
	}
	return domain.KnowledgeArticle{}, false
}

func floatPtr(v float64) *float64 {
	return &v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
