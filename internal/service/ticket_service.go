package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	"github.com/vicmordi/AIHelpdesk/internal/resolution"
	"github.com/vicmordi/AIHelpdesk/internal/textnorm"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// MaxMessageLen caps a single ticket message.
const MaxMessageLen = 10000

// errStaleDecision marks an engine decision that was computed from a ticket
// state someone else has since changed. The decision is dropped.
var errStaleDecision = errors.New("ticket changed while the engine was deciding")

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	messages   repository.TicketMessageRepository
	history    repository.TicketHistoryRepository
	knowledge  repository.KnowledgeRepository
	settings   repository.OrgSettingsRepository
	engine     *resolution.Engine
	locker     lock.Locker
	lockTTL    time.Duration
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo    repository.TicketRepository
	MessageRepo   repository.TicketMessageRepository
	HistoryRepo   repository.TicketHistoryRepository
	KnowledgeRepo repository.KnowledgeRepository
	SettingsRepo  repository.OrgSettingsRepository
	Engine        *resolution.Engine
	Locker        lock.Locker
	LockTTL       time.Duration
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// TicketListFilter describes listing filters. Status and escalation are
// independent axes.
type TicketListFilter struct {
	Statuses     []domain.TicketStatus
	Escalated    *bool
	AssignedTo   *string
	UpdatedSince *time.Time
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		messages:   deps.MessageRepo,
		history:    deps.HistoryRepo,
		knowledge:  deps.KnowledgeRepo,
		settings:   deps.SettingsRepo,
		engine:     deps.Engine,
		locker:     deps.Locker,
		lockTTL:    deps.LockTTL,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func validateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	if utf8.RuneCountInString(text) > MaxMessageLen {
		return "", apperrors.NewValidationError("message too long", map[string]any{"field": "message", "max": MaxMessageLen})
	}
	return text, nil
}

// Create opens a ticket, stores the requester's message and lets the
// resolution engine answer it. The returned messages are the ones appended by
// this call, in order.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, message string) (*domain.Ticket, []domain.TicketMessage, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	message, err := validateMessage(message)
	if err != nil {
		return nil, nil, err
	}

	ticket := &domain.Ticket{
		OrganizationID: actor.OrganizationID,
		CreatedBy:      actor.UserID,
		CreatedByName:  actor.Name,
		Message:        message,
		Status:         domain.TicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	userMsg, err := s.appendMessage(ctx, actor, ticket, domain.SenderUser, message, nil)
	if err != nil {
		return nil, nil, err
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload: events.TicketCreatedPayload{
			CreatedBy: actor.UserID,
			Preview:   textnorm.Preview(message, previewLen),
		},
	})

	appended := []domain.TicketMessage{*userMsg}
	stale := false
	err = withTicketLock(ctx, s.locker, s.lockTTL, s.logger, ticket.ID, func(ctx context.Context) error {
		articles, engine, err := s.engineFor(ctx, ticket.OrganizationID)
		if err != nil {
			return err
		}
		decision := engine.Resolve(ctx, ticket.OrganizationID, message, articles)
		aiMsg, err := s.applyDecision(ctx, ticket, decision)
		if errors.Is(err, errStaleDecision) {
			stale = true
			return nil
		}
		if err != nil {
			return err
		}
		appended = append(appended, *aiMsg)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if stale {
		if ticket, err = loadTicket(ctx, s.tickets, actor.OrganizationID, ticket.ID); err != nil {
			return nil, nil, err
		}
	}
	return ticket, appended, nil
}

// PostMessage appends a message to the ticket thread. The sender is derived
// from the actor: employees post as the requester on their own tickets, staff
// post as admin. Requester replies on tickets the engine is still driving are
// answered by the engine.
func (s *TicketService) PostMessage(ctx context.Context, actor domain.Actor, ticketID, text string) (*domain.Ticket, []domain.TicketMessage, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	text, err := validateMessage(text)
	if err != nil {
		return nil, nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return nil, nil, err
	}
	sender := domain.SenderAdmin
	if !actor.IsStaff() {
		if ticket.CreatedBy != actor.UserID {
			return nil, nil, apperrors.NewForbidden("ticket belongs to another requester")
		}
		sender = domain.SenderUser
	}

	var appended []domain.TicketMessage
	stale := false
	err = withTicketLock(ctx, s.locker, s.lockTTL, s.logger, ticket.ID, func(ctx context.Context) error {
		current, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
		if err != nil {
			return err
		}
		ticket = current
		msg, err := s.appendMessage(ctx, actor, ticket, sender, text, nil)
		if err != nil {
			return err
		}
		appended = append(appended, *msg)
		if sender != domain.SenderUser {
			return nil
		}

		articles, engine, err := s.engineFor(ctx, ticket.OrganizationID)
		if err != nil {
			return err
		}
		decision, err := engine.Continue(ctx, ticket, text, articles)
		if errors.Is(err, resolution.ErrNotEngaged) {
			return nil
		}
		if err != nil {
			return apperrors.MapError(err)
		}
		aiMsg, err := s.applyDecision(ctx, ticket, decision)
		if errors.Is(err, errStaleDecision) {
			stale = true
			return nil
		}
		if err != nil {
			return err
		}
		appended = append(appended, *aiMsg)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if stale {
		if ticket, err = loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID); err != nil {
			return nil, nil, err
		}
	}
	return ticket, appended, nil
}

// MarkRead flags the messages the actor's side has now seen: requesters read
// ai and admin messages, staff read requester messages.
func (s *TicketService) MarkRead(ctx context.Context, actor domain.Actor, ticketID string) (int64, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return 0, err
	}
	senders := []domain.MessageSender{domain.SenderUser}
	if !actor.IsStaff() {
		if ticket.CreatedBy != actor.UserID {
			return 0, apperrors.NewForbidden("ticket belongs to another requester")
		}
		senders = []domain.MessageSender{domain.SenderAI, domain.SenderAdmin}
	}
	n, err := s.messages.MarkRead(ctx, ticket.ID, senders)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return n, nil
}

// UpdateStatus moves a ticket to a new status on behalf of staff.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return nil, err
	}

	err = withTicketLock(ctx, s.locker, s.lockTTL, s.logger, ticket.ID, func(ctx context.Context) error {
		current, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
		if err != nil {
			return err
		}
		ticket = current
		if !newStatus.Valid() || !isValidTransition(ticket.Status, newStatus) {
			return apperrors.NewInvalidTransition(string(ticket.Status), string(newStatus))
		}

		oldStatus := ticket.Status
		newlyEscalated := newStatus == domain.TicketStatusEscalated && !ticket.Escalated
		ticket.Status = newStatus
		if newStatus == domain.TicketStatusEscalated {
			ticket.Escalated = true
		}
		// A human took over; the automated dialog ends.
		ticket.Guided = nil
		if newStatus == domain.TicketStatusResolved || newStatus == domain.TicketStatusClosed {
			if ticket.ResolvedAt == nil {
				now := s.now()
				ticket.ResolvedAt = &now
			}
		} else {
			ticket.ResolvedAt = nil
		}
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return mapTicketWrite(err, ticket.ID)
		}
		actorID := actor.UserID
		if err := s.recordStatusChange(ctx, ticket, domain.SenderAdmin, &actorID, oldStatus, newStatus, ""); err != nil {
			return apperrors.MapError(err)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketStatusChanged,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          eventActor(actor),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: newStatus,
				Escalated: ticket.Escalated,
			},
		})
		if newlyEscalated {
			publishEvent(ctx, s.dispatcher, s.logger, events.Event{
				Type:           events.EventTicketEscalated,
				OrganizationID: ticket.OrganizationID,
				TicketID:       ticket.ID,
				Actor:          eventActor(actor),
				Payload:        events.TicketResolutionPayload{Mode: ticket.AIMode, Reason: "staff"},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Get returns a ticket and its thread in arrival order.
func (s *TicketService) Get(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsStaff() && ticket.CreatedBy != actor.UserID {
		return nil, nil, apperrors.NewForbidden("ticket belongs to another requester")
	}
	msgs, err := s.messages.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return ticket, msgs, nil
}

// List returns tickets visible to the actor. Requesters only see their own.
func (s *TicketService) List(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	repoFilter := repository.TicketFilter{
		OrganizationID: actor.OrganizationID,
		Statuses:       filter.Statuses,
		Escalated:      filter.Escalated,
		AssignedTo:     filter.AssignedTo,
		UpdatedSince:   filter.UpdatedSince,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	}
	if !actor.IsStaff() {
		createdBy := actor.UserID
		repoFilter.CreatedBy = &createdBy
		repoFilter.AssignedTo = nil
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// History returns the audit trail of a ticket for staff.
func (s *TicketService) History(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticket.OrganizationID, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TicketService) engineFor(ctx context.Context, orgID string) ([]domain.KnowledgeArticle, *resolution.Engine, error) {
	articles, err := s.knowledge.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	engine := s.engine
	if s.settings != nil {
		settings, err := s.settings.Get(ctx, orgID)
		if err != nil {
			s.logger.Warn("org settings unavailable, using defaults", zap.String("organization_id", orgID), zap.Error(err))
		} else if settings != nil {
			engine = engine.WithConfig(engine.Config().WithOverrides(settings))
		}
	}
	return articles, engine, nil
}

// applyDecision stores the engine's reply and moves the ticket accordingly.
// It returns errStaleDecision, and writes nothing, when the ticket changed
// after the engine read it or the ticket lease was lost.
func (s *TicketService) applyDecision(ctx context.Context, ticket *domain.Ticket, d resolution.Decision) (*domain.TicketMessage, error) {
	if err := ctx.Err(); err != nil {
		s.logger.Warn("engine decision dropped",
			zap.String("ticket_id", ticket.ID),
			zap.String("decision", string(d.Status)),
			zap.Error(context.Cause(ctx)))
		return nil, errStaleDecision
	}
	oldStatus := ticket.Status
	wasEscalated := ticket.Escalated

	if d.Status != oldStatus && !isValidTransition(oldStatus, d.Status) {
		s.logger.Error("engine produced disallowed transition",
			zap.String("ticket_id", ticket.ID),
			zap.String("from", string(oldStatus)),
			zap.String("to", string(d.Status)))
		return nil, apperrors.NewInvalidTransition(string(oldStatus), string(d.Status))
	}

	ticket.Status = d.Status
	ticket.AIMode = d.Mode
	ticket.Confidence = d.Confidence
	if d.Mode == domain.AIModeGuided {
		ticket.Confidence = nil
	}
	if d.Escalated || d.Status == domain.TicketStatusEscalated {
		ticket.Escalated = true
	}
	if d.Category != nil {
		ticket.Category = d.Category
	}
	if d.Summary != nil {
		ticket.Summary = d.Summary
	}
	if d.Status == domain.TicketStatusInProgress && d.Mode == domain.AIModeGuided {
		ticket.Guided = d.Guided
	} else {
		ticket.Guided = nil
	}
	if d.Status.Terminal() && ticket.ResolvedAt == nil {
		now := s.now()
		ticket.ResolvedAt = &now
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrStaleTicket) {
			s.logger.Warn("engine decision dropped, ticket changed meanwhile",
				zap.String("ticket_id", ticket.ID),
				zap.String("decision", string(d.Status)))
			return nil, errStaleDecision
		}
		return nil, apperrors.MapError(err)
	}

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		Sender:     domain.SenderAI,
		SenderName: aiSenderName,
		SenderRole: string(domain.SenderAI),
		Body:       d.Reply,
		Options:    d.Options,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishMessageAdded(ctx, ticket, msg, aiActor())

	if oldStatus != ticket.Status {
		if err := s.recordStatusChange(ctx, ticket, domain.SenderAI, nil, oldStatus, ticket.Status, d.Reason); err != nil {
			return nil, apperrors.MapError(err)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketStatusChanged,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          aiActor(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: oldStatus,
				NewStatus: ticket.Status,
				Escalated: ticket.Escalated,
			},
		})
	}

	resolutionPayload := events.TicketResolutionPayload{
		Mode:       d.Mode,
		Confidence: d.Confidence,
		ArticleID:  d.ArticleID,
		Reason:     d.Reason,
	}
	if ticket.Escalated && !wasEscalated {
		if err := s.recordChange(ctx, ticket, domain.ChangeTypeEscalation,
			map[string]any{"escalated": false},
			map[string]any{"escalated": true, "reason": d.Reason, "category": ticket.Category}); err != nil {
			return nil, apperrors.MapError(err)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketEscalated,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          aiActor(),
			Payload:        resolutionPayload,
		})
	}
	if ticket.Status == domain.TicketStatusAutoResolved && oldStatus != ticket.Status {
		if err := s.recordChange(ctx, ticket, domain.ChangeTypeResolution,
			map[string]any{"status": oldStatus},
			map[string]any{"mode": d.Mode, "confidence": d.Confidence, "article_id": d.ArticleID}); err != nil {
			return nil, apperrors.MapError(err)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketAutoResolved,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          aiActor(),
			Payload:        resolutionPayload,
		})
	}

	s.logger.Info("ticket decision applied",
		zap.String("ticket_id", ticket.ID),
		zap.String("organization_id", ticket.OrganizationID),
		zap.String("decision", string(ticket.Status)),
		zap.String("reason", d.Reason))
	return msg, nil
}

func (s *TicketService) appendMessage(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, sender domain.MessageSender, body string, options []domain.DialogOption) (*domain.TicketMessage, error) {
	senderID := actor.UserID
	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		Sender:     sender,
		SenderID:   &senderID,
		SenderName: actor.Name,
		SenderRole: string(actor.Role),
		Body:       body,
		Options:    options,
	}
	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishMessageAdded(ctx, ticket, msg, eventActor(actor))
	return msg, nil
}

func (s *TicketService) publishMessageAdded(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage, actor events.Actor) {
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:           events.EventTicketMessageAdded,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          actor,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			Seq:         msg.Seq,
			Sender:      msg.Sender,
			SenderID:    msg.SenderID,
			BodyPreview: textnorm.Preview(msg.Body, previewLen),
		},
	})
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen: {
		domain.TicketStatusInProgress, domain.TicketStatusEscalated, domain.TicketStatusResolved,
		domain.TicketStatusClosed, domain.TicketStatusAutoResolved,
	},
	domain.TicketStatusInProgress: {domain.TicketStatusEscalated, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusEscalated:  {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusAutoResolved: {
		domain.TicketStatusEscalated, domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed,
	},
	domain.TicketStatusResolved: {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:   {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s *TicketService) recordStatusChange(ctx context.Context, ticket *domain.Ticket, actorType domain.MessageSender, actorID *string, oldStatus, newStatus domain.TicketStatus, reason string) error {
	if s.history == nil {
		return nil
	}
	newValue := map[string]any{"status": newStatus}
	if reason != "" {
		newValue["reason"] = reason
	}
	return s.history.Append(ctx, &domain.TicketHistory{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ChangedByType:  actorType,
		ChangedByID:    actorID,
		ChangeType:     domain.ChangeTypeStatus,
		OldValue:       map[string]any{"status": oldStatus},
		NewValue:       newValue,
	})
}

func (s *TicketService) recordChange(ctx context.Context, ticket *domain.Ticket, changeType domain.TicketChangeType, oldValue, newValue map[string]any) error {
	if s.history == nil {
		return nil
	}
	return s.history.Append(ctx, &domain.TicketHistory{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ChangedByType:  domain.SenderAI,
		ChangeType:     changeType,
		OldValue:       oldValue,
		NewValue:       newValue,
	})
}
