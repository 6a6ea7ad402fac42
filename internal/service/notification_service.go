package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// UnreadCounts is the badge count for the caller.
type UnreadCounts struct {
	Unread int    `json:"unread"`
	Scope  string `json:"scope"`
}

// Unread count scopes.
const (
	ScopeOwnTickets      = "own_tickets"
	ScopeAssignedTickets = "assigned_tickets"
	ScopeOrganization    = "organization"
)

// NotificationService reacts to domain events and answers unread queries.
type NotificationService struct {
	messages   repository.TicketMessageRepository
	counter    ResolvedCounter
	threshold  int
	onDue      func(orgID string)
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	MessageRepo repository.TicketMessageRepository
	Counter     ResolvedCounter
	// ResolvedThreshold handled tickets since the last analysis trigger OnAnalysisDue.
	ResolvedThreshold int
	OnAnalysisDue     func(orgID string)
	Logger            *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		messages:   deps.MessageRepo,
		counter:    deps.Counter,
		threshold:  deps.ResolvedThreshold,
		onDue:      deps.OnAnalysisDue,
		logger:     logger,
	}
}

// UnreadCounts counts messages the caller has not read yet. Requesters count
// assistant and staff replies on their own tickets, support admins count
// requester messages on tickets assigned to them, super admins count
// requester messages across the organization.
func (n *NotificationService) UnreadCounts(ctx context.Context, actor domain.Actor) (*UnreadCounts, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	q := repository.UnreadQuery{OrganizationID: actor.OrganizationID}
	scope := ScopeOrganization
	userID := actor.UserID
	switch actor.Role {
	case domain.RoleSuperAdmin:
		q.Senders = []domain.MessageSender{domain.SenderUser}
	case domain.RoleSupportAdmin:
		q.Senders = []domain.MessageSender{domain.SenderUser}
		q.AssignedTo = &userID
		scope = ScopeAssignedTickets
	default:
		q.Senders = []domain.MessageSender{domain.SenderAI, domain.SenderAdmin}
		q.CreatedBy = &userID
		scope = ScopeOwnTickets
	}
	count, err := n.messages.CountUnread(ctx, q)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &UnreadCounts{Unread: count, Scope: scope}, nil
}

// NotificationEventTypes lists the events HandleEvent reacts to.
var NotificationEventTypes = []events.EventType{
	events.EventTicketCreated,
	events.EventTicketStatusChanged,
	events.EventTicketEscalated,
	events.EventTicketAutoResolved,
	events.EventTicketAssigned,
	events.EventTicketMessageAdded,
	events.EventSuggestionApproved,
	events.EventSuggestionRejected,
	events.EventAnalysisCompleted,
}

// HandleEvent routes one domain event. Status changes feed the resolved
// counter; everything else is logged.
func (n *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketStatusChanged:
		return n.handleTicketStatusChanged(ctx, event)
	case events.EventTicketMessageAdded:
		return n.handleTicketMessageAdded(ctx, event)
	default:
		return n.logEvent(ctx, event)
	}
}

func (n *NotificationService) logEvent(_ context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("organization_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketMessageAdded(_ context.Context, event events.Event) error {
	n.logger.Debug(string(event.Type),
		zap.String("organization_id", event.OrganizationID),
		zap.String("ticket_id", event.TicketID),
		zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	_ = n.logEvent(ctx, event)
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || n.counter == nil {
		return nil
	}
	if !payload.NewStatus.Terminal() || payload.OldStatus.Terminal() {
		return nil
	}
	count, err := n.counter.IncrResolved(ctx, event.OrganizationID)
	if err != nil {
		return err
	}
	if n.threshold > 0 && count >= int64(n.threshold) && n.onDue != nil {
		n.logger.Info("resolved threshold reached",
			zap.String("organization_id", event.OrganizationID),
			zap.Int64("resolved_since_analysis", count))
		n.onDue(event.OrganizationID)
	}
	return nil
}
