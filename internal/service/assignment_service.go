package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	tickets     repository.TicketRepository
	members     repository.MemberRepository
	historyRepo repository.TicketHistoryRepository
	locker      lock.Locker
	lockTTL     time.Duration
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	MemberRepo  repository.MemberRepository
	HistoryRepo repository.TicketHistoryRepository
	Locker      lock.Locker
	LockTTL     time.Duration
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:     deps.TicketRepo,
		members:     deps.MemberRepo,
		historyRepo: deps.HistoryRepo,
		locker:      deps.Locker,
		lockTTL:     deps.LockTTL,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
	}
}

// Assign sets or clears the ticket's assignee. The assignee must be an active
// staff member of the ticket's organization; nil unassigns.
func (s *AssignmentService) Assign(ctx context.Context, actor domain.Actor, ticketID string, assigneeID *string) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	ticket, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil {
		if err := s.checkAssignee(ctx, ticket.OrganizationID, *assigneeID); err != nil {
			return nil, err
		}
	}

	err = withTicketLock(ctx, s.locker, s.lockTTL, s.logger, ticket.ID, func(ctx context.Context) error {
		current, err := loadTicket(ctx, s.tickets, actor.OrganizationID, ticketID)
		if err != nil {
			return err
		}
		ticket = current
		oldAssignee := ticket.AssignedTo
		if sameAssignee(oldAssignee, assigneeID) {
			return nil
		}
		ticket.AssignedTo = assigneeID
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return mapTicketWrite(err, ticket.ID)
		}
		if err := s.recordAssigneeChange(ctx, actor.UserID, ticket, oldAssignee, assigneeID); err != nil {
			return apperrors.MapError(err)
		}
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:           events.EventTicketAssigned,
			OrganizationID: ticket.OrganizationID,
			TicketID:       ticket.ID,
			Actor:          eventActor(actor),
			Payload: events.TicketAssignedPayload{
				PreviousAssignee: oldAssignee,
				Assignee:         assigneeID,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *AssignmentService) checkAssignee(ctx context.Context, orgID, userID string) error {
	member, err := s.members.Get(ctx, orgID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		others, err := s.members.ListByUser(ctx, userID)
		if err != nil {
			return apperrors.MapError(err)
		}
		if len(others) > 0 {
			return apperrors.NewCrossTenant("assignee", map[string]any{"assignee_id": userID})
		}
		return apperrors.NewValidationError("assignee is not a member of the organization", map[string]any{"assignee_id": userID})
	}
	if err != nil {
		return apperrors.MapError(err)
	}
	if !member.Active || !member.Role.IsStaff() {
		return apperrors.NewValidationError("assignee must be an active staff member", map[string]any{"assignee_id": userID})
	}
	return nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *AssignmentService) recordAssigneeChange(ctx context.Context, actorID string, ticket *domain.Ticket, oldAssignee, newAssignee *string) error {
	if s.historyRepo == nil {
		return nil
	}
	return s.historyRepo.Append(ctx, &domain.TicketHistory{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ChangedByType:  domain.SenderAdmin,
		ChangedByID:    &actorID,
		ChangeType:     domain.ChangeTypeAssignee,
		OldValue:       map[string]any{"assigned_to": oldAssignee},
		NewValue:       map[string]any{"assigned_to": newAssignee},
	})
}
