package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/events"
	"github.com/vicmordi/AIHelpdesk/internal/lock"
	"github.com/vicmordi/AIHelpdesk/internal/repository"
	apperrors "github.com/vicmordi/AIHelpdesk/pkg/util/errorutil"
)

const (
	defaultTicketLockTTL = 30 * time.Second
	previewLen           = 140
	aiSenderName         = "AI Assistant"
)

// ResolvedCounter counts handled tickets since the last knowledge analysis.
type ResolvedCounter interface {
	IncrResolved(ctx context.Context, orgID string) (int64, error)
	ResetResolved(ctx context.Context, orgID string) error
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := dispatcher.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event dispatch failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.String("organization_id", event.OrganizationID),
			zap.Error(err))
	}
}

func eventActor(actor domain.Actor) events.Actor {
	id := actor.UserID
	sender := domain.SenderUser
	if actor.IsStaff() {
		sender = domain.SenderAdmin
	}
	return events.Actor{Type: sender, UserID: &id, Role: actor.Role}
}

func aiActor() events.Actor {
	return events.Actor{Type: domain.SenderAI}
}

func requireActor(actor domain.Actor) error {
	if actor.UserID == "" || actor.OrganizationID == "" {
		return apperrors.NewUnauthorized("authentication required")
	}
	return nil
}

func requireStaff(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsStaff() {
		return apperrors.NewForbidden("staff role required")
	}
	return nil
}

func requireSuperAdmin(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role != domain.RoleSuperAdmin {
		return apperrors.NewForbidden("super admin role required")
	}
	return nil
}

func loadTicket(ctx context.Context, tickets repository.TicketRepository, orgID, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, orgID, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !ticket.BelongsTo(orgID) {
		return nil, apperrors.NewCrossTenant("ticket", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// withTicketLock runs fn while holding the ticket's lock. The lease is renewed
// until fn returns; the context handed to fn is cancelled if it is lost anyway.
// A nil locker runs fn directly.
func withTicketLock(ctx context.Context, locker lock.Locker, ttl time.Duration, logger *zap.Logger, ticketID string, fn func(ctx context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	if ttl <= 0 {
		ttl = defaultTicketLockTTL
	}
	lease, err := locker.Acquire(ctx, lock.TicketKey(ticketID), ttl)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return apperrors.NewConflict("ticket is being updated", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	held, stop := lock.KeepAlive(ctx, lease, ttl)
	defer func() {
		stop()
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ticket lock release failed", zap.String("ticket_id", ticketID), zap.Error(err))
		}
	}()

	err = fn(held)
	if err != nil && errors.Is(context.Cause(held), lock.ErrLeaseLost) {
		logger.Warn("ticket lock lost mid-update", zap.String("ticket_id", ticketID), zap.Error(err))
		return apperrors.NewConflict("ticket is being updated", map[string]any{"ticket_id": ticketID})
	}
	return err
}

// mapTicketWrite reports a lost optimistic update as a conflict.
func mapTicketWrite(err error, ticketID string) error {
	if errors.Is(err, repository.ErrStaleTicket) {
		return apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticketID})
	}
	return apperrors.MapError(err)
}
