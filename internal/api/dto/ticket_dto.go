package dto

import (
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Message string `json:"message"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest payload. A null assignee unassigns the ticket.
type AssignRequest struct {
	AssigneeID *string `json:"assignee_id"`
}

// TicketSummary response.
type TicketSummary struct {
	ID            string              `json:"id"`
	CreatedBy     string              `json:"created_by"`
	CreatedByName string              `json:"created_by_name,omitempty"`
	Message       string              `json:"message"`
	Summary       *string             `json:"summary,omitempty"`
	Category      *string             `json:"category,omitempty"`
	Status        domain.TicketStatus `json:"status"`
	Escalated     bool                `json:"escalated"`
	AIMode        domain.AIMode       `json:"ai_mode,omitempty"`
	Confidence    *float64            `json:"confidence,omitempty"`
	AssignedTo    *string             `json:"assigned_to"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketSummary
	Messages []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents thread message.
type TicketMessageResponse struct {
	ID         string                `json:"id"`
	Seq        int64                 `json:"seq"`
	Sender     domain.MessageSender  `json:"sender"`
	SenderID   *string               `json:"sender_id,omitempty"`
	SenderName string                `json:"sender_name,omitempty"`
	Body       string                `json:"body"`
	IsRead     bool                  `json:"is_read"`
	Options    []domain.DialogOption `json:"options,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

// TicketHistoryResponse describes an audit entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByType domain.MessageSender    `json:"changed_by_type"`
	ChangedByID   *string                 `json:"changed_by_id,omitempty"`
	OldValue      map[string]any          `json:"old_value,omitempty"`
	NewValue      map[string]any          `json:"new_value,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

// TicketThreadResponse returns the ticket together with messages appended by a call.
type TicketThreadResponse struct {
	Ticket   TicketSummary           `json:"ticket"`
	Messages []TicketMessageResponse `json:"messages"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:            t.ID,
		CreatedBy:     t.CreatedBy,
		CreatedByName: t.CreatedByName,
		Message:       t.Message,
		Summary:       t.Summary,
		Category:      t.Category,
		Status:        t.Status,
		Escalated:     t.Escalated,
		AIMode:        t.AIMode,
		Confidence:    t.Confidence,
		AssignedTo:    t.AssignedTo,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		ResolvedAt:    t.ResolvedAt,
	}
}

// NewTicketMessages maps a thread.
func NewTicketMessages(msgs []domain.TicketMessage) []TicketMessageResponse {
	out := make([]TicketMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, TicketMessageResponse{
			ID:         m.ID,
			Seq:        m.Seq,
			Sender:     m.Sender,
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			Body:       m.Body,
			IsRead:     m.IsRead,
			Options:    m.Options,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out
}

// NewTicketHistory maps audit entries.
func NewTicketHistory(entries []domain.TicketHistory) []TicketHistoryResponse {
	out := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, TicketHistoryResponse{
			ID:            e.ID,
			ChangeType:    e.ChangeType,
			ChangedByType: e.ChangedByType,
			ChangedByID:   e.ChangedByID,
			OldValue:      e.OldValue,
			NewValue:      e.NewValue,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out
}
