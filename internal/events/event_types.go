package events

import (
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketAutoResolved  EventType = "ticket_auto_resolved"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketMessageAdded  EventType = "ticket_message_added"
	EventSuggestionApproved  EventType = "suggestion_approved"
	EventSuggestionRejected  EventType = "suggestion_rejected"
	EventAnalysisCompleted   EventType = "analysis_completed"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type   domain.MessageSender `json:"type"`
	UserID *string              `json:"user_id,omitempty"`
	Role   domain.Role          `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	OrganizationID string    `json:"organization_id"`
	TicketID       string    `json:"ticket_id,omitempty"`
	Actor          Actor     `json:"actor"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	CreatedBy string `json:"created_by"`
	Preview   string `json:"preview"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Escalated bool                `json:"escalated"`
}

// TicketResolutionPayload accompanies escalation and auto-resolution events.
type TicketResolutionPayload struct {
	Mode       domain.AIMode `json:"mode"`
	Confidence *float64      `json:"confidence,omitempty"`
	ArticleID  string        `json:"article_id,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousAssignee *string `json:"previous_assignee,omitempty"`
	Assignee         *string `json:"assignee,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string               `json:"message_id"`
	Seq         int64                `json:"seq"`
	Sender      domain.MessageSender `json:"sender"`
	SenderID    *string              `json:"sender_id,omitempty"`
	BodyPreview string               `json:"body_preview"`
}

// SuggestionReviewedPayload accompanies approve and reject events.
type SuggestionReviewedPayload struct {
	SuggestionID string  `json:"suggestion_id"`
	LinkedKBID   *string `json:"linked_kb_id,omitempty"`
	Reason       *string `json:"reason,omitempty"`
}

// AnalysisCompletedPayload summarizes a clustering run.
type AnalysisCompletedPayload struct {
	NewDrafts          int  `json:"new_drafts"`
	PreviouslyRejected int  `json:"previously_rejected"`
	AlreadyCovered     int  `json:"already_covered"`
	AlreadyApproved    int  `json:"already_approved"`
	ExistingDrafts     int  `json:"existing_drafts"`
	TicketsAnalyzed    int  `json:"tickets_analyzed"`
	Scheduled          bool `json:"scheduled"`
}
