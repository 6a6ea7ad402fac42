package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusInProgress   TicketStatus = "in_progress"
	TicketStatusEscalated    TicketStatus = "escalated"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
	TicketStatusAutoResolved TicketStatus = "auto_resolved"
)

// Valid reports whether the status is one of the known values.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated,
		TicketStatusResolved, TicketStatusClosed, TicketStatusAutoResolved:
		return true
	}
	return false
}

// Terminal reports whether a ticket in this status counts as handled.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed || s == TicketStatusAutoResolved
}

// AIMode records how the resolution engine handled a ticket.
type AIMode string

const (
	AIModeNone   AIMode = ""
	AIModeDirect AIMode = "direct"
	AIModeGuided AIMode = "guided"
)

// Ticket is the aggregate for support requests.
//
// Escalated is tracked independently of Status: a ticket may be in_progress
// and escalated at the same time. Confidence is set only for direct mode.
type Ticket struct {
	ID             string
	OrganizationID string
	CreatedBy      string
	CreatedByName  string
	Message        string
	Summary        *string
	Category       *string
	Status         TicketStatus
	Escalated      bool
	AIMode         AIMode
	Confidence     *float64
	AssignedTo     *string
	Guided         *GuidedState
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
	// Version increases on every update; writers must hold the version they read.
	Version int64
}

// BelongsTo reports whether the ticket is owned by the organization.
func (t *Ticket) BelongsTo(orgID string) bool {
	return t != nil && t.OrganizationID == orgID
}

// DialogOption is a quick reply offered during a guided dialog.
type DialogOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Next  string `json:"next,omitempty"`
}

// GuidedState is the persisted position of a guided dialog.
type GuidedState struct {
	ArticleID    string            `json:"article_id,omitempty"`
	StepID       string            `json:"step_id"`
	Candidates   []string          `json:"candidates,omitempty"`
	Context      map[string]string `json:"context,omitempty"`
	Options      []DialogOption    `json:"options,omitempty"`
	AwaitConfirm bool              `json:"await_confirm,omitempty"`
}
