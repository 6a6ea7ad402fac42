package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus     TicketChangeType = "status_change"
	ChangeTypeAssignee   TicketChangeType = "assignee_change"
	ChangeTypeEscalation TicketChangeType = "escalation"
	ChangeTypeResolution TicketChangeType = "ai_resolution"
)

// Valid reports whether the change type is one the audit trail records.
func (c TicketChangeType) Valid() bool {
	switch c {
	case ChangeTypeStatus, ChangeTypeAssignee, ChangeTypeEscalation, ChangeTypeResolution:
		return true
	}
	return false
}

// TicketHistory is an immutable audit trail entry.
type TicketHistory struct {
	ID             string
	TicketID       string
	OrganizationID string
	ChangedByType  MessageSender
	ChangedByID    *string
	ChangeType     TicketChangeType
	OldValue       map[string]any
	NewValue       map[string]any
	CreatedAt      time.Time
}
