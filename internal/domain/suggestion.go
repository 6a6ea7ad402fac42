package domain

import "time"

// SuggestionStatus enumerates review states. Approved and rejected are terminal.
type SuggestionStatus string

const (
	SuggestionStatusDraft    SuggestionStatus = "draft"
	SuggestionStatusApproved SuggestionStatus = "approved"
	SuggestionStatusRejected SuggestionStatus = "rejected"
)

// Suggestion is a drafted knowledge article derived from a recurring issue.
type Suggestion struct {
	ID              string
	OrganizationID  string
	ClusterID       string
	TopicSignature  string
	NormalizedTopic string
	Title           string
	Category        string
	Content         string
	Tags            []string
	ClusterSummary  string
	Status          SuggestionStatus
	ConfidenceScore int
	TicketCount     int
	RelatedTickets  []string
	DecisionReason  *string
	LinkedKBID      *string
	ReviewedBy      *string
	ReviewedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsDraft reports whether the suggestion can still be reviewed.
func (s *Suggestion) IsDraft() bool {
	return s.Status == SuggestionStatusDraft
}
