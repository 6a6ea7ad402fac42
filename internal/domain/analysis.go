package domain

import "time"

// AnalysisState tracks per-organization knowledge analysis bookkeeping.
type AnalysisState struct {
	OrganizationID          string
	LastRunAt               *time.Time
	RecurringIssuesDetected int
	ResolvedCountAtLastRun  int
	LastRunNewDrafts        []string
	LastRunRejected         []string
	LastRunCovered          []string
	LastRunApproved         []string
	LastRunSkippedTickets   []string
	UpdatedAt               time.Time
}

// OrgSettings holds per-organization threshold overrides.
type OrgSettings struct {
	OrganizationID       string
	AutoResolveThreshold *float64
	MatchThreshold       *float64
	MinClusterSize       *int
	SimilarityThreshold  *float64
}
