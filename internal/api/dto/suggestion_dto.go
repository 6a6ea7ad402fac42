package dto

import (
	"time"

	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// SuggestionResponse describes a drafted article.
type SuggestionResponse struct {
	ID              string                  `json:"id"`
	Title           string                  `json:"title"`
	Category        string                  `json:"category,omitempty"`
	Content         string                  `json:"content"`
	Tags            []string                `json:"tags"`
	ClusterSummary  string                  `json:"cluster_summary,omitempty"`
	Status          domain.SuggestionStatus `json:"status"`
	ConfidenceScore int                     `json:"confidence_score"`
	TicketCount     int                     `json:"ticket_count"`
	RelatedTickets  []string                `json:"related_tickets"`
	DecisionReason  *string                 `json:"decision_reason,omitempty"`
	LinkedKBID      *string                 `json:"linked_kb_id,omitempty"`
	ReviewedBy      *string                 `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time              `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

// EditSuggestionRequest patches a draft; omitted fields stay unchanged.
type EditSuggestionRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Category *string `json:"category"`
}

// RejectSuggestionRequest payload.
type RejectSuggestionRequest struct {
	Reason *string `json:"reason"`
}

// ApproveSuggestionResponse returns both sides of an approval.
type ApproveSuggestionResponse struct {
	Suggestion SuggestionResponse `json:"suggestion"`
	Article    ArticleResponse    `json:"article"`
}

// RunAnalysisRequest payload. Zero days uses the configured lookback.
type RunAnalysisRequest struct {
	Days int `json:"days"`
}

// ClusterReportResponse describes a cluster that produced no new draft.
type ClusterReportResponse struct {
	ClusterID    string   `json:"cluster_id"`
	Topic        string   `json:"topic"`
	TicketCount  int      `json:"ticket_count"`
	TicketIDs    []string `json:"ticket_ids"`
	SuggestionID string   `json:"suggestion_id,omitempty"`
	ArticleID    string   `json:"article_id,omitempty"`
	Similarity   float64  `json:"similarity,omitempty"`
}

// AnalysisResponse summarizes an analysis run.
type AnalysisResponse struct {
	RunAt              time.Time               `json:"run_at"`
	TicketsAnalyzed    int                     `json:"tickets_analyzed"`
	ClustersFound      int                     `json:"clusters_found"`
	NewDrafts          []SuggestionResponse    `json:"new_drafts"`
	PreviouslyRejected []ClusterReportResponse `json:"previously_rejected"`
	AlreadyApproved    []ClusterReportResponse `json:"already_approved"`
	ExistingDrafts     []ClusterReportResponse `json:"existing_drafts"`
	AlreadyCovered     []ClusterReportResponse `json:"already_covered"`
	SkippedTickets     []string                `json:"skipped_tickets"`
}

// AnalyticsResponse is the knowledge improvement dashboard.
type AnalyticsResponse struct {
	RecurringIssuesThisMonth int        `json:"recurring_issues_this_month"`
	PendingSuggestions       int        `json:"pending_suggestions"`
	ApprovedSuggestions      int        `json:"approved_suggestions"`
	RejectedSuggestions      int        `json:"rejected_suggestions"`
	HandledTickets           int        `json:"handled_tickets"`
	HandledSinceLastRun      int        `json:"handled_since_last_run"`
	LastRunAt                *time.Time `json:"last_run_at"`
	LastRunNewDrafts         []string   `json:"last_run_new_drafts"`
	LastRunRejected          []string   `json:"last_run_rejected"`
	LastRunApproved          []string   `json:"last_run_approved"`
	LastRunCovered           []string   `json:"last_run_covered"`
	LastRunSkippedTickets    []string   `json:"last_run_skipped_tickets"`
}

// NewSuggestionResponse maps a suggestion.
func NewSuggestionResponse(s *domain.Suggestion) SuggestionResponse {
	return SuggestionResponse{
		ID:              s.ID,
		Title:           s.Title,
		Category:        s.Category,
		Content:         s.Content,
		Tags:            nonNil(s.Tags),
		ClusterSummary:  s.ClusterSummary,
		Status:          s.Status,
		ConfidenceScore: s.ConfidenceScore,
		TicketCount:     s.TicketCount,
		RelatedTickets:  nonNil(s.RelatedTickets),
		DecisionReason:  s.DecisionReason,
		LinkedKBID:      s.LinkedKBID,
		ReviewedBy:      s.ReviewedBy,
		ReviewedAt:      s.ReviewedAt,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

// NewAnalysisResponse maps an analysis result.
func NewAnalysisResponse(r *service.AnalysisResult) AnalysisResponse {
	drafts := make([]SuggestionResponse, 0, len(r.NewDrafts))
	for i := range r.NewDrafts {
		drafts = append(drafts, NewSuggestionResponse(&r.NewDrafts[i]))
	}
	return AnalysisResponse{
		RunAt:              r.RunAt,
		TicketsAnalyzed:    r.TicketsAnalyzed,
		ClustersFound:      r.ClustersFound,
		NewDrafts:          drafts,
		PreviouslyRejected: clusterReports(r.PreviouslyRejected),
		AlreadyApproved:    clusterReports(r.AlreadyApproved),
		ExistingDrafts:     clusterReports(r.ExistingDrafts),
		AlreadyCovered:     clusterReports(r.AlreadyCovered),
		SkippedTickets:     nonNil(r.SkippedTickets),
	}
}

// NewAnalyticsResponse maps the dashboard figures.
func NewAnalyticsResponse(s *service.AnalyticsSummary) AnalyticsResponse {
	return AnalyticsResponse{
		RecurringIssuesThisMonth: s.RecurringIssuesThisMonth,
		PendingSuggestions:       s.PendingSuggestions,
		ApprovedSuggestions:      s.ApprovedSuggestions,
		RejectedSuggestions:      s.RejectedSuggestions,
		HandledTickets:           s.HandledTickets,
		HandledSinceLastRun:      s.HandledSinceLastRun,
		LastRunAt:                s.LastRunAt,
		LastRunNewDrafts:         nonNil(s.LastRunNewDrafts),
		LastRunRejected:          nonNil(s.LastRunRejected),
		LastRunApproved:          nonNil(s.LastRunApproved),
		LastRunCovered:           nonNil(s.LastRunCovered),
		LastRunSkippedTickets:    nonNil(s.LastRunSkippedTickets),
	}
}

func clusterReports(reports []service.ClusterReport) []ClusterReportResponse {
	out := make([]ClusterReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, ClusterReportResponse{
			ClusterID:    r.ClusterID,
			Topic:        r.Topic,
			TicketCount:  r.TicketCount,
			TicketIDs:    nonNil(r.TicketIDs),
			SuggestionID: r.SuggestionID,
			ArticleID:    r.ArticleID,
			Similarity:   r.Similarity,
		})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
