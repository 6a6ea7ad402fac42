package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/api/dto"
	"github.com/vicmordi/AIHelpdesk/internal/domain"
	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// SuggestionsHandler exposes knowledge improvement: analysis runs, review
// of drafted suggestions and the dashboard.
type SuggestionsHandler struct {
	review      *service.ReviewService
	improvement *service.ImprovementService
	analytics   *service.AnalyticsService
}

// NewSuggestionsHandler constructs handler.
func NewSuggestionsHandler(review *service.ReviewService, improvement *service.ImprovementService, analytics *service.AnalyticsService) *SuggestionsHandler {
	return &SuggestionsHandler{review: review, improvement: improvement, analytics: analytics}
}

// List GET /suggestions.
func (h *SuggestionsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var status *domain.SuggestionStatus
	if s := c.Query("status"); s != "" {
		st := domain.SuggestionStatus(s)
		status = &st
	}
	limit, offset := pagination(c, 50)
	items, err := h.review.List(c.UserContext(), actor, status, limit, offset)
	if err != nil {
		return err
	}
	out := make([]dto.SuggestionResponse, 0, len(items))
	for i := range items {
		out = append(out, dto.NewSuggestionResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": out})
}

// Get GET /suggestions/:id.
func (h *SuggestionsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	sg, err := h.review.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestionResponse(sg)})
}

// Edit PATCH /suggestions/:id.
func (h *SuggestionsHandler) Edit(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.EditSuggestionRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	sg, err := h.review.EditDraft(c.UserContext(), actor, c.Params("id"), service.SuggestionPatch{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestionResponse(sg)})
}

// Approve POST /suggestions/:id/approve.
func (h *SuggestionsHandler) Approve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	article, sg, err := h.review.Approve(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ApproveSuggestionResponse{
		Suggestion: dto.NewSuggestionResponse(sg),
		Article:    dto.NewArticleResponse(article),
	}})
}

// Reject POST /suggestions/:id/reject.
func (h *SuggestionsHandler) Reject(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RejectSuggestionRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	sg, err := h.review.Reject(c.UserContext(), actor, c.Params("id"), req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSuggestionResponse(sg)})
}

// RunAnalysis POST /knowledge-improvement/analyze.
func (h *SuggestionsHandler) RunAnalysis(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RunAnalysisRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	var window time.Duration
	if req.Days > 0 {
		window = time.Duration(req.Days) * 24 * time.Hour
	}
	result, err := h.improvement.RunAnalysis(c.UserContext(), actor, window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnalysisResponse(result)})
}

// Analytics GET /knowledge-improvement/analytics.
func (h *SuggestionsHandler) Analytics(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	summary, err := h.analytics.Summary(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAnalyticsResponse(summary)})
}
