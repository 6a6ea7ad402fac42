package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/vicmordi/AIHelpdesk/internal/api/dto"
	"github.com/vicmordi/AIHelpdesk/internal/service"
)

// KnowledgeHandler serves knowledge base articles.
type KnowledgeHandler struct {
	service *service.KnowledgeService
}

// NewKnowledgeHandler constructs handler.
func NewKnowledgeHandler(knowledgeService *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{service: knowledgeService}
}

// List GET /knowledge.
func (h *KnowledgeHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	articles, err := h.service.List(c.UserContext(), actor)
	if err != nil {
		return err
	}
	items := make([]dto.ArticleResponse, 0, len(articles))
	for i := range articles {
		items = append(items, dto.NewArticleResponse(&articles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /knowledge/:id.
func (h *KnowledgeHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	article, err := h.service.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Create POST /knowledge.
func (h *KnowledgeHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ArticleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	article, err := h.service.Create(c.UserContext(), actor, articleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Update PUT /knowledge/:id.
func (h *KnowledgeHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ArticleRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	article, err := h.service.Update(c.UserContext(), actor, c.Params("id"), articleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewArticleResponse(article)})
}

// Delete DELETE /knowledge/:id.
func (h *KnowledgeHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func articleInput(req dto.ArticleRequest) service.ArticleInput {
	return service.ArticleInput{
		Title:    req.Title,
		Content:  req.Content,
		Category: req.Category,
		Tags:     req.Tags,
	}
}
