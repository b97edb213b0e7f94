package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/assessment-recommender/internal/models"
	"alfredoptarigan/assessment-recommender/internal/services"
)

// CatalogInfo is the static part of the catalog stats response.
type CatalogInfo struct {
	Backend             string
	EmbeddingModel      string
	EmbeddingDimension  int
	SimilarityThreshold float64
	FallbackThreshold   float64
	SelectionPolicy     string
}

type CatalogHandler struct {
	index services.CatalogIndex
	info  CatalogInfo
}

func NewCatalogHandler(index services.CatalogIndex, info CatalogInfo) *CatalogHandler {
	return &CatalogHandler{index: index, info: info}
}

// HandleStats handles GET /catalog/stats
func (h *CatalogHandler) HandleStats(c *fiber.Ctx) error {
	count, err := h.index.Count(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "assessment catalog is unavailable")
	}

	return c.JSON(models.CatalogStatsResponse{
		Backend:             h.info.Backend,
		Collection:          h.index.Name(),
		Count:               count,
		EmbeddingModel:      h.info.EmbeddingModel,
		EmbeddingDimension:  h.info.EmbeddingDimension,
		SimilarityThreshold: h.info.SimilarityThreshold,
		FallbackThreshold:   h.info.FallbackThreshold,
		SelectionPolicy:     h.info.SelectionPolicy,
	})
}

// HandleHealth handles GET /health
func (h *CatalogHandler) HandleHealth(c *fiber.Ctx) error {
	count, err := h.index.Count(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
			"time":   time.Now(),
		})
	}

	return c.JSON(fiber.Map{
		"status":        "healthy",
		"indexed_items": count,
		"time":          time.Now(),
	})
}
