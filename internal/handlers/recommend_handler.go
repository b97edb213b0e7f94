package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/models"
	"alfredoptarigan/assessment-recommender/internal/services"
)

type RecommendHandler struct {
	recommender services.QueryRunner
	validate    *validator.Validate
	log         *zap.Logger
}

func NewRecommendHandler(recommender services.QueryRunner, log *zap.Logger) *RecommendHandler {
	return &RecommendHandler{
		recommender: recommender,
		validate:    validator.New(),
		log:         logger.OrNop(log),
	}
}

// HandleRecommend handles POST /recommend
func (h *RecommendHandler) HandleRecommend(c *fiber.Ctx) error {
	var req models.RecommendRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	if err := h.validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "query must be between 10 and 10000 characters",
		})
	}

	return respondWithRecommendation(c, h.recommender, req.Query, h.log)
}

// respondWithRecommendation runs the pipeline and maps the outcome to a status code:
// 503 when the catalog index is down, 404 when nothing matched.
func respondWithRecommendation(c *fiber.Ctx, recommender services.QueryRunner, query string, log *zap.Logger) error {
	requestID := uuid.New().String()
	log = log.With(zap.String(logger.FieldRequestID, requestID))

	rec, err := recommender.RecommendQuery(c.UserContext(), query)
	if err != nil {
		log.Error("recommendation failed", zap.Error(err))
		if errors.Is(err, services.ErrIndexUnavailable) {
			return fiber.NewError(fiber.StatusServiceUnavailable, "assessment catalog is unavailable")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate recommendations")
	}

	if len(rec.FinalList) == 0 {
		log.Info("no matching assessments", zap.Strings("notes", rec.Diagnostics.Notes))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"id":          requestID,
			"error":       "No matching assessments found",
			"diagnostics": rec.Diagnostics,
		})
	}

	log.Info("recommendation served",
		zap.Int("assessments", len(rec.FinalList)),
		zap.Bool("fallback_query", rec.Diagnostics.UsedFallbackQuery))

	return c.JSON(models.NewRecommendResponse(requestID, rec))
}
