package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
	"alfredoptarigan/assessment-recommender/internal/services"
)

const jobDescriptionField = "job_description"

type UploadHandler struct {
	recommender services.QueryRunner
	uploads     services.UploadStore
	pdfParser   services.PDFParserService
	log         *zap.Logger
}

func NewUploadHandler(
	recommender services.QueryRunner,
	uploads services.UploadStore,
	pdfParser services.PDFParserService,
	log *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		recommender: recommender,
		uploads:     uploads,
		pdfParser:   pdfParser,
		log:         logger.OrNop(log),
	}
}

// HandleUpload handles POST /recommend/upload. The PDF is parsed into query text, used once,
// and removed.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile(jobDescriptionField)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("missing '%s' PDF file", jobDescriptionField),
		})
	}

	stored, err := h.uploads.SaveJobDescription(file)
	switch {
	case errors.Is(err, services.ErrUnsupportedUpload), errors.Is(err, services.ErrUploadTooLarge):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.log.Error("failed to stage job description", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store job description",
		})
	}
	defer func() {
		if err := h.uploads.Remove(stored.Name); err != nil {
			h.log.Warn("failed to remove uploaded file", zap.String("file", stored.Name), zap.Error(err))
		}
	}()

	jd, err := h.pdfParser.ExtractJobDescription(stored.Path)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": fmt.Sprintf("failed to read job description: %v", err),
		})
	}

	h.log.Info("job description parsed",
		zap.String("original_name", file.Filename),
		zap.Int("pages", jd.PageCount),
		zap.Bool("truncated", jd.Truncated))

	return respondWithRecommendation(c, h.recommender, jd.Text, h.log)
}
