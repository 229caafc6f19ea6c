package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"cadence/ingest"
	"cadence/utils"
)

type IngestController struct {
	Ingestor *ingest.Ingestor
	Logger   *logrus.Logger
}

func NewIngestController(ingestor *ingest.Ingestor, logger *logrus.Logger) *IngestController {
	return &IngestController{
		Ingestor: ingestor,
		Logger:   logger,
	}
}

// RunIngest triggers one ingestion pass. An optional lookback query parameter
// (Go duration, e.g. "48h") overrides the stored checkpoint for backfills.
func (ic *IngestController) RunIngest(c *fiber.Ctx) error {
	var lookback *time.Duration
	if raw := c.Query("lookback"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lookback duration", err)
		}
		lookback = &d
	}

	summary, err := ic.Ingestor.IngestReplies(c.UserContext(), lookback)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Ingestion pass failed", err)
	}
	return c.JSON(utils.SuccessResponse(summary))
}
