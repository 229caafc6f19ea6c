package controller

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cadence/models"
	"cadence/suppression"
	"cadence/utils"
)

// validReasons are the suppression reasons accepted from operators.
var validReasons = map[string]bool{
	models.SuppressionReasonComplaint:     true,
	models.SuppressionReasonUnsubscribe:   true,
	models.SuppressionReasonNotInterested: true,
	models.SuppressionReasonNegative:      true,
	models.SuppressionReasonHardBounce:    true,
	models.SuppressionReasonDeparted:      true,
	models.SuppressionReasonManual:        true,
}

type SuppressionController struct {
	DB       *gorm.DB
	Registry *suppression.Registry
	Logger   *logrus.Logger
}

func NewSuppressionController(db *gorm.DB, registry *suppression.Registry, logger *logrus.Logger) *SuppressionController {
	return &SuppressionController{
		DB:       db,
		Registry: registry,
		Logger:   logger,
	}
}

// CheckSuppression reports whether an address is currently suppressed and
// returns the entry when one exists.
func (spc *SuppressionController) CheckSuppression(c *fiber.Ctx) error {
	email := models.NormalizeEmail(c.Params("email"))

	var entry models.SuppressionEntry
	err := spc.DB.Where("email = ?", email).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(utils.SuccessResponse(fiber.Map{"email": email, "suppressed": false}))
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to check suppression", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"email":      email,
		"suppressed": entry.IsActive(),
		"entry":      entry,
	}))
}

// AddSuppression records a manual suppression and halts any active sequence
// for the address.
func (spc *SuppressionController) AddSuppression(c *fiber.Ctx) error {
	var input struct {
		Email  string `json:"email" validate:"required,email"`
		Reason string `json:"reason" validate:"required"`
		Notes  string `json:"notes" validate:"omitempty,max=1000"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if !validReasons[input.Reason] {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Unknown suppression reason", nil)
	}

	added, err := spc.Registry.Add(c.UserContext(), input.Email, input.Reason, models.SuppressionSourceManual)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to add suppression", err)
	}

	if added && input.Notes != "" {
		if err := spc.DB.Model(&models.SuppressionEntry{}).
			Where("email = ?", models.NormalizeEmail(input.Email)).
			Update("notes", input.Notes).Error; err != nil {
			spc.Logger.WithField("error", err).Warn("Failed to store suppression notes")
		}
	}

	status := fiber.StatusCreated
	if !added {
		status = fiber.StatusOK // already suppressed, idempotent
	}
	return c.Status(status).JSON(utils.SuccessResponse(fiber.Map{
		"email": models.NormalizeEmail(input.Email),
		"added": added,
	}))
}

// DeactivateSuppression reverses a suppression by explicit operator action.
func (spc *SuppressionController) DeactivateSuppression(c *fiber.Ctx) error {
	email := c.Params("email")

	var input struct {
		Operator string `json:"operator" validate:"required,max=200"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	err := spc.Registry.Deactivate(c.UserContext(), email, input.Operator)
	if errors.Is(err, suppression.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No active suppression for this address", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to deactivate suppression", err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"email":       models.NormalizeEmail(email),
		"deactivated": true,
	}))
}

// ListSuppressions returns suppression entries, newest first, with optional
// status filter and pagination.
func (spc *SuppressionController) ListSuppressions(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit > 200 {
		limit = 200
	}

	query := spc.DB.Model(&models.SuppressionEntry{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count suppressions", err)
	}

	var entries []models.SuppressionEntry
	if err := query.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list suppressions", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  entries,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}
