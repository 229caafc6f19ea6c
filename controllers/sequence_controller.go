package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"cadence/models"
	"cadence/repository"
	"cadence/sequence"
	"cadence/utils"
)

type SequenceController struct {
	DB     *gorm.DB
	Engine *sequence.Engine
	Logger *logrus.Logger
}

func NewSequenceController(db *gorm.DB, engine *sequence.Engine, logger *logrus.Logger) *SequenceController {
	return &SequenceController{
		DB:     db,
		Engine: engine,
		Logger: logger,
	}
}

// EnrollContact enrolls a contact into a sequence, creating or updating the
// contact record along the way.
func (sc *SequenceController) EnrollContact(c *fiber.Ctx) error {
	var input struct {
		Email        string `json:"email" validate:"required,email"`
		FirstName    string `json:"first_name" validate:"omitempty,max=100"`
		LastName     string `json:"last_name" validate:"omitempty,max=100"`
		Organization string `json:"organization" validate:"omitempty,max=200"`
		Position     string `json:"position" validate:"omitempty,max=200"`
		SequenceID   uint   `json:"sequence_id" validate:"required"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	contact := &models.Contact{
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Organization: input.Organization,
		Position:     input.Position,
		Source:       "api",
	}

	state, err := sc.Engine.Enroll(c.UserContext(), contact, input.SequenceID)
	switch {
	case errors.Is(err, sequence.ErrSuppressed):
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Address is suppressed", nil)
	case errors.Is(err, sequence.ErrAlreadyEnrolled):
		return utils.ErrorResponse(c, fiber.StatusConflict, "Contact already has an active sequence", nil)
	case errors.Is(err, repository.ErrNotFound):
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
	case err != nil:
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enroll contact", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(state))
}

// RunOrchestrator triggers one orchestration pass and returns its summary.
// The same pass the background worker runs, exposed for operators.
func (sc *SequenceController) RunOrchestrator(c *fiber.Ctx) error {
	summary, err := sc.Engine.ProcessDueSequences(c.UserContext())
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Orchestration pass failed", err)
	}
	return c.JSON(utils.SuccessResponse(summary))
}

// GetContactState returns the sequence state for a contact address.
func (sc *SequenceController) GetContactState(c *fiber.Ctx) error {
	email := c.Params("email")

	state, err := sc.Engine.GetStateByEmail(c.UserContext(), email)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "No sequence state for this address", nil)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sequence state", err)
	}
	return c.JSON(utils.SuccessResponse(state))
}

// ListSequences returns all sequence definitions with their steps.
func (sc *SequenceController) ListSequences(c *fiber.Ctx) error {
	var sequences []models.Sequence
	if err := sc.DB.Preload("Steps").Find(&sequences).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list sequences", err)
	}
	return c.JSON(utils.SuccessResponse(sequences))
}

// GetSequence returns one sequence definition with its steps.
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	id := utils.ParseUint(c.Params("id"))

	var seq models.Sequence
	if err := sc.DB.Preload("Steps").First(&seq, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load sequence", err)
	}
	return c.JSON(utils.SuccessResponse(seq))
}
