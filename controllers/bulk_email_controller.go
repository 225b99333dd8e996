package controller

import (
	"github.com/gofiber/fiber/v2"

	"uplinex/models"
	"uplinex/utils"
)

type bulkSendInput struct {
	ContactIDs         []uint            `json:"contact_ids" validate:"required,min=1"`
	TemplateID         *uint             `json:"template_id"`
	PersonalTemplateID *uint             `json:"personal_template_id"`
	CustomVariables    map[string]string `json:"custom_variables"`
}

// SubmitBulkEmail creates a pending fan-out job and returns its id
// immediately. The bulk email worker picks the job up; callers poll
// GetBulkEmailJob until the status turns terminal.
func (ec *EmailController) SubmitBulkEmail(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input bulkSendInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(input.ContactIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "contact_ids must not be empty",
		})
	}
	if (input.TemplateID == nil) == (input.PersonalTemplateID == nil) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "exactly one of template_id or personal_template_id is required",
		})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	job := models.BulkEmailJob{
		UserID:             user.ID,
		ContactIDs:         input.ContactIDs,
		TemplateID:         input.TemplateID,
		PersonalTemplateID: input.PersonalTemplateID,
		CustomVariables:    input.CustomVariables,
		Status:             models.BulkJobPending,
		TotalCount:         len(input.ContactIDs),
	}

	if err := ec.DB.Create(&job).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create bulk email job",
		})
	}

	utils.LogEvent("bulk_email_submitted", map[string]interface{}{
		"job_id":        job.ID,
		"user_id":       user.ID,
		"contact_count": len(input.ContactIDs),
	})

	return c.JSON(fiber.Map{
		"job_id": job.ID,
	})
}

// GetBulkEmailJob returns the current state of a bulk job owned by the caller
func (ec *EmailController) GetBulkEmailJob(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	jobID := c.Query("job_id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "job_id is required",
		})
	}

	var job models.BulkEmailJob
	if err := ec.DB.Where("id = ? AND user_id = ?", utils.ParseUint(jobID), user.ID).First(&job).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}

	return c.JSON(job)
}
