package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"uplinex/models"
	"uplinex/utils"
)

var validate = validator.New()

type EmailController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Mailer  utils.MailService
	Tracker *utils.LinkTracker
}

func NewEmailController(db *gorm.DB, logger *log.Logger, mailer utils.MailService, tracker *utils.LinkTracker) *EmailController {
	return &EmailController{
		DB:      db,
		Logger:  logger,
		Mailer:  mailer,
		Tracker: tracker,
	}
}

// SendEmail sends a single tracked email to one contact
func (ec *EmailController) SendEmail(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		ContactID   uint   `json:"contact_id" validate:"required"`
		Subject     string `json:"subject" validate:"required"`
		HTMLContent string `json:"html_content" validate:"required"`
		TextContent string `json:"text_content"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var contact models.Contact
	if err := ec.DB.Where("id = ? AND user_id = ?", input.ContactID, user.ID).First(&contact).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}
	if contact.IsUnsubscribed || contact.IsDoNotContact {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Contact has opted out of emails",
		})
	}

	// Create the row first; link wrapping needs the email id.
	email := models.SentEmail{
		UserID:      user.ID,
		ContactID:   &contact.ID,
		Subject:     input.Subject,
		HTMLContent: input.HTMLContent,
		TextContent: input.TextContent,
		Status:      "pending",
	}
	if err := ec.DB.Create(&email).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create email record",
		})
	}

	tracked := ec.Tracker.WrapEmailLinks(email.HTMLContent, email.TextContent,
		fmt.Sprint(email.ID), fmt.Sprint(contact.ID))

	updates := map[string]interface{}{
		"html_content":  tracked.HTML,
		"text_content":  tracked.Text,
		"total_links":   tracked.TotalLinks,
		"wrapped_links": tracked.WrappedLinks,
	}

	result, sendErr := ec.Mailer.Send(contact.Email, email.Subject, tracked.HTML, tracked.Text)
	if sendErr != nil {
		updates["status"] = "failed"
		if err := ec.DB.Model(&email).Updates(updates).Error; err != nil {
			ec.Logger.Printf("Failed to mark email %d failed: %v", email.ID, err)
		}
		utils.LogError("email_send_failed", sendErr, map[string]interface{}{
			"email_id":   email.ID,
			"contact_id": contact.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to send email",
		})
	}

	updates["status"] = "sent"
	updates["message_id"] = result.MessageID
	updates["sent_at"] = time.Now()
	if err := ec.DB.Model(&email).Updates(updates).Error; err != nil {
		ec.Logger.Printf("Failed to update email %d after send: %v", email.ID, err)
	}

	activity := models.MemberActivity{
		UserID:       user.ID,
		ContactID:    &contact.ID,
		EmailID:      utils.Pointer(email.ID),
		ActivityType: "email_sent",
		ActivityAt:   time.Now(),
	}
	if err := ec.DB.Create(&activity).Error; err != nil {
		ec.Logger.Printf("Failed to log send activity for email %d: %v", email.ID, err)
	}

	return c.JSON(fiber.Map{
		"message":       "Email sent successfully",
		"email_id":      email.ID,
		"message_id":    result.MessageID,
		"total_links":   tracked.TotalLinks,
		"wrapped_links": tracked.WrappedLinks,
	})
}

// GetEmail returns one sent email owned by the caller
func (ec *EmailController) GetEmail(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var email models.SentEmail
	if err := ec.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&email).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email not found",
		})
	}
	return c.JSON(email)
}

// GetEmailStats returns click statistics for one sent email
func (ec *EmailController) GetEmailStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var email models.SentEmail
	if err := ec.DB.Where("id = ? AND user_id = ?", c.Params("id"), user.ID).First(&email).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email not found",
		})
	}

	var clicks []models.EmailClick
	if err := ec.DB.Where("email_id = ?", email.ID).Order("clicked_at DESC").Limit(50).Find(&clicks).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch click events",
		})
	}

	return c.JSON(fiber.Map{
		"email_id":      email.ID,
		"total_clicks":  email.TotalClicks,
		"unique_clicks": email.UniqueClicks,
		"clicked_at":    email.ClickedAt,
		"total_links":   email.TotalLinks,
		"wrapped_links": email.WrappedLinks,
		"recent_clicks": clicks,
	})
}
