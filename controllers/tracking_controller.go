package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"uplinex/config"
	"uplinex/models"
	"uplinex/utils"
)

type TrackingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, logger *log.Logger) *TrackingController {
	return &TrackingController{
		DB:     db,
		Logger: logger,
	}
}

// attributionTask is one best-effort bookkeeping step after a click.
// Tasks run independently; a failure in one never blocks the rest, and
// none of them block the redirect.
type attributionTask struct {
	Name string
	Run  func() error
}

type attributionResult struct {
	Task string
	OK   bool
	Err  error
}

// HandleClickTracking converts a tracking-URL hit into a redirect to the
// original destination plus a best-effort attribution record. Only a missing
// or invalid destination is terminal; everything else degrades to "redirect
// without bookkeeping".
func (tc *TrackingController) HandleClickTracking(c *fiber.Ctx) (err error) {
	emailID := c.Params("emailID")
	destination := c.Query("url")
	linkID := c.Query("linkId")
	contactID := c.Query("contactId")

	defer func() {
		if r := recover(); r != nil {
			tc.Logger.Printf("Click tracking panic for email %s: %v", emailID, r)
			if destination != "" && utils.IsValidRedirectURL(destination, config.IsProduction()) {
				err = c.Redirect(destination, fiber.StatusFound)
			} else {
				err = c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Tracking failed",
				})
			}
		}
	}()

	if emailID == "" || destination == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing required parameters",
		})
	}

	if !utils.IsValidRedirectURL(destination, config.IsProduction()) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid redirect URL",
		})
	}

	var email models.SentEmail
	if lookupErr := tc.DB.First(&email, utils.ParseUint(emailID)).Error; lookupErr != nil {
		// The recipient still gets their link; we just lose the attribution.
		if lookupErr != gorm.ErrRecordNotFound {
			tc.Logger.Printf("Email lookup failed for %s: %v", emailID, lookupErr)
		}
		return c.Redirect(destination, fiber.StatusFound)
	}

	click := tc.buildClick(c, &email, destination, linkID, contactID)

	tc.runAttributionTasks([]attributionTask{
		{"record_click", func() error {
			return tc.DB.Create(click).Error
		}},
		{"update_aggregates", func() error {
			return tc.recomputeEmailStats(email.ID)
		}},
		{"touch_contact", func() error {
			return tc.touchContact(click.ContactID)
		}},
		{"log_activity", func() error {
			return tc.logClickActivity(&email, click)
		}},
	})

	return c.Redirect(destination, fiber.StatusFound)
}

func (tc *TrackingController) buildClick(c *fiber.Ctx, email *models.SentEmail, destination, linkID, contactID string) *models.EmailClick {
	click := &models.EmailClick{
		EmailID:      email.ID,
		URL:          destination,
		LinkPosition: utils.ParseLinkPosition(linkID),
		IPAddress:    utils.AnonymizeIP(c.IP()),
		UserAgent:    c.Get("User-Agent"),
		Referrer:     c.Get("Referer"),
		ClickedAt:    time.Now(),
	}

	if contactID != "" {
		if id := utils.ParseUint(contactID); id != 0 {
			click.ContactID = &id
		}
	}
	if click.ContactID == nil {
		click.ContactID = email.ContactID
	}

	return click
}

func (tc *TrackingController) runAttributionTasks(tasks []attributionTask) []attributionResult {
	results := make([]attributionResult, 0, len(tasks))
	for _, task := range tasks {
		taskErr := runRecovered(task.Run)
		if taskErr != nil {
			tc.Logger.Printf("Attribution task %s failed: %v", task.Name, taskErr)
			utils.LogError("attribution_task_failed", taskErr, map[string]interface{}{
				"task": task.Name,
			})
		}
		results = append(results, attributionResult{Task: task.Name, OK: taskErr == nil, Err: taskErr})
	}
	return results
}

func runRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// recomputeEmailStats rebuilds the denormalized click counters from the
// full EmailClick set. A recount is idempotent, so concurrent clicks
// converge without locking.
func (tc *TrackingController) recomputeEmailStats(emailID uint) error {
	var clicks []models.EmailClick
	if err := tc.DB.Where("email_id = ?", emailID).Find(&clicks).Error; err != nil {
		return err
	}

	total, unique, lastClicked := computeClickAggregates(clicks)

	return tc.DB.Model(&models.SentEmail{}).Where("id = ?", emailID).Updates(map[string]interface{}{
		"total_clicks":  total,
		"unique_clicks": unique,
		"clicked_at":    lastClicked,
	}).Error
}

func computeClickAggregates(clicks []models.EmailClick) (total int, unique int, lastClicked *time.Time) {
	seen := make(map[uint]struct{})
	for i := range clicks {
		total++
		if id := clicks[i].ContactID; id != nil {
			seen[*id] = struct{}{}
		}
		if lastClicked == nil || clicks[i].ClickedAt.After(*lastClicked) {
			t := clicks[i].ClickedAt
			lastClicked = &t
		}
	}
	return total, len(seen), lastClicked
}

func (tc *TrackingController) touchContact(contactID *uint) error {
	if contactID == nil {
		return nil
	}
	return tc.DB.Model(&models.Contact{}).
		Where("id = ?", *contactID).
		Update("last_interaction_at", time.Now()).Error
}

func (tc *TrackingController) logClickActivity(email *models.SentEmail, click *models.EmailClick) error {
	activity := models.MemberActivity{
		UserID:       email.UserID,
		ContactID:    click.ContactID,
		EmailID:      utils.Pointer(email.ID),
		ActivityType: "email_clicked",
		ActivityAt:   click.ClickedAt,
		Details:      click.URL,
	}
	return tc.DB.Create(&activity).Error
}
