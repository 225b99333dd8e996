package worker

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"uplinex/models"
	"uplinex/utils"
)

const sendWorkerCount = 5

type BulkEmailWorker struct {
	DB      *gorm.DB
	Mailer  utils.MailService
	Tracker *utils.LinkTracker
	Logger  *log.Logger
}

func NewBulkEmailWorker(db *gorm.DB, mailer utils.MailService, tracker *utils.LinkTracker, logger *log.Logger) *BulkEmailWorker {
	return &BulkEmailWorker{
		DB:      db,
		Mailer:  mailer,
		Tracker: tracker,
		Logger:  logger,
	}
}

func (bw *BulkEmailWorker) Start(ctx context.Context) {
	bw.Logger.Println("Bulk email worker started")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			bw.Logger.Println("Bulk email worker shutting down...")
			return
		case <-ticker.C:
			bw.processPendingJobs(ctx)
		}
	}
}

func (bw *BulkEmailWorker) processPendingJobs(ctx context.Context) {
	var jobs []models.BulkEmailJob
	if err := bw.DB.Where("status = ?", models.BulkJobPending).
		Order("created_at").Limit(5).Find(&jobs).Error; err != nil {
		bw.Logger.Printf("Error fetching pending jobs: %v", err)
		return
	}

	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		bw.processJob(&jobs[i])
	}
}

func (bw *BulkEmailWorker) processJob(job *models.BulkEmailJob) {
	// Conditional claim so a second worker instance cannot pick up the same job
	claim := bw.DB.Model(&models.BulkEmailJob{}).
		Where("id = ? AND status = ?", job.ID, models.BulkJobPending).
		Updates(map[string]interface{}{
			"status":      models.BulkJobProcessing,
			"started_at":  time.Now(),
			"total_count": len(job.ContactIDs),
		})
	if claim.Error != nil {
		bw.Logger.Printf("Failed to claim job %d: %v", job.ID, claim.Error)
		return
	}
	if claim.RowsAffected == 0 {
		return
	}

	subject, htmlBody, textBody, err := bw.resolveTemplate(job)
	if err != nil {
		bw.Logger.Printf("Job %d: %v", job.ID, err)
		bw.failJob(job.ID, err)
		return
	}

	var (
		mu           sync.Mutex
		sent, failed int
		wg           sync.WaitGroup
	)

	contactChan := make(chan uint, len(job.ContactIDs))

	for i := 0; i < sendWorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for contactID := range contactChan {
				if sendErr := bw.sendToContact(job, contactID, subject, htmlBody, textBody); sendErr != nil {
					bw.Logger.Printf("Job %d: send to contact %d failed: %v", job.ID, contactID, sendErr)
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}()
	}

	for _, id := range job.ContactIDs {
		contactChan <- id
	}
	close(contactChan)
	wg.Wait()

	status := models.BulkJobCompleted
	if sent == 0 && failed > 0 {
		status = models.BulkJobFailed
	}

	if err := bw.DB.Model(&models.BulkEmailJob{}).Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"status":       status,
			"sent_count":   sent,
			"failed_count": failed,
			"completed_at": time.Now(),
		}).Error; err != nil {
		bw.Logger.Printf("Failed to finalize job %d: %v", job.ID, err)
	}

	utils.LogEvent("bulk_email_completed", map[string]interface{}{
		"job_id": job.ID,
		"status": status,
		"sent":   sent,
		"failed": failed,
	})
}

func (bw *BulkEmailWorker) resolveTemplate(job *models.BulkEmailJob) (subject, htmlBody, textBody string, err error) {
	if job.TemplateID != nil {
		var tpl models.Template
		if err := bw.DB.First(&tpl, *job.TemplateID).Error; err != nil {
			return "", "", "", fmt.Errorf("template %d not found: %w", *job.TemplateID, err)
		}
		return tpl.Subject, tpl.HTMLContent, tpl.TextContent, nil
	}

	var tpl models.PersonalTemplate
	if err := bw.DB.Where("id = ? AND user_id = ?", *job.PersonalTemplateID, job.UserID).
		First(&tpl).Error; err != nil {
		return "", "", "", fmt.Errorf("personal template %d not found: %w", *job.PersonalTemplateID, err)
	}
	return tpl.Subject, tpl.HTMLContent, tpl.TextContent, nil
}

func (bw *BulkEmailWorker) sendToContact(job *models.BulkEmailJob, contactID uint, subject, htmlBody, textBody string) error {
	var contact models.Contact
	if err := bw.DB.Where("id = ? AND user_id = ?", contactID, job.UserID).First(&contact).Error; err != nil {
		return fmt.Errorf("contact lookup failed: %w", err)
	}
	if contact.IsUnsubscribed || contact.IsDoNotContact {
		return fmt.Errorf("contact %d has opted out", contact.ID)
	}

	vars := personalizationVars(&contact, job.CustomVariables)
	renderedSubject := RenderTemplate(subject, vars)
	renderedHTML := RenderTemplate(htmlBody, vars)
	renderedText := RenderTemplate(textBody, vars)

	email := models.SentEmail{
		UserID:      job.UserID,
		ContactID:   &contact.ID,
		Subject:     renderedSubject,
		HTMLContent: renderedHTML,
		TextContent: renderedText,
		Status:      "pending",
		BulkJobID:   utils.Pointer(job.ID),
	}
	if err := bw.DB.Create(&email).Error; err != nil {
		return fmt.Errorf("failed to create email record: %w", err)
	}

	tracked := bw.Tracker.WrapEmailLinks(renderedHTML, renderedText,
		fmt.Sprint(email.ID), fmt.Sprint(contact.ID))

	updates := map[string]interface{}{
		"html_content":  tracked.HTML,
		"text_content":  tracked.Text,
		"total_links":   tracked.TotalLinks,
		"wrapped_links": tracked.WrappedLinks,
	}

	result, sendErr := bw.Mailer.Send(contact.Email, renderedSubject, tracked.HTML, tracked.Text)
	if sendErr != nil {
		updates["status"] = "failed"
		if err := bw.DB.Model(&email).Updates(updates).Error; err != nil {
			bw.Logger.Printf("Failed to mark email %d failed: %v", email.ID, err)
		}
		return sendErr
	}

	updates["status"] = "sent"
	updates["message_id"] = result.MessageID
	updates["sent_at"] = time.Now()
	if err := bw.DB.Model(&email).Updates(updates).Error; err != nil {
		bw.Logger.Printf("Failed to update email %d after send: %v", email.ID, err)
	}

	return nil
}

func (bw *BulkEmailWorker) failJob(jobID uint, cause error) {
	if err := bw.DB.Model(&models.BulkEmailJob{}).Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.BulkJobFailed,
			"completed_at": time.Now(),
			"last_error":   cause.Error(),
		}).Error; err != nil {
		bw.Logger.Printf("Failed to mark job %d failed: %v", jobID, err)
	}
}

// RenderTemplate substitutes {{variable}} placeholders in template content
func RenderTemplate(content string, vars map[string]string) string {
	for k, v := range vars {
		content = strings.ReplaceAll(content, "{{"+k+"}}", v)
		content = strings.ReplaceAll(content, "{{ "+k+" }}", v)
	}
	return content
}

// personalizationVars merges contact fields with job-level custom variables;
// custom variables win on key collisions.
func personalizationVars(contact *models.Contact, custom map[string]string) map[string]string {
	vars := map[string]string{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"email":      contact.Email,
		"company":    contact.Company,
	}
	for k, v := range custom {
		vars[k] = v
	}
	return vars
}
