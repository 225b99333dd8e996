package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"uplinex/config"
	controller "uplinex/controllers"
	"uplinex/middleware"
	"uplinex/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, mailer utils.MailService, tracker *utils.LinkTracker) {
	trackingController := controller.NewTrackingController(db, log.New(os.Stdout, "TRACK: ", log.LstdFlags))
	emailController := controller.NewEmailController(db, log.New(os.Stdout, "EMAIL: ", log.LstdFlags), mailer, tracker)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Click redirect must stay reachable without auth; recipients are not
	// logged-in members. The bare /track path covers links wrapped before
	// the /api prefix was introduced.
	app.Get("/api/track/click/:emailID", trackingController.HandleClickTracking)
	app.Get("/track/click/:emailID", trackingController.HandleClickTracking)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	rateLimitStore := middleware.NewRateLimitStore(config.AppConfig.Redis)

	// Email routes
	emails := api.Group("/emails")
	emails.Post("/send", emailController.SendEmail)
	emails.Post("/bulk-send", middleware.BulkSendRateLimiter(rateLimitStore), emailController.SubmitBulkEmail)
	emails.Get("/bulk-send", emailController.GetBulkEmailJob)
	emails.Get("/:id", emailController.GetEmail)
	emails.Get("/:id/stats", emailController.GetEmailStats)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
