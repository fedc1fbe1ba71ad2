// handlers/hunter.go
package handlers

import (
	"bug-bounty-platform/middleware"
	"bug-bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupHunterRoutes(app *fiber.App, hunterService *services.HunterService, bountyService *services.BountyService, eventService *services.EventService) {
	// 🔓 Public reads
	app.Get("/hunters/:id", hunterService.HandleGetHunterStats)
	app.Get("/hunters/:id/submissions", bountyService.HandleHunterSubmissions)

	// 🔐 Caller-scoped notification feed
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/user/events", eventService.HandleUserEvents)
	secured.Get("/user/events/stream", eventService.HandleStreamEvents)
}
