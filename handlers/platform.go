// handlers/platform.go
package handlers

import (
	"bug-bounty-platform/middleware"
	"bug-bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlatformRoutes(app *fiber.App, platformService *services.PlatformService, hunterService *services.HunterService) {
	// 🔐 Owner-only platform administration
	admin := app.Group("/admin", middleware.UserContextMiddleware())

	admin.Get("/platform", platformService.HandleGetConfig)
	admin.Patch("/platform/fee", platformService.HandleUpdateFee)
	admin.Post("/hunters/:id/verify", hunterService.HandleVerifyHunter)
}
