// handlers/bounty.go
package handlers

import (
	"bug-bounty-platform/middleware"
	"bug-bounty-platform/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBountyRoutes(app *fiber.App, bountyService *services.BountyService, reviewService *services.ReviewService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/bounties", bountyService.HandleListBounties)
	app.Get("/bounties/:id", bountyService.HandleGetBounty)
	app.Get("/creators/:id/bounties", bountyService.HandleCreatorBounties)

	// 🔐 Secured routes — require user context (userID, roles)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/bounties", bountyService.HandleCreateBounty)
	secured.Post("/bounties/:id/submissions", bountyService.HandleSubmitBug)
	secured.Post("/bounties/:id/review", reviewService.HandleReviewSubmission)
	secured.Post("/attachments", bountyService.HandleUploadAttachment)
}
