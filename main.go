package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"bug-bounty-platform/handlers"
	"bug-bounty-platform/middleware"
	"bug-bounty-platform/models"
	"bug-bounty-platform/services"
	"bug-bounty-platform/utils"
	"bug-bounty-platform/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024, // 50MB — attachments are capped well below this
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !utils.ObjectStorageConfigured() {
		log.Println("⚠️  R2 not configured — attachments will be stored under ./uploads")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.HunterProfile{},
		&models.PlatformConfig{},
		&models.BountyEvent{},
		&models.LedgerAccountMirror{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	// --- Platform owner & fee, fixed at initialization ---
	ownerID := os.Getenv("PLATFORM_OWNER_ID")
	if ownerID == "" {
		log.Fatal("PLATFORM_OWNER_ID environment variable not set")
	}
	feePercent := int64(5)
	if raw := os.Getenv("PLATFORM_FEE_PERCENT"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Fatal("invalid PLATFORM_FEE_PERCENT:", err)
		}
		feePercent = parsed
	}

	// --- Ledger collaborator ---
	ledgerURL := os.Getenv("LEDGER_SERVICE_URL")
	if ledgerURL == "" {
		log.Fatal("LEDGER_SERVICE_URL environment variable not set")
	}
	serviceToken := os.Getenv("BOUNTY_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("BOUNTY_SERVICE_TOKEN environment variable not set")
	}
	ledger := services.NewHTTPLedgerClient(ledgerURL, serviceToken)

	// --- Services (one mutex serializes all mutating operations) ---
	var opMu sync.Mutex
	authz := services.NewAuthorizer(ownerID)
	eventService := services.NewEventService(db)
	hunterService := services.NewHunterService(db, authz, eventService)
	platformService := services.NewPlatformService(db, authz)
	bountyService := services.NewBountyService(db, ledger, hunterService, eventService, &opMu)
	reviewService := services.NewReviewService(db, ledger, authz, eventService, hunterService, platformService, &opMu)

	if err := platformService.EnsureConfig(ownerID, feePercent); err != nil {
		log.Fatal("failed to seed platform config:", err)
	}

	// --- Ledger mirror worker + periodic sweeps ---
	ledgerSyncClient := workers.NewLedgerSyncClient(db)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go workers.PollLedgerAccounts(ctx, ledgerSyncClient, 15*time.Second)

	bountyService.StartPlatformScheduler()

	// ✅ Setup routes — enforced Gateway auth everywhere
	handlers.SetupBountyRoutes(app, bountyService, reviewService)
	handlers.SetupHunterRoutes(app, hunterService, bountyService, eventService)
	handlers.SetupPlatformRoutes(app, platformService, hunterService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Ledger account polling running (every 15s)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
