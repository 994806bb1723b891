package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nft-rewards-system/handlers"
	"nft-rewards-system/middleware"
	"nft-rewards-system/models"
	"nft-rewards-system/services"
	"nft-rewards-system/workers"

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

	app := fiber.New(fiber.Config{})

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
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.RewardAccount{},
		&models.ClaimRecord{},
		&models.MigrationCheckpoint{},
		&models.StakeRecord{},
		&models.LegacyStakeRecord{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Settlement network + accounting config is required at startup —
	// a job must never discover missing credentials halfway through.
	settlementCfg, err := services.LoadSettlementConfig()
	if err != nil {
		log.Fatal("❌ settlement network config: ", err)
	}
	accountingURL := os.Getenv("ACCOUNTING_SERVICE_URL")
	if accountingURL == "" {
		log.Fatal("ACCOUNTING_SERVICE_URL environment variable not set")
	}
	accountingToken := os.Getenv("ACCOUNTING_SERVICE_TOKEN")
	if accountingToken == "" {
		log.Fatal("ACCOUNTING_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := services.NewGormLedgerStore(db)
	claimService := services.NewClaimService(ledger)
	batchService := services.NewBatchService(ledger, claimService)
	migrationService := services.NewMigrationService(services.NewGormMigrationStore(db))

	reporter, err := services.NewR2ReportUploader(ctx)
	if err != nil {
		log.Fatal("failed to initialize R2 report uploader: ", err)
	}
	if reporter != nil {
		batchService.Reporter = reporter
	} else {
		log.Println("⚠️  R2 env not set — settlement run reports will not be archived")
	}

	stakeStore := services.NewGormStakeStore(db)
	settlementClient := services.NewHTTPSettlementClient(settlementCfg)
	accountingClient := services.NewAccountingClient(accountingURL, accountingToken)
	unstakeService := services.NewUnstakeService(stakeStore, settlementClient, accountingClient, settlementCfg)

	stakeWatcher := workers.NewStakeWatchWorker(stakeStore, unstakeService.HandleStakeWrite, 15*time.Second)
	go stakeWatcher.Start(ctx)

	sched, err := services.StartJobScheduler(ctx, batchService, migrationService)
	if err != nil {
		log.Fatal("failed to start job scheduler: ", err)
	}
	defer func() { _ = sched.Shutdown() }()

	handlers.SetupRewardRoutes(app, claimService, batchService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Stake Watch Worker running (every 15s)")
	log.Printf("✅ Settlement cadences: every %s and every %s; migration every %s",
		services.SettlementInterval, services.DailySettlementInterval, services.MigrationInterval)
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
