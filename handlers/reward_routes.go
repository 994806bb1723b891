// handlers/reward_routes.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"nft-rewards-system/middleware"
	"nft-rewards-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupRewardRoutes(app *fiber.App, claims *services.ClaimService, batch *services.BatchService) {
	// Ops-triggered manual settlement run. Gateway auth applies
	// globally; no user context is needed for an ops job.
	app.Post("/jobs/settlement/run", func(c *fiber.Ctx) error {
		summary, err := batch.RunSettlement(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "settlement run failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"claims_processed":         summary.ClaimsProcessed,
			"total_amount_distributed": summary.TotalAmountDistributed,
			"accounts_touched":         summary.AccountsTouched,
			"timestamp":                time.Now().UTC().Format(time.RFC3339),
		})
	})

	// 🔐 Secured routes — require user context (userID from Gateway)
	securedGroup := app.Group("/", middleware.UserContextMiddleware())

	securedGroup.Post("/claim", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		var req struct {
			WalletAddress string `json:"wallet_address"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if req.WalletAddress == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "wallet_address is required"})
		}

		outcome, err := claims.SettleForWallet(c.Context(), userID, req.WalletAddress)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{
				"success": true,
				"amount":  outcome.Amount,
				"message": "Claim settled successfully",
			})
		case errors.Is(err, services.ErrWalletMismatch):
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Wallet does not match this account",
			})
		case errors.Is(err, services.ErrAccountNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"message": "No reward account for this user",
			})
		case errors.Is(err, services.ErrClaimUnavailable):
			return c.JSON(fiber.Map{
				"success": false,
				"message": "Claim no longer available",
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Failed to settle claim",
			})
		}
	})

	// Dashboard read path: the account plus its live pending accrual.
	securedGroup.Get("/account", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		account, err := claims.Ledger.GetAccount(c.Context(), userID)
		if err != nil {
			if errors.Is(err, services.ErrAccountNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No reward account for this user"})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching account"})
		}

		accrual := services.Accrue(account, time.Now())
		pending, _ := services.TruncateClaimAmount(accrual.Pending).Float64()
		return c.JSON(fiber.Map{
			"account":        account,
			"pending_amount": pending,
			"elapsed_weeks":  accrual.ElapsedWeeks,
			"eligible":       accrual.Eligible,
		})
	})

	securedGroup.Get("/claims", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		limit := 20
		if limitStr := c.Query("limit"); limitStr != "" {
			l, err := strconv.Atoi(limitStr)
			if err != nil || l <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit parameter"})
			}
			limit = l
		}

		records, err := claims.Ledger.ListClaims(c.Context(), userID, limit)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch claims"})
		}
		return c.JSON(records)
	})
}
