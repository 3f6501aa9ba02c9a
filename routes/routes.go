package routes

import (
	"sweepsapp/controllers"
	"sweepsapp/middleware"
	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, providerAPIKey string, playLimiter *utils.RateLimiter) {
	api := app.Group("/api/v1")

	// public
	api.Post("/auth/otp", controllers.RequestOTP)
	api.Post("/auth/verify", controllers.VerifyOTP)
	api.Get("/lobby", controllers.Lobby)
	api.Get("/jackpots", controllers.Jackpots)
	api.Get("/winners", controllers.RecentWins)
	api.Get("/store/packages", controllers.ListPackages)
	api.Get("/fair/verify", controllers.VerifyRound)

	// player
	player := middleware.RequirePlayer()
	api.Get("/me", player, controllers.GetMe)
	api.Put("/me", player, controllers.UpdateMe)
	api.Post("/me/self-exclusion", player, controllers.SelfExclude)
	api.Get("/wallet", player, controllers.GetWallet)
	api.Get("/wallet/transactions", player, controllers.WalletTransactions)
	api.Get("/bonus/daily", player, controllers.BonusStatus)
	api.Post("/bonus/daily", player, controllers.ClaimBonus)
	api.Get("/store/orders", player, controllers.ListOrders)
	api.Post("/store/orders", player, controllers.CreateOrder)
	api.Post("/games/:slug/play", player, middleware.RateLimit(playLimiter), controllers.Play)
	api.Get("/fair/seed", player, controllers.GetSeed)
	api.Put("/fair/seed", player, controllers.SetClientSeed)
	api.Post("/fair/rotate", player, controllers.RotateSeed)
	api.Get("/kyc", player, controllers.GetKYC)
	api.Post("/kyc", player, controllers.SubmitKYC)
	api.Get("/redemptions", player, controllers.ListRedemptions)
	api.Post("/redemptions", player, controllers.RequestRedemption)
	api.Delete("/redemptions/:id", player, controllers.CancelRedemption)

	// game provider callbacks
	provider := api.Group("/provider", middleware.RequireAPIKey(providerAPIKey))
	provider.Post("/bet", controllers.ProviderBet)
	provider.Post("/settle", controllers.ProviderSettle)
	provider.Post("/rollback", controllers.ProviderRollback)

	api.Post("/webhooks/payments", controllers.PaymentWebhook)

	// back office; login is registered ahead of the guarded group
	api.Post("/admin/login", controllers.AdminLogin)
	admin := api.Group("/admin", middleware.RequireAdmin())
	adminOnly := middleware.RequireAdmin(models.RoleAdmin)

	admin.Get("/stats", controllers.AdminStats)
	admin.Get("/audit", controllers.AdminAuditLog)
	admin.Post("/users", adminOnly, controllers.AdminCreateUser)

	admin.Get("/players", controllers.AdminSearchPlayers)
	admin.Get("/players/:id", controllers.AdminPlayerDetail)
	admin.Put("/players/:id/status", controllers.AdminSetPlayerStatus)
	admin.Post("/players/:id/adjust", adminOnly, controllers.AdminAdjustBalance)

	admin.Get("/kyc", controllers.AdminListKYC)
	admin.Post("/kyc/:id/approve", controllers.AdminApproveKYC)
	admin.Post("/kyc/:id/reject", controllers.AdminRejectKYC)

	admin.Get("/redemptions", controllers.AdminRedemptionQueue)
	admin.Post("/redemptions/:id/approve", adminOnly, controllers.AdminApproveRedemption)
	admin.Post("/redemptions/:id/reject", controllers.AdminRejectRedemption)

	admin.Get("/fraud/flags", controllers.AdminFraudFlags)
	admin.Post("/fraud/flags/:id/resolve", controllers.AdminResolveFlag)

	admin.Get("/packages", controllers.AdminListPackages)
	admin.Post("/packages", adminOnly, controllers.AdminCreatePackage)
	admin.Put("/packages/:id", adminOnly, controllers.AdminUpdatePackage)
	admin.Delete("/packages/:id", adminOnly, controllers.AdminDeactivatePackage)

	admin.Get("/games", controllers.AdminListGames)
	admin.Put("/games", adminOnly, controllers.AdminUpsertGame)
	admin.Put("/games/:slug/active", adminOnly, controllers.AdminSetGameActive)

	admin.Get("/jackpots", controllers.AdminListJackpots)
	admin.Post("/jackpots", adminOnly, controllers.AdminCreateJackpot)
	admin.Put("/jackpots/:id", adminOnly, controllers.AdminUpdateJackpot)
	admin.Get("/jackpots/:id/wins", controllers.AdminJackpotWins)
}
