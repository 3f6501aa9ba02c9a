package controllers

import (
	"sweepsapp/ledger"
	"sweepsapp/middleware"
	"sweepsapp/services"

	"github.com/gofiber/fiber/v2"
)

// GetMe - GET /api/v1/me
func GetMe(c *fiber.Ctx) error {
	p, err := svc.Players.GetProfile(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

// UpdateMe - PUT /api/v1/me
func UpdateMe(c *fiber.Ctx) error {
	var req services.ProfileUpdate
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	p, err := svc.Players.UpdateProfile(c.UserContext(), middleware.PlayerID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

// SelfExclude - POST /api/v1/me/self-exclusion
func SelfExclude(c *fiber.Ctx) error {
	var req struct {
		Days int `json:"days"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	until, err := svc.Players.SelfExclude(c.UserContext(), middleware.PlayerID(c), req.Days)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"excluded_until": until})
}

// GetWallet - GET /api/v1/wallet
func GetWallet(c *fiber.Ctx) error {
	b, err := svc.Wallet.Balances(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, b)
}

// WalletTransactions - GET /api/v1/wallet/transactions?currency=GC|SC
func WalletTransactions(c *fiber.Ctx) error {
	txns, err := svc.Wallet.History(c.UserContext(), middleware.PlayerID(c), ledger.Currency(c.Query("currency")), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, txns)
}

// BonusStatus - GET /api/v1/bonus/daily
func BonusStatus(c *fiber.Ctx) error {
	st, err := svc.Bonus.Status(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, st)
}

// ClaimBonus - POST /api/v1/bonus/daily
func ClaimBonus(c *fiber.Ctx) error {
	claim, replayed, err := svc.Bonus.Claim(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return created(c, claim, replayed)
}
