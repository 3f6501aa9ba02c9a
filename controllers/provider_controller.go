package controllers

import (
	"encoding/json"
	"sweepsapp/ledger"
	"sweepsapp/services"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
)

type providerBetRequest struct {
	RoundID  string          `json:"round_id"`
	PlayerID int64           `json:"player_id"`
	Game     string          `json:"game"`
	Currency ledger.Currency `json:"currency"`
	Amount   json.RawMessage `json:"amount"`
}

type providerSettleRequest struct {
	RoundID string          `json:"round_id"`
	Win     json.RawMessage `json:"win"`
}

// ProviderBet - POST /api/v1/provider/bet
func ProviderBet(c *fiber.Ctx) error {
	var req providerBetRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal amount")
	}
	round, txn, err := svc.Games.ProviderBet(c.UserContext(), services.ProviderBet{
		RoundID:  req.RoundID,
		PlayerID: req.PlayerID,
		Slug:     req.Game,
		Currency: req.Currency,
		Amount:   amount,
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"round": round, "txn_id": txn.ID, "balance": txn.BalanceAfter})
}

// ProviderSettle - POST /api/v1/provider/settle
func ProviderSettle(c *fiber.Ctx) error {
	var req providerSettleRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	win, err := utils.ParseAmount(req.Win)
	if err != nil {
		return badRequest(c, "win must be a decimal amount")
	}
	round, balance, err := svc.Games.ProviderSettle(c.UserContext(), req.RoundID, win)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"round": round, "balance": balance})
}

// ProviderRollback - POST /api/v1/provider/rollback
func ProviderRollback(c *fiber.Ctx) error {
	var req struct {
		RoundID string `json:"round_id"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	round, balance, err := svc.Games.ProviderRollback(c.UserContext(), req.RoundID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"round": round, "balance": balance})
}
