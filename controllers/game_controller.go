package controllers

import (
	"encoding/json"
	"strconv"

	"sweepsapp/ledger"
	"sweepsapp/middleware"
	"sweepsapp/services"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
)

// Lobby - GET /api/v1/lobby?category=slots
func Lobby(c *fiber.Ctx) error {
	lobby, err := svc.Games.Lobby(c.UserContext(), c.Query("category"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, lobby)
}

// Jackpots - GET /api/v1/jackpots
func Jackpots(c *fiber.Ctx) error {
	pools, err := svc.Jackpots.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pools)
}

// RecentWins - GET /api/v1/winners
func RecentWins(c *fiber.Ctx) error {
	wins, err := svc.Games.RecentWins(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, wins)
}

type playRequest struct {
	Currency ledger.Currency `json:"currency"`
	Bet      json.RawMessage `json:"bet"`
	RoundKey string          `json:"round_key"`
}

// Play - POST /api/v1/games/:slug/play
func Play(c *fiber.Ctx) error {
	var req playRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	bet, err := utils.ParseAmount(req.Bet)
	if err != nil {
		return badRequest(c, "bet must be a decimal amount")
	}
	res, err := svc.Games.Play(c.UserContext(), services.PlayRequest{
		PlayerID: middleware.PlayerID(c),
		Slug:     c.Params("slug"),
		Currency: req.Currency,
		Bet:      bet,
		RoundKey: idempotencyKey(c, req.RoundKey),
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, res, res.Replayed)
}

// GetSeed - GET /api/v1/fair/seed
func GetSeed(c *fiber.Ctx) error {
	seed, err := svc.Games.Seed(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, seed)
}

// SetClientSeed - PUT /api/v1/fair/seed
func SetClientSeed(c *fiber.Ctx) error {
	var req struct {
		ClientSeed string `json:"client_seed"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	seed, err := svc.Games.SetClientSeed(c.UserContext(), middleware.PlayerID(c), req.ClientSeed)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, seed)
}

// RotateSeed - POST /api/v1/fair/rotate
func RotateSeed(c *fiber.Ctx) error {
	var req struct {
		ClientSeed string `json:"client_seed"`
	}
	if len(c.Body()) > 0 && !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	revealed, next, err := svc.Games.RotateSeed(c.UserContext(), middleware.PlayerID(c), req.ClientSeed)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{"revealed": revealed, "current": next})
}

// VerifyRound - GET /api/v1/fair/verify?server_seed=&client_seed=&nonce=&category=
func VerifyRound(c *fiber.Ctx) error {
	nonce, err := strconv.ParseInt(c.Query("nonce"), 10, 64)
	if err != nil {
		return badRequest(c, "nonce must be an integer")
	}
	v, err := svc.Games.Verify(c.Query("server_seed"), c.Query("client_seed"), nonce, c.Query("category"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, v)
}
