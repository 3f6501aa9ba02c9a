package controllers

import (
	"encoding/json"
	"sweepsapp/middleware"
	"sweepsapp/services"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
)

// SubmitKYC - POST /api/v1/kyc
func SubmitKYC(c *fiber.Ctx) error {
	var req services.KYCInput
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	k, err := svc.KYC.Submit(c.UserContext(), middleware.PlayerID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, k, false)
}

// GetKYC - GET /api/v1/kyc
func GetKYC(c *fiber.Ctx) error {
	k, err := svc.KYC.Get(c.UserContext(), middleware.PlayerID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, k)
}

type redemptionRequest struct {
	Amount json.RawMessage `json:"amount"`
	Method string          `json:"method"`
}

// RequestRedemption - POST /api/v1/redemptions
func RequestRedemption(c *fiber.Ctx) error {
	var req redemptionRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	amount, err := utils.ParseAmount(req.Amount)
	if err != nil {
		return badRequest(c, "amount must be a decimal amount")
	}
	r, err := svc.Redemptions.Request(c.UserContext(), middleware.PlayerID(c), amount, req.Method)
	if err != nil {
		return fail(c, err)
	}
	return created(c, r, false)
}

// ListRedemptions - GET /api/v1/redemptions
func ListRedemptions(c *fiber.Ctx) error {
	rs, err := svc.Redemptions.List(c.UserContext(), middleware.PlayerID(c), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rs)
}

// CancelRedemption - DELETE /api/v1/redemptions/:id
func CancelRedemption(c *fiber.Ctx) error {
	id, valid := idParam(c)
	if !valid {
		return badRequest(c, "invalid id")
	}
	r, err := svc.Redemptions.Cancel(c.UserContext(), middleware.PlayerID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, r)
}
