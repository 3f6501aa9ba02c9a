package controllers

import (
	"sweepsapp/models"

	"github.com/gofiber/fiber/v2"
)

type otpRequest struct {
	Msisdn string `json:"msisdn"`
}

type verifyRequest struct {
	Msisdn string `json:"msisdn"`
	Code   string `json:"code"`
}

type adminLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestOTP - POST /api/v1/auth/otp
func RequestOTP(c *fiber.Ctx) error {
	var req otpRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	if err := svc.Auth.RequestOTP(c.UserContext(), req.Msisdn, c.IP()); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(models.NewSuccess(fiber.StatusAccepted, models.CodeOK, "code sent"))
}

// VerifyOTP - POST /api/v1/auth/verify
func VerifyOTP(c *fiber.Ctx) error {
	var req verifyRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	res, err := svc.Auth.VerifyOTP(c.UserContext(), req.Msisdn, req.Code, c.IP())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res)
}

// AdminLogin - POST /api/v1/admin/login
func AdminLogin(c *fiber.Ctx) error {
	var req adminLoginRequest
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	res, err := svc.Auth.AdminLogin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res)
}
