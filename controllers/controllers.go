package controllers

import (
	"errors"
	"strings"

	"sweepsapp/ledger"
	"sweepsapp/models"
	"sweepsapp/services"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Services are the handlers' dependencies.
type Services struct {
	Auth        *services.AuthService
	Players     *services.PlayerService
	Wallet      *services.WalletService
	Bonus       *services.BonusService
	Store       *services.StoreService
	Games       *services.GameService
	Jackpots    *services.JackpotService
	KYC         *services.KYCService
	Redemptions *services.RedemptionService
	Fraud       *services.FraudService
	Admin       *services.AdminService
}

var svc *Services

// Init wires the service layer into the handlers. Called once from main.
func Init(s *Services) {
	svc = s
}

type errorMapping struct {
	status int
	code   int
	errs   []error
}

var errorMap = []errorMapping{
	{fiber.StatusBadRequest, models.CodeFailed, []error{
		services.ErrInvalidInput, services.ErrBetOutOfRange, services.ErrBelowMinimum, services.ErrAmountMismatch,
		utils.ErrInvalidMsisdn, ledger.ErrInvalidAmount, ledger.ErrInvalidCurrency, ledger.ErrInvalidPlayer,
		ledger.ErrUnknownType, ledger.ErrCurrencyMismatch, ledger.ErrMissingKey, ledger.ErrMissingDirection,
	}},
	{fiber.StatusUnauthorized, models.CodeUnauthorized, []error{
		services.ErrUnauthorized, services.ErrInvalidCode, services.ErrInvalidSignature,
	}},
	{fiber.StatusForbidden, models.CodeForbidden, []error{
		services.ErrForbidden, services.ErrPlayerBlocked, services.ErrSelfExcluded, services.ErrKYCRequired,
		services.ErrRestrictedState, services.ErrUnderage,
	}},
	{fiber.StatusNotFound, models.CodeNotFound, []error{
		services.ErrNotFound, services.ErrGameUnavailable,
	}},
	{fiber.StatusConflict, models.CodeConflict, []error{
		services.ErrDuplicate, services.ErrInvalidState, services.ErrAlreadyClaimed, ledger.ErrIdempotencyConflict,
	}},
	{fiber.StatusUnprocessableEntity, models.CodeInsufficient, []error{
		ledger.ErrInsufficientFunds, services.ErrDailyLimit,
	}},
	{fiber.StatusTooManyRequests, models.CodeRateLimited, []error{
		services.ErrRateLimited, services.ErrTooManyAttempts,
	}},
}

// fail maps a service error onto the response envelope. Unknown errors are
// logged and hidden from the client.
func fail(c *fiber.Ctx, err error) error {
	for _, m := range errorMap {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				return c.Status(m.status).JSON(models.NewErrorResponse(m.status, m.code, err.Error()))
			}
		}
	}
	logrus.WithFields(logrus.Fields{"method": c.Method(), "path": c.Path()}).WithError(err).Error("Request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(models.NewErrorResponse(fiber.StatusInternalServerError, models.CodeFailed, "internal error"))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(models.NewErrorResponse(fiber.StatusBadRequest, models.CodeFailed, msg))
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(models.NewSuccessWithData(fiber.StatusOK, models.CodeOK, data))
}

// created answers 201 for new resources and 200 when an idempotent request
// was replayed.
func created(c *fiber.Ctx, data interface{}, replayed bool) error {
	status := fiber.StatusCreated
	if replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(models.NewSuccessWithData(status, models.CodeOK, data))
}

func page(c *fiber.Ctx) models.Page {
	return models.NewPage(c.QueryInt("limit", 25), c.QueryInt("offset", 0))
}

func parseBody(c *fiber.Ctx, out interface{}) bool {
	if err := c.BodyParser(out); err != nil {
		logrus.WithField("path", c.Path()).Debugf("invalid json: %v", err)
		return false
	}
	return true
}

func idParam(c *fiber.Ctx) (int64, bool) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, false
	}
	return int64(id), true
}

// idempotencyKey prefers the Idempotency-Key header over a body field.
func idempotencyKey(c *fiber.Ctx, body string) string {
	if h := strings.TrimSpace(c.Get("Idempotency-Key")); h != "" {
		return h
	}
	return strings.TrimSpace(body)
}
