package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"sweepsapp/ledger"
	"sweepsapp/models"
	"sweepsapp/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestFailMapsSentinels(t *testing.T) {
	app := fiber.New()
	var current error
	app.Get("/", func(c *fiber.Ctx) error { return fail(c, current) })

	cases := []struct {
		err    error
		status int
		code   int
	}{
		{fmt.Errorf("%w: bet", services.ErrInvalidInput), 400, models.CodeFailed},
		{ledger.ErrInvalidAmount, 400, models.CodeFailed},
		{services.ErrInvalidCode, 401, models.CodeUnauthorized},
		{services.ErrKYCRequired, 403, models.CodeForbidden},
		{services.ErrSelfExcluded, 403, models.CodeForbidden},
		{services.ErrNotFound, 404, models.CodeNotFound},
		{ledger.ErrIdempotencyConflict, 409, models.CodeConflict},
		{fmt.Errorf("wrapped: %w", ledger.ErrInsufficientFunds), 422, models.CodeInsufficient},
		{services.ErrTooManyAttempts, 429, models.CodeRateLimited},
		{errors.New("connection reset"), 500, models.CodeFailed},
	}
	for _, tc := range cases {
		current = tc.err
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		body := envelope(t, resp.Body)
		assert.EqualValues(t, tc.code, body["StatusCode"])
		if tc.status == 500 {
			assert.Equal(t, "internal error", body["StatusMessage"])
		}
	}
}

func TestIdempotencyKeyPrefersHeader(t *testing.T) {
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		return c.SendString(idempotencyKey(c, " body-key "))
	})

	req := httptest.NewRequest("POST", "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "body-key", string(b))

	req = httptest.NewRequest("POST", "/", nil)
	req.Header.Set("Idempotency-Key", "hdr-1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	b, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "hdr-1", string(b))
}

func TestCreatedReplayAnswers200(t *testing.T) {
	app := fiber.New()
	app.Get("/:replayed", func(c *fiber.Ctx) error {
		return created(c, models.H{"id": 1}, c.Params("replayed") == "yes")
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/no", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	resp, err = app.Test(httptest.NewRequest("GET", "/yes", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAmountBindingRejectsNonDecimal(t *testing.T) {
	app := fiber.New()
	app.Post("/play", Play)
	app.Post("/bet", ProviderBet)
	app.Post("/settle", ProviderSettle)
	app.Post("/redeem", RequestRedemption)

	cases := []struct {
		path, body, msg string
	}{
		{"/play", `{"currency":"SC","bet":"lots","round_key":"r-1"}`, "bet must be a decimal amount"},
		{"/play", `{"currency":"SC","round_key":"r-1"}`, "bet must be a decimal amount"},
		{"/bet", `{"round_id":"p-1","amount":true}`, "amount must be a decimal amount"},
		{"/settle", `{"round_id":"p-1","win":null}`, "win must be a decimal amount"},
		{"/redeem", `{"amount":"1.2.3","method":"ach"}`, "amount must be a decimal amount"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("POST", tc.path, strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, tc.body)
		assert.Equal(t, tc.msg, envelope(t, resp.Body)["StatusMessage"], tc.body)
	}
}
