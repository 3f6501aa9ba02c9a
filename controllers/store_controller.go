package controllers

import (
	"sweepsapp/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ListPackages - GET /api/v1/store/packages
func ListPackages(c *fiber.Ctx) error {
	pkgs, err := svc.Store.ListActive(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pkgs)
}

// CreateOrder - POST /api/v1/store/orders
func CreateOrder(c *fiber.Ctx) error {
	var req struct {
		PackageID int64 `json:"package_id"`
	}
	if !parseBody(c, &req) {
		return badRequest(c, "invalid JSON")
	}
	o, err := svc.Store.CreateOrder(c.UserContext(), middleware.PlayerID(c), req.PackageID)
	if err != nil {
		return fail(c, err)
	}
	return created(c, o, false)
}

// ListOrders - GET /api/v1/store/orders
func ListOrders(c *fiber.Ctx) error {
	orders, err := svc.Store.Orders(c.UserContext(), middleware.PlayerID(c), page(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, orders)
}

// PaymentWebhook - POST /api/v1/webhooks/payments
//
// The signature covers the raw body, so the body is passed through untouched.
func PaymentWebhook(c *fiber.Ctx) error {
	body := append([]byte(nil), c.Body()...)
	o, err := svc.Store.HandleWebhook(c.UserContext(), body, c.Get("X-Signature"))
	if err != nil {
		logrus.WithFields(logrus.Fields{"ip": c.IP()}).WithError(err).Warn("Payment webhook rejected")
		return fail(c, err)
	}
	return ok(c, fiber.Map{"order_id": o.ID, "status": o.Status})
}
