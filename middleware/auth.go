package middleware

import (
	"crypto/subtle"
	"strings"

	"sweepsapp/models"
	"sweepsapp/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Locals keys set by the auth middleware.
const (
	LocalClaims   = "user"
	LocalPlayerID = "player_id"
	LocalAdminID  = "admin_id"
	LocalRole     = "role"
)

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(models.NewErrorResponse(fiber.StatusUnauthorized, models.CodeUnauthorized, msg))
}

func bearerClaims(c *fiber.Ctx) (jwt.MapClaims, error) {
	header := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return nil, fiber.ErrUnauthorized
	}
	return utils.VerifyJWTToken(strings.TrimSpace(parts[1]))
}

// RequirePlayer accepts player tokens only.
func RequirePlayer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := bearerClaims(c)
		if err != nil {
			return unauthorized(c, "missing or invalid token")
		}
		if utils.ClaimRole(claims) != models.RolePlayer {
			return unauthorized(c, "player token required")
		}
		id, err := utils.ClaimSubject(claims)
		if err != nil {
			return unauthorized(c, "invalid token subject")
		}
		c.Locals(LocalClaims, claims)
		c.Locals(LocalPlayerID, id)
		c.Locals(LocalRole, models.RolePlayer)
		return c.Next()
	}
}

// RequireAdmin accepts back-office tokens whose role is in roles. No roles
// means any back-office role.
func RequireAdmin(roles ...string) fiber.Handler {
	if len(roles) == 0 {
		roles = []string{models.RoleAdmin, models.RoleSupport}
	}
	return func(c *fiber.Ctx) error {
		claims, err := bearerClaims(c)
		if err != nil {
			return unauthorized(c, "missing or invalid token")
		}
		role := utils.ClaimRole(claims)
		if role == models.RolePlayer || role == "" {
			return unauthorized(c, "admin token required")
		}
		allowed := false
		for _, r := range roles {
			if r == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(models.NewErrorResponse(fiber.StatusForbidden, models.CodeForbidden, "insufficient role"))
		}
		id, err := utils.ClaimSubject(claims)
		if err != nil {
			return unauthorized(c, "invalid token subject")
		}
		c.Locals(LocalClaims, claims)
		c.Locals(LocalAdminID, id)
		c.Locals(LocalRole, role)
		return c.Next()
	}
}

// RequireAPIKey guards the game provider callbacks.
func RequireAPIKey(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got := c.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			logrus.WithFields(logrus.Fields{"ip": c.IP(), "path": c.Path()}).Warn("Rejected provider call")
			return unauthorized(c, "invalid api key")
		}
		return c.Next()
	}
}

// PlayerID returns the authenticated player. Only valid behind RequirePlayer.
func PlayerID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalPlayerID).(int64)
	return id
}

// AdminID returns the authenticated admin. Only valid behind RequireAdmin.
func AdminID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(LocalAdminID).(int64)
	return id
}

func Role(c *fiber.Ctx) string {
	role, _ := c.Locals(LocalRole).(string)
	return role
}
