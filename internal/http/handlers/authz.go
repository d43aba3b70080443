package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/services"
)

// bearer reads the session token from the Authorization header. Both a raw
// token and "Bearer <token>" are accepted.
func bearer(c *fiber.Ctx) string {
	h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		h = strings.TrimSpace(h[7:])
	}
	return h
}

// RequireAuth resolves the session token to a user; otherwise 401.
func RequireAuth(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tok := bearer(c)
		if tok == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "No autorizado"})
		}
		u, err := auth.CurrentUser(c.UserContext(), tok)
		if err != nil || u == nil {
			applog.Security(c, "auth.session.invalid", nil)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sesión inválida"})
		}
		c.Locals("user", u)
		return c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, _ := c.Locals("user").(*domain.User)
		if !u.IsAdmin() {
			applog.Security(c, "access.denied.admin", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Requiere Admin"})
		}
		return c.Next()
	}
}

// callerFrom builds the identity the services check. The display name is
// what sales record as seller; it falls back to the username.
func callerFrom(c *fiber.Ctx) domain.Caller {
	u, _ := c.Locals("user").(*domain.User)
	if u == nil {
		return domain.Caller{}
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return domain.Caller{UserID: u.ID, Name: name, Role: u.Role}
}
