package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/log"
	"sierraspos/internal/services"
)

type AuthHandler struct {
	Auth *services.AuthService
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in loginInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" || len(in.Password) > 128 {
		log.Security(c, "auth.login.fail", map[string]any{"username": username, "reason": "bad_format"})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Error credenciales"})
	}

	token, u, err := h.Auth.Login(c.UserContext(), username, in.Password)
	if err != nil {
		if err != services.ErrBadCreds {
			return fail(c, "auth.login", err)
		}
		log.Security(c, "auth.login.fail", map[string]any{"username": username})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Error credenciales"})
	}

	c.Locals("user", u)
	log.Audit(c, "auth.login.success", map[string]any{"username": u.Username})
	return c.JSON(fiber.Map{"token": token, "role": u.Role, "name": u.Name})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if tok := bearer(c); tok != "" {
		_ = h.Auth.Logout(c.UserContext(), tok)
	}
	log.Audit(c, "auth.logout", nil)
	return ok(c)
}

// Me returns the logged in user.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(c.Locals("user"))
}
