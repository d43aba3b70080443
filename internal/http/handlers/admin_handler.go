package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/services"
	"sierraspos/internal/validate"
)

// AdminHandler covers user accounts and the settings store.
type AdminHandler struct {
	Auth     *services.AuthService
	Settings *services.SettingsService
}

type userInput struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
}

func (h *AdminHandler) Users(c *fiber.Ctx) error {
	users, err := h.Auth.ListUsers(c.UserContext())
	if err != nil {
		return fail(c, "users.list", err)
	}
	return c.JSON(users)
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var in userInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	u, err := h.Auth.CreateUser(c.UserContext(), domain.User{
		Username: in.Username, Role: in.Role, Name: in.Name, Email: in.Email,
	}, in.Password)
	if err != nil {
		return fail(c, "users.create", err)
	}
	applog.Audit(c, "admin.user.create", map[string]any{"target_id": u.ID})
	return c.Status(fiber.StatusCreated).JSON(u)
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	var in userInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	u, err := h.Auth.UpdateUser(c.UserContext(), domain.User{
		ID: id, Username: in.Username, Role: in.Role, Name: in.Name, Email: in.Email,
	}, in.Password)
	if err != nil {
		return fail(c, "users.update", err)
	}
	applog.Audit(c, "admin.user.update", map[string]any{"target_id": id})
	return c.JSON(u)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	if err := h.Auth.DeleteUser(c.UserContext(), id, callerFrom(c)); err != nil {
		return fail(c, "users.delete", err)
	}
	applog.Audit(c, "admin.user.delete", map[string]any{"target_id": id})
	return ok(c)
}

func (h *AdminHandler) Config(c *fiber.Ctx) error {
	all, err := h.Settings.All(c.UserContext())
	if err != nil {
		return fail(c, "config.get", err)
	}
	return c.JSON(all)
}

type settingInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *AdminHandler) SetConfig(c *fiber.Ctx) error {
	var in settingInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	if err := h.Settings.Set(c.UserContext(), in.Key, in.Value); err != nil {
		return fail(c, "config.set", err)
	}
	applog.Audit(c, "admin.config.set", map[string]any{"key": in.Key})
	return ok(c)
}

// UploadAsset stores a logo or favicon from the multipart "file" field;
// the "key" form field names the setting.
func (h *AdminHandler) UploadAsset(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file")
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, "config.upload", err)
	}
	defer f.Close()

	key := c.FormValue("key")
	url, err := h.Settings.SetAsset(c.UserContext(), key, fh.Filename, f)
	if err != nil {
		return fail(c, "config.upload", err)
	}
	applog.Audit(c, "admin.config.upload", map[string]any{"key": key})
	return c.JSON(fiber.Map{"success": true, "url": url})
}
