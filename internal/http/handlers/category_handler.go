package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/services"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// List returns the categories in use by active products, for the register tabs.
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.Categories(c.UserContext())
	if err != nil {
		return fail(c, "categories.list", err)
	}
	return c.JSON(cats)
}
