package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/services"
	"sierraspos/internal/validate"
)

type InventoryHandler struct {
	Inv *services.InventoryService
}

// Check returns the availability of one product: ?product=<id>.
func (h *InventoryHandler) Check(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Query("product"))
	if !okID {
		return badRequest(c, "product")
	}
	a, err := h.Inv.CheckAvailability(c.UserContext(), id)
	if err != nil {
		return fail(c, "inventory.check", err)
	}
	return c.JSON(a)
}

func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	prods, err := h.Inv.LowStock(c.UserContext())
	if err != nil {
		return fail(c, "inventory.low", err)
	}
	return c.JSON(prods)
}
