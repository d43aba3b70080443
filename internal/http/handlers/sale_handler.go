package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	applog "sierraspos/internal/log"
	"sierraspos/internal/services"
	"sierraspos/internal/validate"
)

type SaleHandler struct {
	Sales  *services.SaleService
	Export *services.ExportService
}

// Checkout commits the cart. The seller is always the logged in user.
func (h *SaleHandler) Checkout(c *fiber.Ctx) error {
	var req services.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "body")
	}
	caller := callerFrom(c)
	req.Seller = caller.Name

	res, err := h.Sales.Checkout(c.UserContext(), req)
	if err != nil {
		applog.Security(c, "sale.checkout.fail", map[string]any{"family_id": req.FamilyID, "error": err.Error()})
		return fail(c, "sale.checkout", err)
	}
	applog.Audit(c, "sale.checkout", map[string]any{"sale_id": res.SaleID})
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *SaleHandler) List(c *fiber.Ctx) error {
	sales, err := h.Sales.ListSales(c.UserContext(), callerFrom(c), validate.Limit(c.Query("limit"), 500))
	if err != nil {
		return fail(c, "sales.list", err)
	}
	return c.JSON(sales)
}

// View returns one sale. Sellers may only open their own.
func (h *SaleHandler) View(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	s, err := h.Sales.GetSale(c.UserContext(), id)
	if err != nil {
		return fail(c, "sales.get", err)
	}
	caller := callerFrom(c)
	if !caller.IsAdmin() && s.Seller != caller.Name {
		applog.Security(c, "access.denied.sale", map[string]any{"sale_id": id})
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "sale not found"})
	}
	return c.JSON(s)
}

func (h *SaleHandler) Refund(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	if err := h.Sales.Refund(c.UserContext(), id, callerFrom(c)); err != nil {
		return fail(c, "sale.refund", err)
	}
	applog.Audit(c, "sale.refund", map[string]any{"sale_id": id})
	return ok(c)
}

// ResetDatabase wipes sales, families and products. Users and settings stay.
func (h *SaleHandler) ResetDatabase(c *fiber.Ctx) error {
	if err := h.Sales.ResetDatabase(c.UserContext(), callerFrom(c)); err != nil {
		return fail(c, "database.reset", err)
	}
	applog.Security(c, "database.reset", nil)
	return ok(c)
}

func (h *SaleHandler) Resend(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	if err := h.Sales.ResendReceipt(c.UserContext(), id); err != nil {
		return fail(c, "sale.resend", err)
	}
	applog.Audit(c, "sale.resend", map[string]any{"sale_id": id})
	return ok(c)
}

// ExportCSV streams ok sales between ?start= and ?end= (YYYY-MM-DD).
func (h *SaleHandler) ExportCSV(c *fiber.Ctx) error {
	start, okS := validate.Date(c.Query("start"))
	end, okE := validate.Date(c.Query("end"))
	if !okS || !okE {
		return badRequest(c, "date")
	}
	var buf bytes.Buffer
	if err := h.Export.WriteCSV(c.UserContext(), &buf, start, end); err != nil {
		return fail(c, "sales.export", err)
	}
	applog.Audit(c, "sales.export", map[string]any{"start": start, "end": end})
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment("ventas.csv")
	return c.Send(buf.Bytes())
}
