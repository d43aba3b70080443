package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/services"
	"sierraspos/internal/validate"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

type productInput struct {
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Cost      int64  `json:"cost"`
	Stock     int64  `json:"stock"`
	Active    *bool  `json:"active"`
	SortOrder int    `json:"sortOrder"`
}

func (in productInput) product(id int64) domain.Product {
	active := true
	if in.Active != nil {
		active = *in.Active
	}
	return domain.Product{
		ID: id, Name: in.Name, Category: in.Category,
		Price: in.Price, Cost: in.Cost, Stock: in.Stock,
		Active: active, SortOrder: in.SortOrder,
	}
}

// List returns the catalog; ?active=1 hides disabled products.
func (h *ProductHandler) List(c *fiber.Ctx) error {
	prods, err := h.Catalog.List(c.UserContext(), c.QueryBool("active", false))
	if err != nil {
		return fail(c, "products.list", err)
	}
	return c.JSON(prods)
}

func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	p, err := h.Catalog.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "products.get", err)
	}
	return c.JSON(p)
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in productInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	p, err := h.Catalog.Create(c.UserContext(), in.product(0))
	if err != nil {
		return fail(c, "products.create", err)
	}
	applog.Audit(c, "product.create", map[string]any{"product_id": p.ID})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	var in productInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	p, err := h.Catalog.Update(c.UserContext(), in.product(id))
	if err != nil {
		return fail(c, "products.update", err)
	}
	applog.Audit(c, "product.update", map[string]any{"product_id": id, "stock": p.Stock})
	return c.JSON(p)
}

func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	if err := h.Catalog.Delete(c.UserContext(), id); err != nil {
		return fail(c, "products.delete", err)
	}
	applog.Audit(c, "product.delete", map[string]any{"product_id": id})
	return ok(c)
}

// UploadPhoto takes a multipart "photo" field.
func (h *ProductHandler) UploadPhoto(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	fh, err := c.FormFile("photo")
	if err != nil {
		return badRequest(c, "photo")
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, "products.photo", err)
	}
	defer f.Close()

	url, err := h.Catalog.SetPhoto(c.UserContext(), id, fh.Filename, f)
	if err != nil {
		return fail(c, "products.photo", err)
	}
	applog.Audit(c, "product.photo", map[string]any{"product_id": id})
	return c.JSON(fiber.Map{"success": true, "url": url})
}
