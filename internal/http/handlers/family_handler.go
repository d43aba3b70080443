package handlers

import (
	"github.com/gofiber/fiber/v2"

	"sierraspos/internal/domain"
	applog "sierraspos/internal/log"
	"sierraspos/internal/notify"
	"sierraspos/internal/services"
	"sierraspos/internal/validate"
)

type FamilyHandler struct {
	Families   *services.FamilyService
	Collection *notify.CollectionJob
}

type familyInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (h *FamilyHandler) List(c *fiber.Ctx) error {
	fams, err := h.Families.List(c.UserContext())
	if err != nil {
		return fail(c, "families.list", err)
	}
	return c.JSON(fams)
}

func (h *FamilyHandler) Get(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	f, err := h.Families.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, "families.get", err)
	}
	return c.JSON(f)
}

func (h *FamilyHandler) Create(c *fiber.Ctx) error {
	var in familyInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	f, err := h.Families.Create(c.UserContext(), domain.Family{Name: in.Name, Email: in.Email, Phone: in.Phone}, callerFrom(c))
	if err != nil {
		return fail(c, "families.create", err)
	}
	return c.Status(fiber.StatusCreated).JSON(f)
}

func (h *FamilyHandler) Update(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	var in familyInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "body")
	}
	f, err := h.Families.Update(c.UserContext(), domain.Family{ID: id, Name: in.Name, Email: in.Email, Phone: in.Phone})
	if err != nil {
		return fail(c, "families.update", err)
	}
	applog.Audit(c, "family.update", map[string]any{"family_id": id})
	return c.JSON(f)
}

func (h *FamilyHandler) Delete(c *fiber.Ctx) error {
	id, okID := validate.ID(c.Params("id"))
	if !okID {
		return badRequest(c, "id")
	}
	if err := h.Families.Delete(c.UserContext(), id, callerFrom(c)); err != nil {
		return fail(c, "families.delete", err)
	}
	return ok(c)
}

// SendCollectionNotices mails the balance notice to every debtor right now.
func (h *FamilyHandler) SendCollectionNotices(c *fiber.Ctx) error {
	rep, err := h.Collection.Run(c.UserContext())
	if err != nil {
		return fail(c, "families.collection", err)
	}
	applog.Audit(c, "collection.manual", map[string]any{"sent": rep.Sent, "failed": rep.Failed})
	return c.JSON(rep)
}
