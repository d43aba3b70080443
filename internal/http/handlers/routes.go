package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	applog "sierraspos/internal/log"
)

// Register mounts the JSON API on app.
func Register(app *fiber.App, d *Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	if d.Metrics != nil {
		app.Get("/metrics", d.Metrics.Handler())
	}

	api := app.Group("/api")

	// Login throttled per IP
	api.Post("/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|login"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "Too many attempts. Please try again later."})
		},
	}), d.AuthHandler.Login)
	api.Post("/logout", d.AuthHandler.Logout)

	auth := api.Group("", RequireAuth(d.AuthSvc))
	admin := RequireAdmin()

	auth.Get("/me", d.AuthHandler.Me)

	auth.Get("/families", d.FamilyHandler.List)
	auth.Post("/families", d.FamilyHandler.Create)
	auth.Post("/families/collection-notices", admin, d.FamilyHandler.SendCollectionNotices)
	auth.Get("/families/:id", d.FamilyHandler.Get)
	auth.Put("/families/:id", d.FamilyHandler.Update)
	auth.Delete("/families/:id", d.FamilyHandler.Delete)

	auth.Get("/products", d.ProductHandler.List)
	auth.Post("/products", d.ProductHandler.Create)
	auth.Get("/products/:id", d.ProductHandler.Detail)
	auth.Put("/products/:id", d.ProductHandler.Update)
	auth.Delete("/products/:id", d.ProductHandler.Delete)
	auth.Post("/products/:id/photo", d.ProductHandler.UploadPhoto)
	auth.Get("/categories", d.CategoryHandler.List)
	auth.Get("/availability", d.InventoryHandler.Check)
	auth.Get("/low-stock", d.InventoryHandler.LowStock)

	auth.Get("/sales", d.SaleHandler.List)
	auth.Post("/sales", d.SaleHandler.Checkout)
	auth.Get("/sales/:id", d.SaleHandler.View)
	auth.Post("/sales/:id/refund", admin, d.SaleHandler.Refund)
	auth.Post("/sales/:id/resend", d.SaleHandler.Resend)
	auth.Get("/export-csv", d.SaleHandler.ExportCSV)
	auth.Post("/reset-database", admin, d.SaleHandler.ResetDatabase)

	auth.Get("/users", admin, d.AdminHandler.Users)
	auth.Post("/users", admin, d.AdminHandler.CreateUser)
	auth.Put("/users/:id", admin, d.AdminHandler.UpdateUser)
	auth.Delete("/users/:id", admin, d.AdminHandler.DeleteUser)

	auth.Get("/config", d.AdminHandler.Config)
	auth.Post("/config", admin, d.AdminHandler.SetConfig)
	auth.Post("/config/upload", admin, d.AdminHandler.UploadAsset)
}

// ErrorHandler logs unexpected errors and answers with a friendly JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Something went wrong. Please try again."
	if fe, isFiber := err.(*fiber.Error); isFiber {
		code = fe.Code
		if code < 500 {
			msg = fe.Message
		}
	}
	if code >= 500 {
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
