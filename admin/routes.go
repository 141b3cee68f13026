// Package admin mounts the generic resource routes behind the JWT and
// admin-role gates.
package admin

import (
	"github.com/gofiber/fiber/v2"

	"github.com/joefour/SnapJS-AdminServer/admin/handlers"
	adminmw "github.com/joefour/SnapJS-AdminServer/internal/middleware/admin"
	"github.com/joefour/SnapJS-AdminServer/internal/middleware/authjwt"
	platformconfig "github.com/joefour/SnapJS-AdminServer/internal/platform/config"
)

// RegisterRoutes mounts the admin surface under /admin. Every route
// requires a valid ES256 token carrying the admin role; the resource
// segment is validated inside the handlers.
func RegisterRoutes(app *fiber.App, cfg *platformconfig.Config, h *handlers.ResourceHandler) {
	group := app.Group("/admin",
		authjwt.New(authjwt.Config{
			PublicKey: cfg.JWT.PublicKey,
			ClaimKey:  cfg.JWT.ClaimKey,
		}),
		adminmw.New(adminmw.Config{}),
	)

	group.Get("/", h.Resources)

	// Literal segments before the :id catch-all
	group.Get("/:resource/schema", h.Schema)
	group.Post("/:resource/deleteMultiple", h.DeleteMany)
	group.Post("/:resource/importFromCsv", h.ImportCSV)

	group.Get("/:resource", h.List)
	group.Post("/:resource", h.Create)
	group.Get("/:resource/:id", h.Get)
	group.Put("/:resource/:id", h.Update)
	group.Patch("/:resource/:id", h.Update)
	group.Delete("/:resource/:id", h.Delete)
}
