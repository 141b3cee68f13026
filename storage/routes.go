// Package storage mounts the file-management routes used around CSV
// import: presigned downloads and cleanup of uploaded files.
package storage

import (
	"github.com/gofiber/fiber/v2"

	adminmw "github.com/joefour/SnapJS-AdminServer/internal/middleware/admin"
	"github.com/joefour/SnapJS-AdminServer/internal/middleware/authjwt"
	platformconfig "github.com/joefour/SnapJS-AdminServer/internal/platform/config"
	"github.com/joefour/SnapJS-AdminServer/storage/handlers"
)

// StorageHandlers holds all the handlers this router needs.
type StorageHandlers struct {
	StorageHandler *handlers.StorageHandler
}

// RegisterRoutes is the single entry point for setting up storage
// routes. Like the admin surface, every route requires the admin role.
func RegisterRoutes(app *fiber.App, h *StorageHandlers, cfg *platformconfig.Config) {
	if h == nil || h.StorageHandler == nil {
		panic("StorageHandlers is required")
	}

	group := app.Group("/storage",
		authjwt.New(authjwt.Config{
			PublicKey: cfg.JWT.PublicKey,
			ClaimKey:  cfg.JWT.ClaimKey,
		}),
		adminmw.New(adminmw.Config{}),
	)

	group.Get("/files/url", h.StorageHandler.GetFileURL)
	group.Delete("/files", h.StorageHandler.DeleteFile)
}
