// Package handlers serves the storage routes: presigned download URLs
// and cleanup for files operators uploaded for CSV import.
package handlers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/storage/provider"
)

// DownloadURLTTL is how long generated download links stay valid.
const DownloadURLTTL = 15 * time.Minute

// StorageHandler exposes object-storage operations to admins.
type StorageHandler struct {
	provider provider.BlobProvider
}

// NewStorageHandler creates the handler over a blob provider.
func NewStorageHandler(p provider.BlobProvider) *StorageHandler {
	return &StorageHandler{provider: p}
}

// GetFileURL resolves a file URL or key and replies with a presigned
// download URL and the object size.
func (h *StorageHandler) GetFileURL(c *fiber.Ctx) error {
	key, err := h.resolveKeyParam(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	size, err := h.provider.GetMetadata(c.UserContext(), key)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(
			adminerrors.NewErrorBody(adminerrors.CodeDocumentNotFound,
				fmt.Sprintf("file %s not found", key)))
	}

	url, err := h.provider.GeneratePresignedDownloadURL(c.UserContext(), key, DownloadURLTTL)
	if err != nil {
		log.ErrorWithContext(c.UserContext(), "failed to presign %s: %v", key, err)
		return adminerrors.HandleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"url":       url,
		"size":      size,
		"expiresIn": int64(DownloadURLTTL.Seconds()),
	})
}

// DeleteFile removes an uploaded file from the bucket.
func (h *StorageHandler) DeleteFile(c *fiber.Ctx) error {
	key, err := h.resolveKeyParam(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	if err := h.provider.Delete(c.UserContext(), key); err != nil {
		log.ErrorWithContext(c.UserContext(), "failed to delete %s: %v", key, err)
		return adminerrors.HandleServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *StorageHandler) resolveKeyParam(c *fiber.Ctx) (string, error) {
	raw := c.Query("key")
	if raw == "" {
		return "", fmt.Errorf("%w: key parameter is required", adminerrors.ErrInvalidRequest)
	}
	key, err := h.provider.ResolveKey(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", adminerrors.ErrInvalidRequest, err)
	}
	return key, nil
}
