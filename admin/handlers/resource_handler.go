// Package handlers exposes the admin resource operations over HTTP.
// Every route addresses a resource by its URL segment; a segment that
// names nothing in the registry is rejected with 404 before any
// database work.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/schema"

	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/admin/services"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/storage/provider"
)

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// listQuery is the query-string surface of list and export requests.
type listQuery struct {
	Limit  int64  `schema:"limit"`
	Skip   int64  `schema:"skip"`
	Sort   string `schema:"sort"`
	Export bool   `schema:"export"`
}

// ResourceHandler serves the generic admin resource routes.
type ResourceHandler struct {
	service  services.ResourceService
	registry *registry.Registry
	storage  provider.BlobProvider
}

// NewResourceHandler creates the handler over its collaborators. The
// storage provider may be nil when CSV import from object storage is
// not configured.
func NewResourceHandler(service services.ResourceService, reg *registry.Registry, storage provider.BlobProvider) *ResourceHandler {
	return &ResourceHandler{service: service, registry: reg, storage: storage}
}

// lookupResource resolves the :resource URL segment, or replies 404.
func (h *ResourceHandler) lookupResource(c *fiber.Ctx) (*registry.ResourceType, error) {
	name := c.Params("resource")
	rt, ok := h.registry.Lookup(name)
	if !ok {
		return nil, adminerrors.ResourceNotFound(name)
	}
	return rt, nil
}

// Resources lists the registered resource names.
func (h *ResourceHandler) Resources(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"resources": h.registry.Names()})
}

// Schema describes a resource: its fields and relations. Admin UIs use
// this to render forms and filter pickers.
func (h *ResourceHandler) Schema(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	relations := rt.Relations
	if relations == nil {
		relations = map[string]string{}
	}
	return c.JSON(fiber.Map{
		"name":       rt.Name,
		"collection": rt.Collection,
		"fields":     rt.Fields,
		"relations":  relations,
		"protected":  rt.ProtectedFields(),
	})
}

// List serves one page of documents, or a CSV download when the export
// flag is set. The response envelope carries the page and the total
// match count so clients can paginate.
func (h *ResourceHandler) List(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	params, export, err := parseListParams(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	if export {
		return h.export(c, rt, params)
	}

	docs, total, err := h.service.List(c.UserContext(), rt, params)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"itemCount": total,
		"items":     docs,
	})
}

// export streams the filtered window as a CSV attachment.
func (h *ResourceHandler) export(c *fiber.Ctx, rt *registry.ResourceType, params services.ListParams) error {
	csvText, err := h.service.ExportCSV(c.UserContext(), rt, params)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("%s-export-%d-%02d-%d-.csv", rt.Name, now.Year(), now.Month(), now.Day())
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.SendString(csvText)
}

// Get serves one document by id.
func (h *ResourceHandler) Get(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	doc, err := h.service.Get(c.UserContext(), rt, c.Params("id"))
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.JSON(doc)
}

// Create persists the request body as a new document.
func (h *ResourceHandler) Create(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: malformed JSON body", adminerrors.ErrInvalidRequest))
	}

	doc, err := h.service.Create(c.UserContext(), rt, body)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}

// Update merges the request body into the stored document. PUT and
// PATCH share this handler.
func (h *ResourceHandler) Update(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: malformed JSON body", adminerrors.ErrInvalidRequest))
	}

	doc, err := h.service.Update(c.UserContext(), rt, c.Params("id"), body)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.JSON(doc)
}

// Delete removes one document.
func (h *ResourceHandler) Delete(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	if err := h.service.Delete(c.UserContext(), rt, c.Params("id")); err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteMany removes every document named in the request body.
func (h *ResourceHandler) DeleteMany(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}

	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || len(body.IDs) == 0 {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: body must carry a non-empty ids array", adminerrors.ErrInvalidRequest))
	}

	if err := h.service.DeleteMany(c.UserContext(), rt, body.IDs); err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ImportCSV fetches an uploaded CSV file from object storage and
// reconciles its rows into the collection. Row failures come back as a
// 400 listing the first few offending rows.
func (h *ResourceHandler) ImportCSV(c *fiber.Ctx) error {
	rt, err := h.lookupResource(c)
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.URL == "" {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: body must carry the file url", adminerrors.ErrInvalidRequest))
	}

	if h.storage == nil {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: object storage is not configured", adminerrors.ErrUpstreamFetch))
	}

	key, err := h.storage.ResolveKey(body.URL)
	if err != nil {
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: %v", adminerrors.ErrInvalidRequest, err))
	}

	content, err := h.storage.Fetch(c.UserContext(), key)
	if err != nil {
		log.ErrorWithContext(c.UserContext(), "failed to fetch import file %s: %v", key, err)
		return adminerrors.HandleServiceError(c,
			fmt.Errorf("%w: %s", adminerrors.ErrUpstreamFetch, key))
	}

	report, err := h.service.ImportCSV(c.UserContext(), rt, string(content))
	if err != nil {
		return adminerrors.HandleServiceError(c, err)
	}
	if len(report.Failed) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(report.ErrorBody())
	}
	return c.JSON(fiber.Map{"imported": report.Succeeded})
}

// parseListParams decodes paging, sorting and the export flag with
// gorilla/schema and the filters parameter as a JSON descriptor array.
func parseListParams(c *fiber.Ctx) (services.ListParams, bool, error) {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})

	var q listQuery
	if err := queryDecoder.Decode(&q, values); err != nil {
		return services.ListParams{}, false, fmt.Errorf("%w: %v", adminerrors.ErrInvalidRequest, err)
	}

	params := services.ListParams{Limit: q.Limit, Skip: q.Skip, Sort: q.Sort}

	if raw := c.Query("filters"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params.Filters); err != nil {
			return services.ListParams{}, false, fmt.Errorf("%w: malformed filters parameter", adminerrors.ErrInvalidRequest)
		}
	}
	return params, q.Export, nil
}
