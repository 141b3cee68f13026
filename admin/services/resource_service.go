// Package services implements the generic resource operations the admin
// handlers delegate to. One service instance covers every registered
// resource; the resource type is passed per call.
package services

import (
	"context"
	"sync"

	uuid "github.com/gofrs/uuid"

	"github.com/joefour/SnapJS-AdminServer/admin/csvcodec"
	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/admin/filters"
	"github.com/joefour/SnapJS-AdminServer/admin/importer"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/internal/platform"
	"github.com/joefour/SnapJS-AdminServer/internal/utils"
)

// ListParams carries the paging, sorting and filtering of a list or
// export request.
type ListParams struct {
	Limit   int64
	Skip    int64
	Sort    string
	Filters []filters.Descriptor
}

// DefaultPageSize applies when the client sends no limit.
const DefaultPageSize int64 = 20

// ResourceService defines the operations of the admin resource layer.
type ResourceService interface {
	List(ctx context.Context, resource *registry.ResourceType, params ListParams) ([]map[string]interface{}, int64, error)
	Get(ctx context.Context, resource *registry.ResourceType, id string) (map[string]interface{}, error)
	Create(ctx context.Context, resource *registry.ResourceType, body map[string]interface{}) (map[string]interface{}, error)
	Update(ctx context.Context, resource *registry.ResourceType, id string, body map[string]interface{}) (map[string]interface{}, error)
	Delete(ctx context.Context, resource *registry.ResourceType, id string) error
	DeleteMany(ctx context.Context, resource *registry.ResourceType, ids []string) error
	ImportCSV(ctx context.Context, resource *registry.ResourceType, csvText string) (*importer.Report, error)
	ExportCSV(ctx context.Context, resource *registry.ResourceType, params ListParams) (string, error)
}

type resourceService struct {
	base       *platform.BaseService
	compiler   *filters.Compiler
	reconciler *importer.Reconciler
}

// NewResourceService wires the resource service over the shared base
// service and the resource registry.
func NewResourceService(base *platform.BaseService, reg *registry.Registry) ResourceService {
	return &resourceService{
		base:       base,
		compiler:   filters.NewCompiler(base.Repository, reg),
		reconciler: importer.NewReconciler(base.Repository),
	}
}

// List returns one page of documents and the total match count. The
// count and the page run against the same compiled query; enrichment
// fans out across the page before protected fields are stripped.
func (s *resourceService) List(ctx context.Context, resource *registry.ResourceType, params ListParams) ([]map[string]interface{}, int64, error) {
	query, err := s.compiler.Compile(ctx, resource, params.Filters)
	if err != nil {
		return nil, 0, err
	}

	countResult := <-s.base.Repository.Count(ctx, resource.Collection, query)
	if countResult.Error != nil {
		return nil, 0, countResult.Error
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	skip := params.Skip
	if skip < 0 {
		skip = 0
	}
	opts := &interfaces.FindOptions{
		Limit: &limit,
		Skip:  &skip,
		Sort:  parseSort(params.Sort),
	}

	result := <-s.base.Repository.Find(ctx, resource.Collection, query, opts)
	if result.Error() != nil {
		return nil, 0, result.Error()
	}
	defer result.Close()

	docs := []map[string]interface{}{}
	for result.Next() {
		var doc map[string]interface{}
		if err := result.Decode(&doc); err != nil {
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err := result.Error(); err != nil {
		return nil, 0, err
	}

	if err := s.enrich(ctx, resource, docs); err != nil {
		return nil, 0, err
	}
	for _, doc := range docs {
		resource.StripProtected(doc)
	}
	return docs, countResult.Count, nil
}

// Get returns one document by id.
func (s *resourceService) Get(ctx context.Context, resource *registry.ResourceType, id string) (map[string]interface{}, error) {
	doc, err := s.fetch(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, resource, []map[string]interface{}{doc}); err != nil {
		return nil, err
	}
	return resource.StripProtected(doc), nil
}

// Create persists the request body as a new document and returns it
// with the generated identity.
func (s *resourceService) Create(ctx context.Context, resource *registry.ResourceType, body map[string]interface{}) (map[string]interface{}, error) {
	if body == nil {
		body = map[string]interface{}{}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	body["objectId"] = id.String()

	now := utils.UTCNowUnixMilli()
	result := <-s.base.Repository.Save(ctx, resource.Collection, id, now, now, body)
	if result.Error != nil {
		return nil, result.Error
	}

	log.InfoWithContext(ctx, "created %s %s", resource.Name, id.String())
	return resource.StripProtected(body), nil
}

// Update merges the request body over the stored document. Identity and
// protected fields in the body are ignored.
func (s *resourceService) Update(ctx context.Context, resource *registry.ResourceType, id string, body map[string]interface{}) (map[string]interface{}, error) {
	current, err := s.fetch(ctx, resource, id)
	if err != nil {
		return nil, err
	}

	for key, value := range body {
		if key == "objectId" || resource.IsProtected(key) {
			continue
		}
		current[key] = value
	}

	result := <-s.base.Repository.Update(ctx, resource.Collection, byObjectID(id), current, nil)
	if result.Error != nil {
		if result.Error == interfaces.ErrNoDocuments {
			return nil, adminerrors.DocumentNotFound(id)
		}
		return nil, result.Error
	}
	return resource.StripProtected(current), nil
}

// Delete removes one document by id.
func (s *resourceService) Delete(ctx context.Context, resource *registry.ResourceType, id string) error {
	result := <-s.base.Repository.Delete(ctx, resource.Collection, byObjectID(id))
	if result.Error != nil {
		if result.Error == interfaces.ErrNoDocuments {
			return adminerrors.DocumentNotFound(id)
		}
		return result.Error
	}
	log.InfoWithContext(ctx, "deleted %s %s", resource.Name, id)
	return nil
}

// DeleteMany removes every listed document. Removals fan out
// concurrently; ids that match nothing are tolerated, any other
// failure fails the call after all removals have settled.
func (s *resourceService) DeleteMany(ctx context.Context, resource *registry.ResourceType, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			result := <-s.base.Repository.Delete(ctx, resource.Collection, byObjectID(id))
			if result.Error != nil && result.Error != interfaces.ErrNoDocuments {
				mu.Lock()
				if firstErr == nil {
					firstErr = result.Error
				}
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	log.InfoWithContext(ctx, "deleted %d %s documents", len(ids), resource.Name)
	return nil
}

// ImportCSV decodes the file content and reconciles its rows against
// the collection.
func (s *resourceService) ImportCSV(ctx context.Context, resource *registry.ResourceType, csvText string) (*importer.Report, error) {
	rows := csvcodec.Decode(csvText, ",")
	return s.reconciler.Import(ctx, resource, rows)
}

// ExportCSV renders the same window a list request would return as CSV
// text, columns in the resource's declared field order.
func (s *resourceService) ExportCSV(ctx context.Context, resource *registry.ResourceType, params ListParams) (string, error) {
	docs, _, err := s.List(ctx, resource, params)
	if err != nil {
		return "", err
	}

	headers := append([]string{"objectId"}, exportFields(resource)...)
	return csvcodec.Encode(headers, docs), nil
}

// fetch loads one document by id without stripping. Both backends only
// discover a missing document while decoding, so the not-found check
// happens on the Decode error, not before it.
func (s *resourceService) fetch(ctx context.Context, resource *registry.ResourceType, id string) (map[string]interface{}, error) {
	result := <-s.base.Repository.FindOne(ctx, resource.Collection, byObjectID(id))
	var doc map[string]interface{}
	if err := result.Decode(&doc); err != nil {
		if err == interfaces.ErrNoDocuments || result.NoResult() {
			return nil, adminerrors.DocumentNotFound(id)
		}
		return nil, err
	}
	return doc, nil
}

// enrich runs the resource's enrichers across the rows as one
// concurrent batch. Enrichment failures are logged and leave the field
// unset rather than failing the page.
func (s *resourceService) enrich(ctx context.Context, resource *registry.ResourceType, docs []map[string]interface{}) error {
	if len(resource.Enrichers) == 0 || len(docs) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc map[string]interface{}) {
			defer wg.Done()
			values := make(map[string]interface{}, len(resource.Enrichers))
			for _, e := range resource.Enrichers {
				value, err := e.Enrich(ctx, doc)
				if err != nil {
					log.WarnWithContext(ctx, "enricher %s failed: %v", e.Field, err)
					continue
				}
				values[e.Field] = value
			}
			// Documents are not shared across goroutines; only this
			// goroutine writes to doc
			for k, v := range values {
				doc[k] = v
			}
		}(doc)
	}
	wg.Wait()
	return nil
}

// byObjectID builds the identity query every single-document operation
// uses.
func byObjectID(id string) *interfaces.Query {
	return &interfaces.Query{Conditions: []interfaces.Field{
		{Name: "object_id", Value: id, Operator: "="},
	}}
}

// parseSort maps the client sort expression ("field" or "-field") onto
// the repository sort map. Timestamp names map to envelope columns and
// the default is most recent first.
func parseSort(sort string) map[string]int {
	if sort == "" {
		return map[string]int{"created_date": -1}
	}
	direction := 1
	if sort[0] == '-' {
		direction = -1
		sort = sort[1:]
	}
	switch sort {
	case "createdAt":
		sort = "created_date"
	case "updatedAt":
		sort = "last_updated"
	}
	return map[string]int{sort: direction}
}

// exportFields lists the resource fields minus protected ones and the
// identity column, which Export prepends itself.
func exportFields(resource *registry.ResourceType) []string {
	fields := make([]string, 0, len(resource.Fields))
	for _, f := range resource.Fields {
		if f == "objectId" || resource.IsProtected(f) {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}
