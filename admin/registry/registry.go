// Package registry holds the explicit catalog of resources the admin
// layer may operate on. Resources are registered once at startup and
// looked up per request; any resource name outside the catalog is
// rejected before a single database call is made.
package registry

import (
	"context"
	"fmt"
	"sort"
)

// Enricher computes a derived field for a single document after it has
// been fetched. Enrichers run concurrently across the rows of a page.
type Enricher struct {
	// Field is the document key the computed value is stored under.
	Field string
	// Enrich receives the fetched document and returns the value for Field.
	Enrich func(ctx context.Context, doc map[string]interface{}) (interface{}, error)
}

// ResourceType describes one administrable resource: which collection
// backs it, which fields it exposes, and how it relates to other
// resources.
type ResourceType struct {
	// Name is the URL segment the resource is addressed by, e.g. "user".
	Name string
	// Collection is the backing collection/table name.
	Collection string
	// Fields lists the exposed field names, in CSV column order.
	Fields []string
	// Relations maps a reference field to the name of the resource it
	// points at, e.g. {"owner": "user"}. Dotted filters such as
	// "owner.username" resolve through this map.
	Relations map[string]string
	// Protected lists fields that are stripped from every serialized
	// response and rejected on import. The registry always adds the
	// credential fields even when this is empty.
	Protected []string
	// Enrichers compute derived fields per fetched document.
	Enrichers []Enricher

	fieldSet     map[string]struct{}
	protectedSet map[string]struct{}
}

// defaultProtected are never exposed regardless of resource configuration.
var defaultProtected = []string{
	"password",
	"salt",
	"resetPasswordToken",
	"resetPasswordExpires",
	"__v",
}

// HasField reports whether name is an exposed field of the resource.
// The objectId identity field always counts as known.
func (rt *ResourceType) HasField(name string) bool {
	if name == "objectId" {
		return true
	}
	_, ok := rt.fieldSet[name]
	return ok
}

// IsProtected reports whether name must never appear in a serialized
// document or be accepted from an import row.
func (rt *ResourceType) IsProtected(name string) bool {
	_, ok := rt.protectedSet[name]
	return ok
}

// ProtectedFields returns the protected field names in sorted order.
func (rt *ResourceType) ProtectedFields() []string {
	fields := make([]string, 0, len(rt.protectedSet))
	for name := range rt.protectedSet {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return fields
}

// StripProtected removes protected fields from a fetched document. It
// mutates and returns doc so calls can be chained.
func (rt *ResourceType) StripProtected(doc map[string]interface{}) map[string]interface{} {
	if doc == nil {
		return nil
	}
	for name := range rt.protectedSet {
		delete(doc, name)
	}
	return doc
}

// Registry is the resource catalog. It is populated during startup and
// must not be mutated afterwards; lookups are read-only and safe for
// concurrent use once registration is done.
type Registry struct {
	resources map[string]*ResourceType
}

// NewRegistry creates an empty catalog.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*ResourceType)}
}

// Register adds a resource to the catalog. It validates the definition
// and indexes the field and protected sets for per-request lookups.
func (r *Registry) Register(rt *ResourceType) error {
	if rt == nil {
		return fmt.Errorf("resource type is nil")
	}
	if rt.Name == "" {
		return fmt.Errorf("resource name is required")
	}
	if rt.Collection == "" {
		return fmt.Errorf("resource %s: collection is required", rt.Name)
	}
	if len(rt.Fields) == 0 {
		return fmt.Errorf("resource %s: at least one field is required", rt.Name)
	}
	if _, exists := r.resources[rt.Name]; exists {
		return fmt.Errorf("resource %s is already registered", rt.Name)
	}

	rt.fieldSet = make(map[string]struct{}, len(rt.Fields))
	for _, f := range rt.Fields {
		rt.fieldSet[f] = struct{}{}
	}

	rt.protectedSet = make(map[string]struct{}, len(rt.Protected)+len(defaultProtected))
	for _, f := range defaultProtected {
		rt.protectedSet[f] = struct{}{}
	}
	for _, f := range rt.Protected {
		rt.protectedSet[f] = struct{}{}
	}

	for field, target := range rt.Relations {
		if field == "" || target == "" {
			return fmt.Errorf("resource %s: relation %q -> %q is invalid", rt.Name, field, target)
		}
	}

	r.resources[rt.Name] = rt
	return nil
}

// Lookup returns the resource registered under name.
func (r *Registry) Lookup(name string) (*ResourceType, bool) {
	rt, ok := r.resources[name]
	return rt, ok
}

// Names returns the registered resource names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
