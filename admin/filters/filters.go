// Package filters compiles the client-facing filter descriptors of a
// list request into the structured Query consumed by the repository
// layer. Relationship filters ("owner.username") resolve through a
// sub-query against the related collection and collapse into a
// membership predicate on the referencing field.
package filters

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
)

// Descriptor is one filter term as received from the client, usually as
// a JSON array in the "filters" query parameter.
type Descriptor struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Client operator names.
const (
	OpEquals         = "equals"
	OpNotEqual       = "not-equal"
	OpGreaterThan    = "greater-than"
	OpLessThan       = "less-than"
	OpGreaterOrEqual = "greater-or-equal"
	OpLessOrEqual    = "less-or-equal"
	OpLike           = "like"
	OpTrue           = "true"
	OpFalse          = "false"
)

// timestampFields maps the client-visible timestamp names onto the
// envelope columns every collection carries.
var timestampFields = map[string]string{
	"createdAt":    "created_date",
	"updatedAt":    "last_updated",
	"created_date": "created_date",
	"last_updated": "last_updated",
}

// Compiler turns descriptors into repository queries. It needs the
// repository to resolve relationship filters and the registry to find
// the related collections.
type Compiler struct {
	repository interfaces.Repository
	registry   *registry.Registry
}

// NewCompiler creates a filter compiler.
func NewCompiler(repo interfaces.Repository, reg *registry.Registry) *Compiler {
	return &Compiler{repository: repo, registry: reg}
}

// Compile builds the repository query for a list request. Plain
// descriptors map directly onto conditions; dotted descriptors fan out
// as concurrent sub-queries against the related collections, and every
// sub-query must settle before the compiled query is returned.
func (c *Compiler) Compile(ctx context.Context, resource *registry.ResourceType, descriptors []Descriptor) (*interfaces.Query, error) {
	query := &interfaces.Query{}

	var relational []Descriptor
	for _, d := range descriptors {
		if strings.Contains(d.Field, ".") {
			relational = append(relational, d)
			continue
		}
		field, err := compileCondition(d)
		if err != nil {
			return nil, err
		}
		query.Conditions = append(query.Conditions, field)
	}

	if len(relational) == 0 {
		return query, nil
	}

	type resolution struct {
		field interfaces.Field
		err   error
	}

	results := make([]resolution, len(relational))
	var wg sync.WaitGroup
	for i, d := range relational {
		wg.Add(1)
		go func(i int, d Descriptor) {
			defer wg.Done()
			field, err := c.resolveRelation(ctx, resource, d)
			results[i] = resolution{field: field, err: err}
		}(i, d)
	}
	wg.Wait()

	for _, res := range results {
		if res.err != nil {
			return nil, res.err
		}
		query.Conditions = append(query.Conditions, res.field)
	}
	return query, nil
}

// compileCondition maps one plain descriptor onto a repository field.
func compileCondition(d Descriptor) (interfaces.Field, error) {
	if column, ok := timestampFields[d.Field]; ok {
		return compileTimestampCondition(column, d)
	}

	field := interfaces.Field{Name: d.Field, IsJSONB: true}

	switch d.Operator {
	case OpEquals:
		field.Operator = "="
		field.Value = d.Value
	case OpNotEqual:
		field.Operator = "<>"
		field.Value = d.Value
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		field.Operator = comparisonOperator(d.Operator)
		if num, err := strconv.ParseFloat(d.Value, 64); err == nil {
			field.Value = num
			field.JSONBCast = "::numeric"
		} else {
			field.Value = d.Value
		}
	case OpLike:
		field.Operator = "REGEX_I"
		field.Value = d.Value
	case OpTrue:
		field.Operator = "="
		field.Value = true
		field.JSONBCast = "::boolean"
	case OpFalse:
		field.Operator = "="
		field.Value = false
		field.JSONBCast = "::boolean"
	default:
		return interfaces.Field{}, adminerrors.InvalidFilterOperator(d.Operator)
	}
	return field, nil
}

func comparisonOperator(op string) string {
	switch op {
	case OpGreaterThan:
		return ">"
	case OpLessThan:
		return "<"
	case OpGreaterOrEqual:
		return ">="
	case OpLessOrEqual:
		return "<="
	}
	return "="
}

// compileTimestampCondition targets an envelope column and coerces the
// value to epoch milliseconds, the representation created_date and
// last_updated are stored in.
func compileTimestampCondition(column string, d Descriptor) (interfaces.Field, error) {
	ts, err := parseTimestamp(d.Value)
	if err != nil {
		return interfaces.Field{}, fmt.Errorf("%w: %s on %s", adminerrors.ErrInvalidFilterValue, d.Value, d.Field)
	}

	field := interfaces.Field{Name: column, Value: ts}
	switch d.Operator {
	case OpEquals:
		field.Operator = "="
	case OpNotEqual:
		field.Operator = "<>"
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		field.Operator = comparisonOperator(d.Operator)
	default:
		return interfaces.Field{}, adminerrors.InvalidFilterOperator(d.Operator)
	}
	return field, nil
}

// parseTimestamp accepts epoch milliseconds or the common date layouts
// and normalizes to epoch milliseconds UTC.
func parseTimestamp(value string) (int64, error) {
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return ms, nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unparseable timestamp %q", value)
}

// resolveRelation turns "owner.username" into a membership condition on
// "owner": the related collection is queried for documents matching the
// attribute predicate, and the ids of the matches become the membership
// set. An empty set compiles to a condition that matches nothing.
func (c *Compiler) resolveRelation(ctx context.Context, resource *registry.ResourceType, d Descriptor) (interfaces.Field, error) {
	parts := strings.SplitN(d.Field, ".", 2)
	refField, attribute := parts[0], parts[1]

	targetName, ok := resource.Relations[refField]
	if !ok {
		return interfaces.Field{}, adminerrors.UnknownRelation(d.Field)
	}
	target, ok := c.registry.Lookup(targetName)
	if !ok {
		return interfaces.Field{}, adminerrors.UnknownRelation(d.Field)
	}

	sub := interfaces.Field{Name: attribute, IsJSONB: true}
	switch d.Operator {
	case OpLike:
		sub.Operator = "REGEX_I"
		sub.Value = d.Value
	case OpNotEqual:
		sub.Operator = "<>"
		sub.Value = d.Value
	default:
		sub.Operator = "="
		sub.Value = d.Value
	}
	subQuery := &interfaces.Query{Conditions: []interfaces.Field{sub}}

	result := <-c.repository.Find(ctx, target.Collection, subQuery, nil)
	if result.Error() != nil {
		return interfaces.Field{}, fmt.Errorf("failed to resolve filter %s: %w", d.Field, result.Error())
	}
	defer result.Close()

	ids := []string{}
	for result.Next() {
		var doc map[string]interface{}
		if err := result.Decode(&doc); err != nil {
			return interfaces.Field{}, fmt.Errorf("failed to decode related document: %w", err)
		}
		if id, ok := doc["objectId"].(string); ok {
			ids = append(ids, id)
		}
	}
	if err := result.Error(); err != nil {
		return interfaces.Field{}, fmt.Errorf("failed to resolve filter %s: %w", d.Field, err)
	}

	return interfaces.Field{Name: refField, IsJSONB: true, Operator: "=", Value: ids}, nil
}
