// Package errors defines the error taxonomy of the admin resource layer
// and the single place where service errors are mapped onto HTTP
// responses.
package errors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Sentinel errors returned by the admin services. Handlers translate
// them with HandleServiceError; everything else becomes a 500.
var (
	// ErrResourceNotFound means the :resource URL segment names nothing
	// in the registry.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrDocumentNotFound means the addressed document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrInvalidFilterOperator means a filter descriptor carried an
	// operator outside the supported set.
	ErrInvalidFilterOperator = errors.New("invalid filter operator")

	// ErrInvalidFilterValue means a filter value could not be coerced to
	// the type the field requires, e.g. a date filter on createdAt.
	ErrInvalidFilterValue = errors.New("invalid filter value")

	// ErrUnknownRelation means a dotted filter referenced a field that
	// is not declared as a relation of the resource.
	ErrUnknownRelation = errors.New("unknown relation")

	// ErrUnknownCSVHeader means an import file carried a column that is
	// not a field of the resource. The whole batch is rejected.
	ErrUnknownCSVHeader = errors.New("unknown csv header")

	// ErrEmptyCSV means the import file had no header row.
	ErrEmptyCSV = errors.New("empty csv file")

	// ErrUpstreamFetch means the import file could not be retrieved from
	// object storage.
	ErrUpstreamFetch = errors.New("failed to fetch import file")

	// ErrInvalidRequest covers malformed request bodies and parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error codes used in response bodies.
const (
	CodeResourceNotFound = "RESOURCE_NOT_FOUND"
	CodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	CodeInvalidFilter    = "INVALID_FILTER"
	CodeInvalidCSV       = "INVALID_CSV"
	CodeUpstreamFetch    = "UPSTREAM_FETCH_FAILED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInternalError    = "INTERNAL_ERROR"
)

// NewErrorBody builds the structured error envelope every admin error
// response carries.
func NewErrorBody(code, message string) fiber.Map {
	return fiber.Map{
		"errors": fiber.Map{
			"code":    code,
			"message": message,
		},
	}
}

// HandleServiceError maps a service error to the appropriate HTTP
// response. Unknown errors are reported as internal without leaking the
// underlying message.
func HandleServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrResourceNotFound):
		return c.Status(fiber.StatusNotFound).JSON(NewErrorBody(CodeResourceNotFound, err.Error()))
	case errors.Is(err, ErrDocumentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(NewErrorBody(CodeDocumentNotFound, err.Error()))
	case errors.Is(err, ErrInvalidFilterOperator),
		errors.Is(err, ErrInvalidFilterValue),
		errors.Is(err, ErrUnknownRelation):
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorBody(CodeInvalidFilter, err.Error()))
	case errors.Is(err, ErrUnknownCSVHeader), errors.Is(err, ErrEmptyCSV):
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorBody(CodeInvalidCSV, err.Error()))
	case errors.Is(err, ErrUpstreamFetch):
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorBody(CodeUpstreamFetch, err.Error()))
	case errors.Is(err, ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(NewErrorBody(CodeInvalidRequest, err.Error()))
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(
			NewErrorBody(CodeInternalError, "internal server error"))
	}
}

// ResourceNotFound wraps ErrResourceNotFound with the offending name.
func ResourceNotFound(name string) error {
	return fmt.Errorf("%w: %s", ErrResourceNotFound, name)
}

// DocumentNotFound wraps ErrDocumentNotFound with the document id.
func DocumentNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
}

// InvalidFilterOperator wraps ErrInvalidFilterOperator with the operator.
func InvalidFilterOperator(op string) error {
	return fmt.Errorf("%w: %q", ErrInvalidFilterOperator, op)
}

// UnknownRelation wraps ErrUnknownRelation with the dotted field.
func UnknownRelation(field string) error {
	return fmt.Errorf("%w: %s", ErrUnknownRelation, field)
}

// UnknownCSVHeader wraps ErrUnknownCSVHeader with the header name.
func UnknownCSVHeader(header string) error {
	return fmt.Errorf("%w: column %q is not a field of this resource", ErrUnknownCSVHeader, header)
}
