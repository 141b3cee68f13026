// Package importer reconciles decoded CSV rows against a collection.
// Rows carrying an objectId update the existing document in place; the
// rest are created fresh. Rows persist concurrently and the batch
// settles only after every row has.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	uuid "github.com/gofrs/uuid"

	adminerrors "github.com/joefour/SnapJS-AdminServer/admin/errors"
	"github.com/joefour/SnapJS-AdminServer/admin/registry"
	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/internal/utils"
)

// RowError records one failed row. Row numbers are 1-based and count
// the header, matching what the operator sees in a spreadsheet.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

// Report summarizes a finished import batch.
type Report struct {
	Total     int
	Succeeded int
	Failed    []RowError
}

// MaxReportedErrors caps how many row errors a response enumerates;
// the rest collapse into a summary line.
const MaxReportedErrors = 5

// ErrorBody renders the report's failures for an error response. At
// most MaxReportedErrors rows are listed; overflow is summarized.
func (r *Report) ErrorBody() map[string]interface{} {
	listed := r.Failed
	var summary string
	if len(listed) > MaxReportedErrors {
		summary = fmt.Sprintf("%d more errors", len(listed)-MaxReportedErrors)
		listed = listed[:MaxReportedErrors]
	}
	body := map[string]interface{}{
		"code":    adminerrors.CodeInvalidCSV,
		"message": fmt.Sprintf("%d of %d rows failed to import", len(r.Failed), r.Total),
		"rows":    listed,
	}
	if summary != "" {
		body["summary"] = summary
	}
	return map[string]interface{}{"errors": body}
}

// Reconciler persists decoded CSV rows into a resource's collection.
type Reconciler struct {
	repository interfaces.Repository
}

// NewReconciler creates a row import reconciler.
func NewReconciler(repo interfaces.Repository) *Reconciler {
	return &Reconciler{repository: repo}
}

// Import validates the header row and persists every data row. Unknown
// headers reject the whole batch before anything is written; after
// that, each row succeeds or fails independently and failures are
// collected into the report.
func (r *Reconciler) Import(ctx context.Context, resource *registry.ResourceType, rows [][]string) (*Report, error) {
	if len(rows) == 0 || len(rows[0]) == 0 || (len(rows[0]) == 1 && rows[0][0] == "") {
		return nil, adminerrors.ErrEmptyCSV
	}

	headers := rows[0]
	for _, h := range headers {
		if !resource.HasField(h) {
			return nil, adminerrors.UnknownCSVHeader(h)
		}
	}

	dataRows := rows[1:]
	report := &Report{Total: len(dataRows)}
	if len(dataRows) == 0 {
		return report, nil
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	fail := func(rowNumber int, err error) {
		mu.Lock()
		report.Failed = append(report.Failed, RowError{Row: rowNumber, Message: err.Error()})
		mu.Unlock()
	}

	for i, row := range dataRows {
		// Spreadsheet row number: header is row 1
		rowNumber := i + 2

		doc, objectID, err := buildDocument(resource, headers, row)
		if err != nil {
			fail(rowNumber, err)
			continue
		}

		wg.Add(1)
		go func(rowNumber int, doc map[string]interface{}, objectID string) {
			defer wg.Done()
			if err := r.persistRow(ctx, resource, doc, objectID); err != nil {
				log.ErrorWithContext(ctx, "import row %d failed: %v", rowNumber, err)
				fail(rowNumber, err)
			}
		}(rowNumber, doc, objectID)
	}
	wg.Wait()

	sort.Slice(report.Failed, func(a, b int) bool {
		return report.Failed[a].Row < report.Failed[b].Row
	})
	report.Succeeded = report.Total - len(report.Failed)
	return report, nil
}

// buildDocument maps one row onto a document. Bracketed cells are
// parsed as embedded JSON; a cell that looks structured but does not
// parse fails the row. Protected fields are dropped silently.
func buildDocument(resource *registry.ResourceType, headers []string, row []string) (map[string]interface{}, string, error) {
	doc := make(map[string]interface{}, len(headers))
	var objectID string

	for i, header := range headers {
		// Short rows pad with empty cells
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if header == "objectId" {
			objectID = cell
			continue
		}
		if resource.IsProtected(header) {
			continue
		}

		trimmed := strings.TrimSpace(cell)
		if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
			var parsed interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
				return nil, "", fmt.Errorf("malformed JSON in column %q: %v", header, err)
			}
			doc[header] = parsed
			continue
		}
		doc[header] = cell
	}
	return doc, objectID, nil
}

// persistRow updates the existing document when the row carries a known
// objectId, otherwise creates a new one. Updates merge the imported
// fields over the stored document so columns absent from the file are
// preserved.
func (r *Reconciler) persistRow(ctx context.Context, resource *registry.ResourceType, doc map[string]interface{}, objectID string) error {
	if objectID != "" {
		query := &interfaces.Query{Conditions: []interfaces.Field{
			{Name: "object_id", Value: objectID, Operator: "="},
		}}

		existing := <-r.repository.FindOne(ctx, resource.Collection, query)
		var current map[string]interface{}
		// A missing document only surfaces while decoding
		switch err := existing.Decode(&current); {
		case err == nil:
			for k, v := range doc {
				current[k] = v
			}
			result := <-r.repository.Update(ctx, resource.Collection, query, current, nil)
			if result.Error != nil {
				return fmt.Errorf("failed to update document %s: %w", objectID, result.Error)
			}
			return nil
		case err == interfaces.ErrNoDocuments || existing.NoResult():
			// Unknown id: fall through and create a fresh document
		default:
			return fmt.Errorf("failed to look up document %s: %w", objectID, err)
		}
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("failed to generate object id: %w", err)
	}
	doc["objectId"] = id.String()

	now := utils.UTCNowUnixMilli()
	result := <-r.repository.Save(ctx, resource.Collection, id, now, now, doc)
	if result.Error != nil {
		return fmt.Errorf("failed to create document: %w", result.Error)
	}
	return nil
}
