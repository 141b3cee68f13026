package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	uuid "github.com/gofrs/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
	"github.com/joefour/SnapJS-AdminServer/internal/pkg/log"
	"github.com/joefour/SnapJS-AdminServer/internal/utils"
)

// PostgreSQLRepository implements the Repository interface on top of
// per-collection JSONB tables. Each "collection" is a table with an
// object_id key column and a data JSONB column holding the document.
type PostgreSQLRepository struct {
	db     *sqlx.DB
	dbName string
	schema string
}

// PostgreSQLQueryResult implements QueryResult for PostgreSQL
type PostgreSQLQueryResult struct {
	rows   *sql.Rows
	err    error
	closed bool
}

// PostgreSQLSingleResult implements SingleResult for PostgreSQL
type PostgreSQLSingleResult struct {
	row      *sql.Row
	err      error
	noResult bool
}

// NewPostgreSQLRepository connects and prepares the schema.
func NewPostgreSQLRepository(ctx context.Context, config *interfaces.PostgreSQLConfig, databaseName string) (*PostgreSQLRepository, error) {
	connStr := buildConnectionString(config, databaseName)

	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(config.MaxOpenConnections)
	}
	if config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(config.MaxIdleConnections)
	}
	if config.MaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Second)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	schema := "public"
	if config.Schema != "" {
		schema = config.Schema
	}

	repo := &PostgreSQLRepository{
		db:     db,
		dbName: databaseName,
		schema: schema,
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// buildConnectionString builds a PostgreSQL connection string from config
func buildConnectionString(config *interfaces.PostgreSQLConfig, databaseName string) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("host=%s", config.Host))
	parts = append(parts, fmt.Sprintf("port=%d", config.Port))
	parts = append(parts, fmt.Sprintf("dbname=%s", databaseName))

	if config.Username != "" {
		parts = append(parts, fmt.Sprintf("user=%s", config.Username))
	}
	if config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", config.Password))
	}

	parts = append(parts, fmt.Sprintf("sslmode=%s", config.SSLMode))

	if config.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", config.ConnectTimeout))
	}

	return strings.Join(parts, " ")
}

func (r *PostgreSQLRepository) getTableName(collectionName string) string {
	return fmt.Sprintf("%s.%s", r.schema, collectionName)
}

func (r *PostgreSQLRepository) generateIndexName(collectionName, indexType string) string {
	sanitized := strings.ReplaceAll(collectionName, "-", "_")
	sanitized = strings.ReplaceAll(sanitized, ".", "_")
	return fmt.Sprintf("idx_%s_%s", sanitized, indexType)
}

// ensureTable creates the collection table if it does not exist yet.
func (r *PostgreSQLRepository) ensureTable(ctx context.Context, collectionName string) error {
	tableName := r.getTableName(collectionName)

	var exists bool
	checkQuery := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	)`
	if err := r.db.QueryRowContext(ctx, checkQuery, r.schema, collectionName).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check for existence of table %s: %w", tableName, err)
	}
	if exists {
		return nil
	}

	createQuery := fmt.Sprintf(`
	CREATE TABLE %s (
		id BIGSERIAL PRIMARY KEY,
		object_id VARCHAR(255) UNIQUE NOT NULL,
		data JSONB NOT NULL,
		created_date BIGINT,
		last_updated BIGINT
	)`, tableName)

	if _, err := r.db.ExecContext(ctx, createQuery); err != nil {
		// Tolerate concurrent table creation
		if pgErr, ok := err.(*pq.Error); ok {
			switch pgErr.Code {
			case "42P07": // duplicate_table
				return nil
			case "23505": // unique_violation on pg_class during a create race
				if strings.Contains(pgErr.Message, "pg_class_relname_nsp_index") {
					return nil
				}
			}
		}
		return fmt.Errorf("failed to create table %s: %w", tableName, err)
	}

	indexQueries := []string{
		fmt.Sprintf("CREATE INDEX %s ON %s (object_id)",
			r.generateIndexName(collectionName, "object_id"), tableName),
		fmt.Sprintf("CREATE INDEX %s ON %s (created_date)",
			r.generateIndexName(collectionName, "created_date"), tableName),
		fmt.Sprintf("CREATE INDEX %s ON %s USING GIN (data)",
			r.generateIndexName(collectionName, "data_gin"), tableName),
	}
	for _, indexQuery := range indexQueries {
		if _, err := r.db.ExecContext(ctx, indexQuery); err != nil {
			log.Warn("Failed to create index: %s", err.Error())
		}
	}

	return nil
}

// Save stores a single document.
func (r *PostgreSQLRepository) Save(ctx context.Context, collectionName string, objectID uuid.UUID, createdDate, lastUpdated int64, data interface{}) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		jsonData, err := json.Marshal(data)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: fmt.Errorf("failed to marshal data: %w", err)}
			return
		}

		tableName := r.getTableName(collectionName)
		query := fmt.Sprintf(`
			INSERT INTO %s (object_id, data, created_date, last_updated)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, tableName)

		var id int64
		err = r.db.QueryRowContext(ctx, query, objectID.String(), jsonData, createdDate, lastUpdated).Scan(&id)
		if err != nil {
			if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
				result <- interfaces.RepositoryResult{Error: interfaces.ErrDuplicateKey}
				return
			}
			log.Error("PostgreSQL Save error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		result <- interfaces.RepositoryResult{Result: id}
	}()

	return result
}

// Find retrieves documents matching the query.
func (r *PostgreSQLRepository) Find(ctx context.Context, collectionName string, query *interfaces.Query, opts *interfaces.FindOptions) <-chan interfaces.QueryResult {
	result := make(chan interfaces.QueryResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- &PostgreSQLQueryResult{err: err}
			return
		}

		fullQuery := fmt.Sprintf("SELECT data FROM %s", r.getTableName(collectionName))

		whereClause, namedArgs, positionalArgs, err := r.buildWhereClause(query)
		if err != nil {
			result <- &PostgreSQLQueryResult{err: err}
			return
		}
		if whereClause != "" && whereClause != "TRUE" {
			fullQuery += " WHERE " + whereClause
		}

		if opts != nil && opts.Sort != nil {
			if orderBy := r.buildOrderByClause(opts.Sort); orderBy != "" {
				fullQuery += " ORDER BY " + orderBy
			}
		}
		if opts != nil {
			if opts.Limit != nil {
				fullQuery += fmt.Sprintf(" LIMIT %d", *opts.Limit)
			}
			if opts.Skip != nil {
				fullQuery += fmt.Sprintf(" OFFSET %d", *opts.Skip)
			}
		}

		finalQuery, allArgs, err := r.bindQuery(fullQuery, namedArgs, positionalArgs)
		if err != nil {
			result <- &PostgreSQLQueryResult{err: err}
			return
		}

		rows, err := r.db.QueryContext(ctx, finalQuery, allArgs...)
		if err != nil {
			log.Error("PostgreSQL Find error: %s", err.Error())
			result <- &PostgreSQLQueryResult{err: err}
			return
		}

		result <- &PostgreSQLQueryResult{rows: rows}
	}()

	return result
}

// FindOne retrieves a single document matching the query.
func (r *PostgreSQLRepository) FindOne(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.SingleResult {
	result := make(chan interfaces.SingleResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- &PostgreSQLSingleResult{err: err}
			return
		}

		fullQuery := fmt.Sprintf("SELECT data FROM %s", r.getTableName(collectionName))

		whereClause, namedArgs, positionalArgs, err := r.buildWhereClause(query)
		if err != nil {
			result <- &PostgreSQLSingleResult{err: err}
			return
		}
		if whereClause != "" && whereClause != "TRUE" {
			fullQuery += " WHERE " + whereClause
		}
		fullQuery += " LIMIT 1"

		finalQuery, allArgs, err := r.bindQuery(fullQuery, namedArgs, positionalArgs)
		if err != nil {
			result <- &PostgreSQLSingleResult{err: err}
			return
		}

		row := r.db.QueryRowContext(ctx, finalQuery, allArgs...)
		result <- &PostgreSQLSingleResult{row: row}
	}()

	return result
}

// Update updates documents matching the query. With Upsert set, the
// document is inserted when the object_id does not exist yet.
func (r *PostgreSQLRepository) Update(ctx context.Context, collectionName string, query *interfaces.Query, data interface{}, opts *interfaces.UpdateOptions) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		jsonData, err := json.Marshal(data)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: fmt.Errorf("failed to marshal data: %w", err)}
			return
		}

		tableName := r.getTableName(collectionName)
		// Envelope timestamps are epoch milliseconds everywhere
		now := utils.UTCNowUnixMilli()

		if opts != nil && opts.Upsert != nil && *opts.Upsert {
			objectID := extractObjectID(query)
			if objectID == "" {
				result <- interfaces.RepositoryResult{Error: fmt.Errorf("upsert requires object_id in query conditions")}
				return
			}

			upsertQuery := fmt.Sprintf(`
				INSERT INTO %s (object_id, data, created_date, last_updated)
				VALUES ($1, $2::jsonb, $3, $4)
				ON CONFLICT (object_id)
				DO UPDATE SET
					data = $2::jsonb,
					last_updated = $4`, tableName)

			if _, err := r.db.ExecContext(ctx, upsertQuery, objectID, jsonData, now, now); err != nil {
				result <- interfaces.RepositoryResult{Error: fmt.Errorf("upsert failed: %w", err)}
				return
			}

			result <- interfaces.RepositoryResult{Result: "OK"}
			return
		}

		whereClause, namedArgs, positionalArgs, err := r.buildWhereClause(query)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		fullQuery := fmt.Sprintf("UPDATE %s SET data = :doc::jsonb, last_updated = :lu", tableName)
		if whereClause != "" && whereClause != "TRUE" {
			fullQuery += " WHERE " + whereClause
		}

		if namedArgs == nil {
			namedArgs = make(map[string]interface{})
		}
		namedArgs["doc"] = string(jsonData)
		namedArgs["lu"] = now

		finalQuery, allArgs, err := r.bindQuery(fullQuery, namedArgs, positionalArgs)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		execResult, err := r.db.ExecContext(ctx, finalQuery, allArgs...)
		if err != nil {
			log.Error("PostgreSQL Update error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		rowsAffected, err := execResult.RowsAffected()
		if err != nil {
			result <- interfaces.RepositoryResult{Error: fmt.Errorf("failed to get rows affected: %w", err)}
			return
		}
		if rowsAffected == 0 {
			result <- interfaces.RepositoryResult{Error: interfaces.ErrNoDocuments}
			return
		}

		result <- interfaces.RepositoryResult{Result: "OK"}
	}()

	return result
}

// Delete deletes documents matching the query.
func (r *PostgreSQLRepository) Delete(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.RepositoryResult {
	result := make(chan interfaces.RepositoryResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		whereClause, namedArgs, positionalArgs, err := r.buildWhereClause(query)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		fullQuery := fmt.Sprintf("DELETE FROM %s", r.getTableName(collectionName))
		if whereClause != "" && whereClause != "TRUE" {
			fullQuery += " WHERE " + whereClause
		}

		finalQuery, allArgs, err := r.bindQuery(fullQuery, namedArgs, positionalArgs)
		if err != nil {
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		execResult, err := r.db.ExecContext(ctx, finalQuery, allArgs...)
		if err != nil {
			log.Error("PostgreSQL Delete error: %s", err.Error())
			result <- interfaces.RepositoryResult{Error: err}
			return
		}

		rowsAffected, err := execResult.RowsAffected()
		if err != nil {
			result <- interfaces.RepositoryResult{Error: fmt.Errorf("failed to get rows affected: %w", err)}
			return
		}
		if rowsAffected == 0 {
			result <- interfaces.RepositoryResult{Error: interfaces.ErrNoDocuments}
			return
		}

		result <- interfaces.RepositoryResult{Result: "OK"}
	}()

	return result
}

// Count counts documents matching the query.
func (r *PostgreSQLRepository) Count(ctx context.Context, collectionName string, query *interfaces.Query) <-chan interfaces.CountResult {
	result := make(chan interfaces.CountResult)

	go func() {
		defer close(result)

		if err := r.ensureTable(ctx, collectionName); err != nil {
			result <- interfaces.CountResult{Error: err}
			return
		}

		whereClause, namedArgs, positionalArgs, err := r.buildWhereClause(query)
		if err != nil {
			result <- interfaces.CountResult{Error: err}
			return
		}

		fullQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", r.getTableName(collectionName))
		if whereClause != "" && whereClause != "TRUE" {
			fullQuery += " WHERE " + whereClause
		}

		finalQuery, allArgs, err := r.bindQuery(fullQuery, namedArgs, positionalArgs)
		if err != nil {
			result <- interfaces.CountResult{Error: err}
			return
		}

		var count int64
		if err := r.db.QueryRowContext(ctx, finalQuery, allArgs...).Scan(&count); err != nil {
			log.Error("PostgreSQL Count error: %s", err.Error())
			result <- interfaces.CountResult{Error: err}
			return
		}

		result <- interfaces.CountResult{Count: count}
	}()

	return result
}

// Ping checks database connectivity.
func (r *PostgreSQLRepository) Ping(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- r.db.PingContext(ctx)
	}()
	return result
}

// Close closes the database connection pool.
func (r *PostgreSQLRepository) Close() error {
	return r.db.Close()
}

// extractObjectID pulls the object_id condition out of a query, used by upsert.
func extractObjectID(query *interfaces.Query) string {
	if query == nil {
		return ""
	}
	for _, field := range query.Conditions {
		if field.Name == "object_id" && !field.IsJSONB {
			switch v := field.Value.(type) {
			case string:
				return v
			case uuid.UUID:
				return v.String()
			}
		}
	}
	return ""
}

// buildWhereClause renders a structured Query into a SQL WHERE clause.
// Scalar values become named parameters handled by sqlx; slice values
// become temporary positional placeholders carrying pq.Array arguments,
// resolved in bindQuery after sqlx numbering is known.
func (r *PostgreSQLRepository) buildWhereClause(query *interfaces.Query) (string, map[string]interface{}, []interface{}, error) {
	if query == nil || (len(query.Conditions) == 0 && len(query.OrGroups) == 0) {
		return "TRUE", nil, nil, nil
	}

	conditions := []string{}
	namedArgs := make(map[string]interface{})
	positionalArgs := []interface{}{}
	paramCounter := 0

	nextNamedParam := func() string {
		p := fmt.Sprintf("p%d", paramCounter)
		paramCounter++
		return p
	}

	processField := func(field interfaces.Field) string {
		columnExpr := field.Name
		if field.IsJSONB {
			columnExpr = fmt.Sprintf("data->>'%s'", field.Name)
		}
		if field.JSONBCast != "" {
			columnExpr = fmt.Sprintf("(%s)%s", columnExpr, field.JSONBCast)
		}

		val := reflect.ValueOf(field.Value)
		if field.Value != nil && val.Kind() == reflect.Slice {
			// Empty membership set matches nothing
			if val.Len() == 0 {
				return "FALSE"
			}
			arrayIndex := len(positionalArgs)
			placeholder := fmt.Sprintf("__ARRAY_PARAM_%d__", arrayIndex)
			positionalArgs = append(positionalArgs, pq.Array(field.Value))
			return fmt.Sprintf("%s = ANY(%s)", columnExpr, placeholder)
		}

		paramName := nextNamedParam()
		namedArgs[paramName] = field.Value

		switch field.Operator {
		case "REGEX_I":
			// Case-insensitive regex match
			return fmt.Sprintf("%s ~* :%s", columnExpr, paramName)
		default: // Standard operators (=, <, >, <=, >=, <>)
			return fmt.Sprintf("%s %s :%s", columnExpr, field.Operator, paramName)
		}
	}

	for _, field := range query.Conditions {
		conditions = append(conditions, processField(field))
	}

	for _, orGroup := range query.OrGroups {
		orConditions := []string{}
		for _, field := range orGroup {
			orConditions = append(orConditions, processField(field))
		}
		if len(orConditions) > 0 {
			conditions = append(conditions, fmt.Sprintf("(%s)", strings.Join(orConditions, " OR ")))
		}
	}

	if len(conditions) == 0 {
		return "TRUE", nil, nil, nil
	}

	return strings.Join(conditions, " AND "), namedArgs, positionalArgs, nil
}

// bindQuery converts named parameters to positional ones and resolves the
// temporary array placeholders produced by buildWhereClause.
// sqlx.BindNamed matches :name patterns, which would also match ::type
// casts, so casts are escaped with #CAST# around the bind step.
func (r *PostgreSQLRepository) bindQuery(fullQuery string, namedArgs map[string]interface{}, positionalArgs []interface{}) (string, []interface{}, error) {
	tempEscapedQuery := strings.ReplaceAll(fullQuery, "::", "#CAST#")

	var reboundQuery string
	var namedArgsSlice []interface{}
	if len(namedArgs) > 0 {
		var err error
		reboundQuery, namedArgsSlice, err = r.db.BindNamed(tempEscapedQuery, namedArgs)
		if err != nil {
			return "", nil, fmt.Errorf("failed to bind named query: %w", err)
		}
	} else {
		reboundQuery = r.db.Rebind(tempEscapedQuery)
		namedArgsSlice = []interface{}{}
	}

	finalQuery := reboundQuery
	for i := range positionalArgs {
		tempPlaceholder := fmt.Sprintf("__ARRAY_PARAM_%d__", i)
		finalPlaceholder := fmt.Sprintf("$%d", len(namedArgsSlice)+i+1)
		finalQuery = strings.Replace(finalQuery, tempPlaceholder, finalPlaceholder, 1)
	}

	finalQuery = strings.ReplaceAll(finalQuery, "#CAST#", "::")

	allArgs := append(namedArgsSlice, positionalArgs...)
	return finalQuery, allArgs, nil
}

// buildOrderByClause renders the sort map. Envelope columns sort on the
// indexed column, anything else on the document body.
func (r *PostgreSQLRepository) buildOrderByClause(sort map[string]int) string {
	parts := []string{}
	for field, direction := range sort {
		expr := field
		switch field {
		case "object_id", "created_date", "last_updated", "id":
		default:
			expr = fmt.Sprintf("data->>'%s'", field)
		}
		dir := "ASC"
		if direction < 0 {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", expr, dir))
	}
	return strings.Join(parts, ", ")
}

// Next advances the cursor.
func (qr *PostgreSQLQueryResult) Next() bool {
	if qr.err != nil || qr.rows == nil || qr.closed {
		return false
	}
	return qr.rows.Next()
}

// Decode unmarshals the current row's JSONB document into v.
func (qr *PostgreSQLQueryResult) Decode(v interface{}) error {
	if qr.err != nil {
		return qr.err
	}
	var raw []byte
	if err := qr.rows.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Close releases the underlying rows.
func (qr *PostgreSQLQueryResult) Close() {
	if qr.rows != nil && !qr.closed {
		qr.rows.Close()
		qr.closed = true
	}
}

// Error returns the cursor error, if any.
func (qr *PostgreSQLQueryResult) Error() error {
	return qr.err
}

// Decode unmarshals the single row's JSONB document into v.
func (sr *PostgreSQLSingleResult) Decode(v interface{}) error {
	if sr.err != nil {
		return sr.err
	}
	var raw []byte
	if err := sr.row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			sr.noResult = true
			return interfaces.ErrNoDocuments
		}
		return err
	}
	return json.Unmarshal(raw, v)
}

// Error returns the result error, if any.
func (sr *PostgreSQLSingleResult) Error() error {
	return sr.err
}

// NoResult reports whether the query matched no document.
func (sr *PostgreSQLSingleResult) NoResult() bool {
	return sr.noResult
}
