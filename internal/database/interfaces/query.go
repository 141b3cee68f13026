package interfaces

// Field represents a single condition in a query. Name is the logical
// field: either one of the indexed envelope columns ("object_id",
// "created_date", "last_updated") or, with IsJSONB set, a key inside the
// document body. Each backend renders the name into its native form.
type Field struct {
	Name      string      // Logical field name, or envelope column name when IsJSONB is false.
	Value     interface{} // The value to query against. Slice values become membership clauses.
	Operator  string      // The abstract operator ("=", ">", "<", ">=", "<=", "<>", "REGEX_I").
	IsJSONB   bool        // True if Name addresses a key in the document body.
	JSONBCast string      // Optional value cast hint for SQL backends (e.g., "::numeric", "::boolean").
}

// Query defines a structured, database-agnostic query.
// The admin layer's filter compiler produces these; each backend renders
// them into its native predicate form. An empty Query matches everything.
type Query struct {
	Conditions []Field   // A list of AND conditions.
	OrGroups   [][]Field // A list of OR groups, each joined by OR, ANDed with the rest.
}
