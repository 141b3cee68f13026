// Package csvcodec implements the CSV dialect of the admin export and
// import endpoints. Every encoded cell is quoted; embedded JSON objects
// and arrays survive a decode/encode round trip unchanged because
// quote-escaping is applied symmetrically on both sides.
package csvcodec

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayout is how time values are rendered in exported cells.
const DateLayout = "2006-01-02 15:04:05"

// Encode renders rows under the given header in the export dialect.
// Cells follow the header order; fields missing from a row encode as
// empty cells. Structured values (maps, slices) are embedded as JSON.
func Encode(headers []string, rows []map[string]interface{}) string {
	var b strings.Builder

	for i, h := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeCell(h))
	}

	for _, row := range rows {
		b.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(encodeCell(row[h]))
		}
	}
	return b.String()
}

// encodeCell quotes a single value. Quotes inside the value double up,
// which keeps embedded JSON parseable after the decoder unescapes.
func encodeCell(value interface{}) string {
	var text string
	switch v := value.(type) {
	case nil:
		text = ""
	case string:
		text = v
	case time.Time:
		text = v.UTC().Format(DateLayout)
	case map[string]interface{}, []interface{}, []string:
		raw, err := json.Marshal(v)
		if err != nil {
			text = fmt.Sprintf("%v", v)
		} else {
			text = string(raw)
		}
	case float64:
		// JSON numbers decode as float64; render integers without the
		// trailing fraction
		if v == float64(int64(v)) {
			text = fmt.Sprintf("%d", int64(v))
		} else {
			text = fmt.Sprintf("%v", v)
		}
	default:
		text = fmt.Sprintf("%v", v)
	}
	return `"` + strings.ReplaceAll(text, `"`, `""`) + `"`
}

// Decode tokenizes CSV text into rows of string cells. The tokenizer
// recognizes quoted cells with doubled-quote escapes, bare cells, and
// row breaks on CR, LF or CRLF; newlines inside quoted cells are kept.
// An empty delimiter defaults to a comma.
func Decode(text string, delimiter string) [][]string {
	if delimiter == "" {
		delimiter = ","
	}
	d := regexp.QuoteMeta(delimiter)

	// Each token is a leading separator (delimiter, row break, or start
	// of input) followed by either a quoted or a bare cell.
	pattern := regexp.MustCompile(
		`(` + d + `|\r\n|\r|\n|^)` +
			`(?:"((?:[^"]|"")*)"|([^"` + d + `\r\n]*))`)

	rows := [][]string{{}}
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		separator := text[m[2]:m[3]]
		if separator != "" && separator != delimiter {
			rows = append(rows, []string{})
		}

		var cell string
		if m[4] >= 0 {
			cell = strings.ReplaceAll(text[m[4]:m[5]], `""`, `"`)
		} else {
			cell = text[m[6]:m[7]]
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], cell)
	}

	// A trailing row break leaves a dangling empty row behind
	if last := rows[len(rows)-1]; len(rows) > 1 && len(last) == 1 && last[0] == "" {
		rows = rows[:len(rows)-1]
	}
	return rows
}
