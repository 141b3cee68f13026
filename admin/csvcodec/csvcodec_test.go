package csvcodec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	t.Run("quotes every cell", func(t *testing.T) {
		out := Encode([]string{"name", "score"}, []map[string]interface{}{
			{"name": "alice", "score": float64(42)},
		})
		assert.Equal(t, "\"name\",\"score\"\n\"alice\",\"42\"", out)
	})

	t.Run("missing fields encode as empty cells", func(t *testing.T) {
		out := Encode([]string{"name", "email"}, []map[string]interface{}{
			{"name": "bob"},
		})
		assert.Equal(t, "\"name\",\"email\"\n\"bob\",\"\"", out)
	})

	t.Run("doubles embedded quotes", func(t *testing.T) {
		out := Encode([]string{"quote"}, []map[string]interface{}{
			{"quote": `say "hi"`},
		})
		assert.Equal(t, "\"quote\"\n\"say \"\"hi\"\"\"", out)
	})

	t.Run("structured values embed as JSON", func(t *testing.T) {
		out := Encode([]string{"tags"}, []map[string]interface{}{
			{"tags": []interface{}{"a", "b"}},
		})
		assert.Equal(t, "\"tags\"\n\"[\"\"a\"\",\"\"b\"\"]\"", out)
	})

	t.Run("dates render in the export layout", func(t *testing.T) {
		ts := time.Date(2024, 3, 7, 15, 30, 0, 0, time.UTC)
		out := Encode([]string{"createdAt"}, []map[string]interface{}{
			{"createdAt": ts},
		})
		assert.Equal(t, "\"createdAt\"\n\"2024-03-07 15:30:00\"", out)
	})
}

func TestDecode(t *testing.T) {
	t.Run("splits rows and cells", func(t *testing.T) {
		rows := Decode("a,b\nc,d", ",")
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"a", "b"}, rows[0])
		assert.Equal(t, []string{"c", "d"}, rows[1])
	})

	t.Run("unescapes quoted cells", func(t *testing.T) {
		rows := Decode("\"say \"\"hi\"\"\",plain", ",")
		require.Len(t, rows, 1)
		assert.Equal(t, []string{`say "hi"`, "plain"}, rows[0])
	})

	t.Run("keeps newlines inside quoted cells", func(t *testing.T) {
		rows := Decode("\"line1\nline2\",x", ",")
		require.Len(t, rows, 1)
		assert.Equal(t, "line1\nline2", rows[0][0])
	})

	t.Run("handles CRLF row breaks", func(t *testing.T) {
		rows := Decode("a,b\r\nc,d", ",")
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"c", "d"}, rows[1])
	})

	t.Run("trailing newline does not add a row", func(t *testing.T) {
		rows := Decode("a,b\nc,d\n", ",")
		assert.Len(t, rows, 2)
	})

	t.Run("supports a custom delimiter", func(t *testing.T) {
		rows := Decode("a;b\nc;d", ";")
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"a", "b"}, rows[0])
	})
}

func TestRoundTrip(t *testing.T) {
	t.Run("rows survive encode then decode", func(t *testing.T) {
		headers := []string{"name", "bio", "meta"}
		rows := []map[string]interface{}{
			{"name": "alice", "bio": "likes \"go\"", "meta": map[string]interface{}{"k": "v"}},
			{"name": "bob", "bio": "multi\nline", "meta": []interface{}{"x"}},
		}

		decoded := Decode(Encode(headers, rows), ",")
		require.Len(t, decoded, 3)
		assert.Equal(t, headers, decoded[0])
		assert.Equal(t, []string{"alice", `likes "go"`, `{"k":"v"}`}, decoded[1])
		assert.Equal(t, []string{"bob", "multi\nline", `["x"]`}, decoded[2])
	})

	t.Run("embedded JSON stays parseable twice", func(t *testing.T) {
		headers := []string{"meta"}
		rows := []map[string]interface{}{
			{"meta": map[string]interface{}{"nested": []interface{}{"a", "b"}}},
		}

		once := Decode(Encode(headers, rows), ",")
		again := Decode(Encode(headers, []map[string]interface{}{{"meta": once[1][0]}}), ",")
		assert.Equal(t, once[1][0], again[1][0])
	})
}
