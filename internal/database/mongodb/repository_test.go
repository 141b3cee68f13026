package mongodb

import (
	"testing"

	uuid "github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/joefour/SnapJS-AdminServer/internal/database/interfaces"
)

func TestBuildCondition(t *testing.T) {
	t.Run("standard operators map to their bson forms", func(t *testing.T) {
		cases := []struct {
			operator string
			bsonKey  string
		}{
			{"=", "$eq"},
			{"<>", "$ne"},
			{">", "$gt"},
			{"<", "$lt"},
			{">=", "$gte"},
			{"<=", "$lte"},
		}
		for _, tc := range cases {
			name, cond := buildCondition(interfaces.Field{
				Name: "score", IsJSONB: true, Operator: tc.operator, Value: 10,
			})
			assert.Equal(t, "score", name)
			assert.Equal(t, bson.M{tc.bsonKey: 10}, cond, tc.operator)
		}
	})

	t.Run("REGEX_I maps to a case-insensitive regex", func(t *testing.T) {
		_, cond := buildCondition(interfaces.Field{
			Name: "username", IsJSONB: true, Operator: "REGEX_I", Value: "ali",
		})
		assert.Equal(t, bson.M{"$regex": "ali", "$options": "i"}, cond)
	})

	t.Run("slice values map to membership", func(t *testing.T) {
		_, cond := buildCondition(interfaces.Field{
			Name: "ownerUserId", IsJSONB: true, Operator: "=", Value: []string{"a", "b"},
		})
		assert.Equal(t, bson.M{"$in": []interface{}{"a", "b"}}, cond)
	})

	t.Run("object_id envelope column maps to objectId", func(t *testing.T) {
		name, _ := buildCondition(interfaces.Field{
			Name: "object_id", Operator: "=", Value: "id-1",
		})
		assert.Equal(t, "objectId", name)
	})
}

func TestBuildFilter(t *testing.T) {
	t.Run("empty query matches everything", func(t *testing.T) {
		assert.Equal(t, bson.M{}, buildFilter(nil))
		assert.Equal(t, bson.M{}, buildFilter(&interfaces.Query{}))
	})

	t.Run("conditions combine under $and", func(t *testing.T) {
		filter := buildFilter(&interfaces.Query{Conditions: []interfaces.Field{
			{Name: "username", IsJSONB: true, Operator: "=", Value: "alice"},
			{Name: "deleted", IsJSONB: true, Operator: "=", Value: false},
		}})
		and, ok := filter["$and"].(bson.A)
		require.True(t, ok)
		assert.Len(t, and, 2)
	})

	t.Run("or groups nest under the $and", func(t *testing.T) {
		filter := buildFilter(&interfaces.Query{
			OrGroups: [][]interfaces.Field{{
				{Name: "a", IsJSONB: true, Operator: "=", Value: 1},
				{Name: "b", IsJSONB: true, Operator: "=", Value: 2},
			}},
		})
		and := filter["$and"].(bson.A)
		require.Len(t, and, 1)
		or := and[0].(bson.M)["$or"].(bson.A)
		assert.Len(t, or, 2)
	})
}

func TestEnvelope(t *testing.T) {
	t.Run("merges body with identity and timestamps", func(t *testing.T) {
		id, _ := uuid.NewV4()
		doc, err := envelope(id, 100, 200, map[string]interface{}{"username": "alice"})
		require.NoError(t, err)
		assert.Equal(t, "alice", doc["username"])
		assert.Equal(t, id.String(), doc["objectId"])
		assert.Equal(t, int64(100), doc["created_date"])
		assert.Equal(t, int64(200), doc["last_updated"])
	})

	t.Run("envelope fields win over body fields", func(t *testing.T) {
		id, _ := uuid.NewV4()
		doc, err := envelope(id, 100, 200, map[string]interface{}{"objectId": "spoofed"})
		require.NoError(t, err)
		assert.Equal(t, id.String(), doc["objectId"])
	})
}

func TestUpdateDocument(t *testing.T) {
	t.Run("refreshes last_updated alongside the changed fields", func(t *testing.T) {
		update, err := updateDocument(map[string]interface{}{"username": "alice"}, 300)
		require.NoError(t, err)
		set, ok := update["$set"].(bson.M)
		require.True(t, ok)
		assert.Equal(t, "alice", set["username"])
		assert.Equal(t, int64(300), set["last_updated"])
	})

	t.Run("fresh timestamp wins over a stale one in the body", func(t *testing.T) {
		update, err := updateDocument(map[string]interface{}{"last_updated": int64(1)}, 300)
		require.NoError(t, err)
		set := update["$set"].(bson.M)
		assert.Equal(t, int64(300), set["last_updated"])
	})
}
