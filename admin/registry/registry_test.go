package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(&ResourceType{
		Name:       "user",
		Collection: "users",
		Fields:     []string{"objectId", "username", "email"},
		Protected:  []string{"email"},
	}))
	return reg
}

func TestRegister(t *testing.T) {
	t.Run("rejects duplicate names", func(t *testing.T) {
		reg := newTestRegistry(t)
		err := reg.Register(&ResourceType{
			Name:       "user",
			Collection: "users",
			Fields:     []string{"objectId"},
		})
		assert.Error(t, err)
	})

	t.Run("rejects missing collection", func(t *testing.T) {
		reg := NewRegistry()
		err := reg.Register(&ResourceType{Name: "user", Fields: []string{"a"}})
		assert.Error(t, err)
	})
}

func TestLookup(t *testing.T) {
	reg := newTestRegistry(t)

	t.Run("finds registered resources", func(t *testing.T) {
		rt, ok := reg.Lookup("user")
		require.True(t, ok)
		assert.Equal(t, "users", rt.Collection)
	})

	t.Run("misses unknown resources", func(t *testing.T) {
		_, ok := reg.Lookup("ghost")
		assert.False(t, ok)
	})
}

func TestProtectedFields(t *testing.T) {
	reg := newTestRegistry(t)
	rt, _ := reg.Lookup("user")

	t.Run("credential fields are always protected", func(t *testing.T) {
		assert.True(t, rt.IsProtected("password"))
		assert.True(t, rt.IsProtected("salt"))
		assert.True(t, rt.IsProtected("resetPasswordToken"))
		assert.True(t, rt.IsProtected("__v"))
	})

	t.Run("resource protections add to the defaults", func(t *testing.T) {
		assert.True(t, rt.IsProtected("email"))
		assert.False(t, rt.IsProtected("username"))
	})

	t.Run("strip removes protected keys in place", func(t *testing.T) {
		doc := map[string]interface{}{
			"username": "alice",
			"password": "secret",
			"email":    "a@example.com",
		}
		rt.StripProtected(doc)
		assert.Equal(t, map[string]interface{}{"username": "alice"}, doc)
	})
}

func TestHasField(t *testing.T) {
	reg := newTestRegistry(t)
	rt, _ := reg.Lookup("user")

	assert.True(t, rt.HasField("username"))
	assert.True(t, rt.HasField("objectId"))
	assert.False(t, rt.HasField("ghostField"))
}
