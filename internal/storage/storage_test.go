package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestStorageRoundTrip(t *testing.T) {
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	defer s.Close()

	t.Run("missing key reports not found", func(t *testing.T) {
		var out payload
		found, err := s.Get("nope", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set("group:1", payload{Name: "alpha", Score: 0.75}))

		var out payload
		found, err := s.Get("group:1", &out)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "alpha", out.Name)
		assert.Equal(t, 0.75, out.Score)
	})

	t.Run("delete removes the key", func(t *testing.T) {
		require.NoError(t, s.Set("group:2", payload{Name: "beta"}))
		require.NoError(t, s.Delete("group:2"))

		var out payload
		found, err := s.Get("group:2", &out)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

// A value written before Close must come back typed after a reload, which
// is how engine state survives a restart.
func TestStorageReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s, err := New(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Set("group:1", payload{Name: "alpha", Score: 0.5}))
	require.NoError(t, s.Close())

	s2, err := New(context.Background(), path)
	require.NoError(t, err)
	defer s2.Close()

	var out payload
	found, err := s2.Get("group:1", &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alpha", out.Name)
	assert.Equal(t, 0.5, out.Score)
}
