package grouplist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker(t *testing.T) {
	t.Run("blacklist blocks only listed groups", func(t *testing.T) {
		c := New("blacklist", []string{"bad1", "bad2"})
		assert.True(t, c.Allowed("good"))
		assert.False(t, c.Allowed("bad1"))
	})

	t.Run("whitelist allows only listed groups", func(t *testing.T) {
		c := New("whitelist", []string{"ok1"})
		assert.True(t, c.Allowed("ok1"))
		assert.False(t, c.Allowed("other"))
	})

	t.Run("empty blacklist allows everyone", func(t *testing.T) {
		c := New("blacklist", nil)
		assert.True(t, c.Allowed("anything"))
	})

	t.Run("empty whitelist allows no one", func(t *testing.T) {
		c := New("whitelist", nil)
		assert.False(t, c.Allowed("anything"))
	})

	t.Run("unknown mode fails closed", func(t *testing.T) {
		c := New("open", nil)
		assert.False(t, c.Allowed("anything"))
	})

	t.Run("empty entries are ignored", func(t *testing.T) {
		c := New("whitelist", []string{"", "ok1"})
		assert.False(t, c.Allowed(""))
		assert.True(t, c.Allowed("ok1"))
	})
}
