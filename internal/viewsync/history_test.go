package viewsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_BackAndForward(t *testing.T) {
	h := NewHistory("")
	h.Navigate("page=2")
	h.Navigate("page=3")
	assert.Equal(t, "page=3", h.Current())

	raw, ok := h.Back()
	assert.True(t, ok)
	assert.Equal(t, "page=2", raw)

	raw, ok = h.Back()
	assert.True(t, ok)
	assert.Equal(t, "", raw)

	_, ok = h.Back()
	assert.False(t, ok)

	raw, ok = h.Forward()
	assert.True(t, ok)
	assert.Equal(t, "page=2", raw)
}

func TestHistory_NavigateDropsForwardEntries(t *testing.T) {
	h := NewHistory("")
	h.Navigate("page=2")
	h.Navigate("page=3")
	h.Back()

	h.Navigate("status=dead")
	assert.Equal(t, 3, h.Len())
	_, ok := h.Forward()
	assert.False(t, ok)
}

func TestHistory_SameLocationNotPushed(t *testing.T) {
	h := NewHistory("name=Rick")
	h.Navigate("name=Rick")
	assert.Equal(t, 1, h.Len())
}

func TestHistory_ReplaceKeepsLength(t *testing.T) {
	h := NewHistory("")
	h.Replace("status=alive")
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "status=alive", h.Current())
	_, ok := h.Back()
	assert.False(t, ok)
}
