package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harrison/ensemble/internal/models"
)

func TestHistory_BoundedMostRecentFirst(t *testing.T) {
	h := newHistory(3)
	for _, id := range []string{"a", "b", "c", "d"} {
		h.add(models.HistoryItem{ID: id, TaskID: "t"})
	}

	assert.Equal(t, 3, h.len())
	got := h.list(0, "")
	ids := make([]string, len(got))
	for i, item := range got {
		ids[i] = item.ID
	}
	assert.Equal(t, []string{"d", "c", "b"}, ids)
}

func TestHistory_FilterAndLimit(t *testing.T) {
	h := newHistory(0)
	h.add(models.HistoryItem{ID: "1", TaskID: "x"})
	h.add(models.HistoryItem{ID: "2", TaskID: "y"})
	h.add(models.HistoryItem{ID: "3", TaskID: "x"})

	got := h.list(1, "x")
	assert.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
	assert.Len(t, h.list(0, "x"), 2)
	assert.Empty(t, h.list(0, "z"))
	assert.NotNil(t, h.list(0, "z"))
}

func TestHistory_ListCopiesResults(t *testing.T) {
	h := newHistory(2)
	h.add(models.HistoryItem{ID: "1", Result: &models.ExecutionResult{ModifiedFiles: []string{"a.go"}}})

	first := h.list(0, "")
	first[0].Result.ModifiedFiles[0] = "b.go"

	assert.Equal(t, "a.go", h.list(0, "")[0].Result.ModifiedFiles[0])
}
