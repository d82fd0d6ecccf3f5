package executor

import "github.com/harrison/ensemble/internal/models"

// DefaultHistorySize is the number of terminal executions remembered.
const DefaultHistorySize = 100

// history is a bounded, most-recent-first list of finished executions.
// Callers synchronise access.
type history struct {
	items    []models.HistoryItem
	capacity int
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &history{items: make([]models.HistoryItem, 0, capacity), capacity: capacity}
}

// add puts item first, dropping the oldest entry when full.
func (h *history) add(item models.HistoryItem) {
	if len(h.items) < h.capacity {
		h.items = append(h.items, models.HistoryItem{})
	}
	copy(h.items[1:], h.items[:len(h.items)-1])
	h.items[0] = item
}

// list returns up to limit items matching taskID (empty matches all).
// limit <= 0 means no limit.
func (h *history) list(limit int, taskID string) []models.HistoryItem {
	out := make([]models.HistoryItem, 0)
	for _, item := range h.items {
		if taskID != "" && item.TaskID != taskID {
			continue
		}
		item.Result = item.Result.Clone()
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func (h *history) len() int {
	return len(h.items)
}
