package memstore

import (
	"sort"
	"strings"

	"github.com/tinytelemetry/querylens/internal/model"
)

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// SortNewestFirst orders entries by request time, newest first. Entries
// without a timestamp sort last.
func SortNewestFirst(entries []model.LogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RequestTs.After(entries[j].RequestTs)
	})
}

// Reverse reverses entries in place.
func Reverse(entries []model.LogEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
}

// Paginate slices [offset, offset+limit) out of entries, which must already be
// filtered and ordered.
func Paginate(entries []model.LogEntry, limit, offset int) model.Page[model.LogEntry] {
	page := model.Page[model.LogEntry]{Items: []model.LogEntry{}, TotalCount: len(entries)}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(entries) {
		return page
	}
	end := min(offset+limit, len(entries))
	page.Items = entries[offset:end]
	return page
}
