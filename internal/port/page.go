package port

import (
	"github.com/dimgraph/dimgraph/internal/model"
)

// LocationKind says where a field sits relative to the current page
type LocationKind string

const (
	OnPage    LocationKind = "on_page"
	AbovePage LocationKind = "above"
	BelowPage LocationKind = "below"
	Missing   LocationKind = "missing"
)

// Location is the result of Locate. Index is the row within the page when
// Kind is OnPage and the absolute position otherwise (-1 when Missing).
type Location struct {
	Kind  LocationKind `json:"kind"`
	Index int          `json:"index"`
}

// Locate finds target in the ordered field list and reports whether it is on
// the page starting at pageOffset. Callers decide whether to paginate before
// asking for an exact offset. A pageSize <= 0 means a single unbounded page.
func Locate(ordered []model.FieldRef, target string, pageOffset, pageSize int) Location {
	idx := indexOf(ordered, target)
	if idx < 0 {
		return Location{Kind: Missing, Index: -1}
	}
	start, end := pageBounds(len(ordered), pageOffset, pageSize)
	switch {
	case idx < start:
		return Location{Kind: AbovePage, Index: idx}
	case idx >= end:
		return Location{Kind: BelowPage, Index: idx}
	default:
		return Location{Kind: OnPage, Index: idx - start}
	}
}

// Window returns the fields visible on the page starting at pageOffset
func Window(ordered []model.FieldRef, pageOffset, pageSize int) []model.FieldRef {
	start, end := pageBounds(len(ordered), pageOffset, pageSize)
	return ordered[start:end]
}

// ClampOffset keeps a page offset inside the list
func ClampOffset(total, pageOffset, pageSize int) int {
	start, _ := pageBounds(total, pageOffset, pageSize)
	return start
}

// PageFor returns the page offset that brings idx onto the page
func PageFor(idx, pageSize int) int {
	if pageSize <= 0 || idx < 0 {
		return 0
	}
	return (idx / pageSize) * pageSize
}

func pageBounds(total, pageOffset, pageSize int) (int, int) {
	if pageSize <= 0 {
		return 0, total
	}
	if pageOffset < 0 {
		pageOffset = 0
	}
	if pageOffset >= total {
		pageOffset = PageFor(total-1, pageSize)
	}
	end := pageOffset + pageSize
	if end > total {
		end = total
	}
	return pageOffset, end
}
