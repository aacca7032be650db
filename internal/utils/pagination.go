// Package utils provides small helpers shared by the HTTP and service layers.
// They carry no domain knowledge.
package utils

import "strconv"

// Pagination defaults shared by every listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// AtoiDefault parses s, returning def when s is empty or not an integer.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window is a 1-based page of a listing.
type Window struct {
	Page int
	Size int
}

// NewWindow bounds page to >= 1 and size to [1, MaxPageSize]; a size <= 0
// means DefaultPageSize.
func NewWindow(page, size int) Window {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Window{Page: page, Size: size}
}

// ParseWindow builds a Window from raw query values.
func ParseWindow(page, size string) Window {
	p := AtoiDefault(page, 1)
	s := AtoiDefault(size, DefaultPageSize)
	if s < 1 {
		s = 1
	}
	return NewWindow(p, s)
}

// Offset is the number of rows skipped before the window.
func (w Window) Offset() int { return (w.Page - 1) * w.Size }

// Bounds returns the [start, end) slice indexes of the window over n items.
// start == end when the window lies past the end.
func (w Window) Bounds(n int) (start, end int) {
	start = w.Offset()
	if start > n {
		start = n
	}
	end = start + w.Size
	if end > n {
		end = n
	}
	return start, end
}

// TotalPages is ceil(total / Size).
func (w Window) TotalPages(total int64) int {
	if w.Size <= 0 {
		return 0
	}
	return int((total + int64(w.Size) - 1) / int64(w.Size))
}
