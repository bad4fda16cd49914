package models

import (
	"math"
	"strconv"
)

// MaxOffset bounds the row offset a page request may reach.
const MaxOffset = math.MaxInt32

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// Offset returns the row offset of the first item on the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Info builds the response metadata for a page given the total row count.
func (p Pagination) Info(total int64) PageInfo {
	return PageInfo{
		Page:     p.Page,
		PageSize: p.PageSize,
		Total:    total,
		HasNext:  int64(p.Offset()+p.PageSize) < total,
	}
}

// PageInfo is embedded in paginated responses.
type PageInfo struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	HasNext  bool  `json:"has_next"`
}

// ParsePagination reads page and page_size query values. Unparseable values fall
// back to page 1 of defaultSize; page_size is clamped to [1, maxSize] and page is
// capped so the offset stays within MaxOffset.
func ParsePagination(page, pageSize string, defaultSize, maxSize int) Pagination {
	p := Pagination{Page: 1, PageSize: defaultSize}
	size, sizeErr := parseIntDefault(pageSize, defaultSize)
	num, pageErr := parseIntDefault(page, 1)
	if sizeErr == nil && pageErr == nil {
		p.PageSize = size
		p.Page = num
	}
	if p.PageSize < 1 {
		p.PageSize = 1
	}
	if maxSize > 0 && p.PageSize > maxSize {
		p.PageSize = maxSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if maxPage := MaxOffset/p.PageSize + 1; p.Page > maxPage {
		p.Page = maxPage
	}
	return p
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
