// Package query holds the filter and pagination values understood by the
// store. All functions are pure.
package query

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// Filter
// =============================================================================

// Filter is a resource-independent listing filter.
//
// Keys are identity columns (tenant, type) and are always compared with
// equality. Fields are searchable text columns: equality when ExactMatch is
// set, substring match otherwise. With CommaSeparatedValue each value is split
// on commas and any of the parts may match. Columns named in OrColumns are
// joined with OR instead of AND.
type Filter struct {
	ExactMatch          bool
	CommaSeparatedValue bool
	OrColumns           []string
	Keys                map[string]string
	Fields              map[string]string
}

// IsOrColumn reports whether column is combined with OR.
func (f Filter) IsOrColumn(column string) bool {
	for _, c := range f.OrColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Values returns the values to match for raw, honoring CommaSeparatedValue.
// Empty parts are dropped.
func (f Filter) Values(raw string) []string {
	if !f.CommaSeparatedValue {
		return []string{raw}
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

// ParseOrColumns parses a comma separated column list such as "tenant_id,type".
func ParseOrColumns(list string) []string {
	var cols []string
	for _, c := range strings.Split(list, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// =============================================================================
// Pagination
// =============================================================================

const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

// ErrInvalidSort is returned when a sort expression names an unknown column
// or direction.
var ErrInvalidSort = errors.New("invalid sort expression")

// ErrPageOutOfRange is returned when a page lies beyond any addressable row.
var ErrPageOutOfRange = errors.New("page out of range")

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

// PageRequest selects a 0-based page of results.
type PageRequest struct {
	Number int
	Size   int
	Sort   []Order
}

// Normalize ensures page values are in range.
func (p PageRequest) Normalize() PageRequest {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// MaxNumber returns the largest page number for size whose last row still
// fits in an int.
func MaxNumber(size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return math.MaxInt/size - 1
}

// Validate reports ErrPageOutOfRange when the normalized page's rows cannot
// be addressed.
func (p PageRequest) Validate() error {
	p = p.Normalize()
	if p.Number > MaxNumber(p.Size) {
		return fmt.Errorf("%w: page %d with size %d, max page is %d", ErrPageOutOfRange, p.Number, p.Size, MaxNumber(p.Size))
	}
	return nil
}

// Offset returns the row offset of the page.
func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

// ParseSort parses sort expressions of the form "column" or "column,asc|desc".
// A single expression may also chain pairs: "response,asc,id,desc".
// Only columns in allowed are accepted.
func ParseSort(exprs []string, allowed []string) ([]Order, error) {
	known := make(map[string]bool, len(allowed))
	for _, c := range allowed {
		known[c] = true
	}

	var orders []Order
	for _, expr := range exprs {
		parts := strings.Split(expr, ",")
		for i := 0; i < len(parts); i++ {
			col := strings.TrimSpace(parts[i])
			if col == "" {
				continue
			}
			if !known[col] {
				return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidSort, col)
			}
			order := Order{Column: col}
			if i+1 < len(parts) {
				switch strings.ToLower(strings.TrimSpace(parts[i+1])) {
				case "asc":
					i++
				case "desc":
					order.Desc = true
					i++
				}
			}
			orders = append(orders, order)
		}
	}
	return orders, nil
}

// =============================================================================
// Page
// =============================================================================

// Page is one page of results plus totals.
type Page[T any] struct {
	Content          []T  `json:"content"`
	TotalElements    int  `json:"total_elements"`
	TotalPages       int  `json:"total_pages"`
	Number           int  `json:"number"`
	Size             int  `json:"size"`
	NumberOfElements int  `json:"number_of_elements"`
	First            bool `json:"first"`
	Last             bool `json:"last"`
	Empty            bool `json:"empty"`
}

// NewPage builds a Page from content, the total match count and the request.
func NewPage[T any](content []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + req.Size - 1) / req.Size
	}
	return Page[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Number:           req.Number,
		Size:             req.Size,
		NumberOfElements: len(content),
		First:            req.Number == 0,
		Last:             req.Number >= totalPages-1,
		Empty:            len(content) == 0,
	}
}

// Map converts the page content with fn, keeping the totals.
func Map[T, U any](p Page[T], fn func(T) U) Page[U] {
	content := make([]U, 0, len(p.Content))
	for _, item := range p.Content {
		content = append(content, fn(item))
	}
	return Page[U]{
		Content:          content,
		TotalElements:    p.TotalElements,
		TotalPages:       p.TotalPages,
		Number:           p.Number,
		Size:             p.Size,
		NumberOfElements: p.NumberOfElements,
		First:            p.First,
		Last:             p.Last,
		Empty:            p.Empty,
	}
}
