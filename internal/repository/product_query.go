package repository

import (
	"fmt"
	"strings"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	// MaxPageSize caps caller-supplied page sizes. The page size is otherwise
	// unbounded and a single request could drag the whole table over the wire.
	MaxPageSize = 100

	DefaultSort = "-created_at"
)

// productSortColumns is the allow-list of sort keys accepted by Search. Keys
// map to columns on the products table; a leading '-' requests descending
// order. Anything not in this map silently falls back to DefaultSort.
var productSortColumns = map[string]string{
	"price":      "p.price",
	"title":      "p.title",
	"created_at": "p.created_at",
	"view_count": "p.view_count",
}

// ProductQuery is the explicit query specification for the search engine.
// Zero-valued filters are no-ops; every set filter narrows the result set
// independently (logical AND), except Query which ORs across text columns.
type ProductQuery struct {
	Query        string
	CategorySlug string
	Condition    string
	MinPrice     *float64
	MaxPrice     *float64
	Location     string
	FeaturedOnly bool
	Sort         string
	Page         int
	PageSize     int
}

// Normalize clamps pagination to sane bounds and returns a copy
func (q ProductQuery) Normalize() ProductQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the number of rows skipped before the requested page
func (q ProductQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// WhereClause builds the WHERE clause and its arguments. Placeholders are
// numbered starting at $1; the caller appends its own (LIMIT/OFFSET) after
// the returned args. Only available products ever match.
func (q ProductQuery) WhereClause() (string, []any) {
	conditions := []string{"p.is_available = TRUE"}
	args := []any{}

	next := func() int { return len(args) + 1 }

	if s := strings.TrimSpace(q.Query); s != "" {
		n := next()
		conditions = append(conditions, fmt.Sprintf(
			"(p.title ILIKE $%d OR p.description ILIKE $%d OR c.name ILIKE $%d)",
			n, n, n,
		))
		args = append(args, "%"+s+"%")
	}

	if q.CategorySlug != "" {
		conditions = append(conditions, fmt.Sprintf("c.slug = $%d", next()))
		args = append(args, q.CategorySlug)
	}

	if q.Condition != "" {
		conditions = append(conditions, fmt.Sprintf("p.condition = $%d", next()))
		args = append(args, q.Condition)
	}

	if q.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price >= $%d", next()))
		args = append(args, *q.MinPrice)
	}

	if q.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("p.price <= $%d", next()))
		args = append(args, *q.MaxPrice)
	}

	if q.Location != "" {
		conditions = append(conditions, fmt.Sprintf("p.location ILIKE $%d", next()))
		args = append(args, "%"+q.Location+"%")
	}

	if q.FeaturedOnly {
		conditions = append(conditions, "p.is_featured = TRUE")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// OrderClause resolves the sort key against the allow-list. Ties within the
// sort column are broken by id so a fixed page always returns the same slice.
func (q ProductQuery) OrderClause() string {
	sort := q.Sort
	if sort == "" {
		sort = DefaultSort
	}

	direction := "ASC"
	key := sort
	if strings.HasPrefix(sort, "-") {
		direction = "DESC"
		key = sort[1:]
	}

	column, ok := productSortColumns[key]
	if !ok {
		// Invalid sort keys are ignored, never an error
		column = productSortColumns["created_at"]
		direction = "DESC"
	}

	return fmt.Sprintf("ORDER BY %s %s, p.id ASC", column, direction)
}

// TotalPages computes ceil(count / pageSize)
func TotalPages(count, pageSize int) int {
	if count <= 0 {
		return 0
	}
	return (count + pageSize - 1) / pageSize
}
