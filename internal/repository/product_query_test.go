package repository

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestWhereClauseBaseSet(t *testing.T) {
	where, args := ProductQuery{}.WhereClause()

	if where != "WHERE p.is_available = TRUE" {
		t.Errorf("empty query should only filter availability, got %q", where)
	}
	if len(args) != 0 {
		t.Errorf("empty query should carry no args, got %v", args)
	}
}

func TestWhereClauseFiltersAreIndependent(t *testing.T) {
	minPrice, maxPrice := 10.0, 99.99
	query := ProductQuery{
		Query:        "bike",
		CategorySlug: "sports",
		Condition:    "used",
		MinPrice:     &minPrice,
		MaxPrice:     &maxPrice,
		Location:     "chicago",
		FeaturedOnly: true,
	}

	where, args := query.WhereClause()

	for _, fragment := range []string{
		"p.is_available = TRUE",
		"p.title ILIKE $1",
		"p.description ILIKE $1",
		"c.name ILIKE $1",
		"c.slug = $2",
		"p.condition = $3",
		"p.price >= $4",
		"p.price <= $5",
		"p.location ILIKE $6",
		"p.is_featured = TRUE",
	} {
		if !strings.Contains(where, fragment) {
			t.Errorf("WHERE clause missing %q: %s", fragment, where)
		}
	}

	want := []any{"%bike%", "sports", "used", 10.0, 99.99, "%chicago%"}
	if len(args) != len(want) {
		t.Fatalf("expected %d args, got %d: %v", len(want), len(args), args)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("arg %d: expected %v, got %v", i, want[i], args[i])
		}
	}
}

func TestOrderClauseAllowList(t *testing.T) {
	tests := []struct {
		sort string
		want string
	}{
		{"", "ORDER BY p.created_at DESC, p.id ASC"},
		{"price", "ORDER BY p.price ASC, p.id ASC"},
		{"-price", "ORDER BY p.price DESC, p.id ASC"},
		{"title", "ORDER BY p.title ASC, p.id ASC"},
		{"-title", "ORDER BY p.title DESC, p.id ASC"},
		{"created_at", "ORDER BY p.created_at ASC, p.id ASC"},
		{"-created_at", "ORDER BY p.created_at DESC, p.id ASC"},
		{"view_count", "ORDER BY p.view_count ASC, p.id ASC"},
		{"-view_count", "ORDER BY p.view_count DESC, p.id ASC"},
		// Anything off the allow-list silently falls back to the default
		{"owner_id", "ORDER BY p.created_at DESC, p.id ASC"},
		{"price; DROP TABLE products", "ORDER BY p.created_at DESC, p.id ASC"},
		{"-unknown", "ORDER BY p.created_at DESC, p.id ASC"},
	}

	for _, tt := range tests {
		got := ProductQuery{Sort: tt.sort}.OrderClause()
		if got != tt.want {
			t.Errorf("sort %q: expected %q, got %q", tt.sort, tt.want, got)
		}
	}
}

func TestNormalizeClampsPagination(t *testing.T) {
	tests := []struct {
		page, pageSize         int
		wantPage, wantPageSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, -10, 1, DefaultPageSize},
		{1, 20, 1, 20},
		{7, 100, 7, 100},
		{2, 5000, 2, MaxPageSize},
	}

	for _, tt := range tests {
		got := ProductQuery{Page: tt.page, PageSize: tt.pageSize}.Normalize()
		if got.Page != tt.wantPage || got.PageSize != tt.wantPageSize {
			t.Errorf("normalize(%d, %d): expected (%d, %d), got (%d, %d)",
				tt.page, tt.pageSize, tt.wantPage, tt.wantPageSize, got.Page, got.PageSize)
		}
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, pageSize, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{45, 20, 3},
		{100, 100, 1},
		{101, 100, 2},
	}

	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.pageSize); got != tt.want {
			t.Errorf("TotalPages(%d, %d): expected %d, got %d", tt.count, tt.pageSize, tt.want, got)
		}
	}
}

// total_pages = ceil(count / page_size) for every count >= 0, page_size >= 1
func TestProperty_TotalPagesIsCeiling(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("pages cover the count exactly once", prop.ForAll(
		func(count, pageSize int) bool {
			pages := TotalPages(count, pageSize)

			if count == 0 {
				return pages == 0
			}

			// Enough pages to hold every row, but no empty trailing page
			return pages*pageSize >= count && (pages-1)*pageSize < count
		},
		gen.IntRange(0, 100000),
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Identical specifications must build identical SQL so a fixed page always
// returns the same slice
func TestProperty_QueryBuildingIsDeterministic(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("same spec builds same clause and args", prop.ForAll(
		func(text, slug, condition, sort string, page, pageSize int) bool {
			query := ProductQuery{
				Query:        text,
				CategorySlug: slug,
				Condition:    condition,
				Sort:         sort,
				Page:         page,
				PageSize:     pageSize,
			}.Normalize()

			whereA, argsA := query.WhereClause()
			whereB, argsB := query.WhereClause()

			if whereA != whereB || query.OrderClause() != query.OrderClause() {
				return false
			}
			if len(argsA) != len(argsB) {
				return false
			}
			for i := range argsA {
				if argsA[i] != argsB[i] {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.OneConstOf("", "new", "used", "refurbished"),
		gen.OneConstOf("", "price", "-price", "title", "garbage", "-view_count"),
		gen.IntRange(-5, 100),
		gen.IntRange(-5, 500),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
