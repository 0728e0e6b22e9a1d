package core

import "strings"

// QueryKind names which listing endpoint a Filter resolves to.
type QueryKind int

const (
	QueryAll QueryKind = iota
	QueryCategory
	QueryDateRange
	QueryCategoryAndDateRange
)

func (k QueryKind) String() string {
	switch k {
	case QueryCategory:
		return "category"
	case QueryDateRange:
		return "date_range"
	case QueryCategoryAndDateRange:
		return "category_date_range"
	default:
		return "all"
	}
}

// Filter holds the optional list filters a user has chosen. A zero Filter means "no filters".
type Filter struct {
	Category Category
	Start    Date
	End      Date
}

// Query is the single listing call a Filter resolves to.
type Query struct {
	Kind     QueryKind
	Category Category
	Start    Date
	End      Date
}

// HasCategory reports whether a category filter is set.
func (f Filter) HasCategory() bool {
	return strings.TrimSpace(string(f.Category)) != ""
}

// HasDateRange reports whether both range bounds are set. A lone start or end does not count.
func (f Filter) HasDateRange() bool {
	return !f.Start.IsZero() && !f.End.IsZero()
}

// IsEmpty reports whether no filter would narrow the listing.
func (f Filter) IsEmpty() bool {
	return f.Select().Kind == QueryAll
}

// Select resolves the filter to exactly one listing call, highest priority first:
// category and range, range only, category only, everything.
func (f Filter) Select() Query {
	switch {
	case f.HasCategory() && f.HasDateRange():
		return Query{Kind: QueryCategoryAndDateRange, Category: f.Category, Start: f.Start, End: f.End}
	case f.HasDateRange():
		return Query{Kind: QueryDateRange, Start: f.Start, End: f.End}
	case f.HasCategory():
		return Query{Kind: QueryCategory, Category: f.Category}
	default:
		return Query{Kind: QueryAll}
	}
}
