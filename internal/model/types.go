package model

import "time"

// SearchEvent represents one raw logged search, one line in the store.
// Query may be empty (an empty search) and may contain commas and
// arbitrary Unicode.
type SearchEvent struct {
	Timestamp time.Time
	Query     string
}

// AggregatedRecord is one (query, calendar day) group derived from raw
// events. Records are never persisted; they are recomputed from the store
// on every admin view.
type AggregatedRecord struct {
	// Query keeps the original casing of the first event seen for the group.
	Query string
	// Day is the calendar day in local time, truncated to midnight.
	Day time.Time
	// Count is the number of raw events folded into this group.
	Count int
}

// SortKey identifies a sortable admin-table column.
type SortKey string

const (
	SortByQuery SortKey = "search_query"
	SortByDate  SortKey = "last_query_date"
	SortByCount SortKey = "query_count"
)

// SortOrder is a sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ViewState is the resolved filter/sort/page state for one admin view.
// It is validated and clamped once at the request boundary and consumed
// everywhere else as a value type.
type ViewState struct {
	Search   string
	DateFrom time.Time // zero value = open range
	DateTo   time.Time // zero value = open range
	OrderBy  SortKey
	Order    SortOrder
	PerPage  int
	Page     int
}

// Page is one admin-table page plus the post-filter totals needed for
// pagination controls.
type Page struct {
	Records    []AggregatedRecord
	Total      int
	TotalPages int
	Page       int
	PerPage    int
}
