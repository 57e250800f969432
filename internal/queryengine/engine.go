// Package queryengine filters, sorts, and paginates aggregated search
// records. It is a pure read-side transform over a snapshot: nothing here
// mutates the store or the input slice beyond reordering a copy.
package queryengine

import (
	"sort"
	"strings"
	"time"

	"github.com/searchtrail/searchtrail/internal/model"
)

// Apply runs the full view pipeline: text filter, inclusive date-range
// filter, stable single-key sort, then 1-based pagination. The returned
// total is the post-filter, pre-pagination count; a page past the end
// yields an empty slice, not an error.
func Apply(records []model.AggregatedRecord, vs model.ViewState) (page []model.AggregatedRecord, total int) {
	filtered := filter(records, vs)
	total = len(filtered)

	sortRecords(filtered, vs)

	perPage := vs.PerPage
	if perPage < 1 {
		perPage = model.DefaultPerPage
	}
	pageNum := vs.Page
	if pageNum < 1 {
		pageNum = 1
	}

	// Compare with division so an arbitrarily large page number cannot
	// overflow the offset multiplication into a negative slice bound.
	if total == 0 || pageNum-1 > (total-1)/perPage {
		return nil, total
	}
	offset := (pageNum - 1) * perPage
	end := offset + perPage
	if end > total {
		end = total
	}
	return filtered[offset:end], total
}

// TotalPages computes the page count for pagination controls, guarding
// the empty result set so callers never divide by zero.
func TotalPages(total, perPage int) int {
	if total <= 0 {
		return 0
	}
	if perPage < 1 {
		perPage = model.DefaultPerPage
	}
	return (total + perPage - 1) / perPage
}

func filter(records []model.AggregatedRecord, vs model.ViewState) []model.AggregatedRecord {
	needle := strings.ToLower(vs.Search)

	out := make([]model.AggregatedRecord, 0, len(records))
	for _, r := range records {
		if needle != "" && !strings.Contains(strings.ToLower(r.Query), needle) {
			continue
		}
		// Day is truncated to local midnight, so comparing against the
		// date_from midnight and the end of the date_to day keeps both
		// bounds inclusive.
		if !vs.DateFrom.IsZero() && r.Day.Before(vs.DateFrom) {
			continue
		}
		if !vs.DateTo.IsZero() && r.Day.After(endOfDay(vs.DateTo)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortRecords orders records in place by the view's single sort key:
// numeric for count, chronological for day, case-sensitive lexicographic
// for query text. The sort is stable so ties keep their pre-sort order
// and pagination stays deterministic across identical requests.
func sortRecords(records []model.AggregatedRecord, vs model.ViewState) {
	desc := vs.Order == model.OrderDesc

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if desc {
			a, b = b, a
		}
		switch vs.OrderBy {
		case model.SortByCount:
			return a.Count < b.Count
		case model.SortByQuery:
			return a.Query < b.Query
		default:
			return a.Day.Before(b.Day)
		}
	})
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location())
}
