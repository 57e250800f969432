package queryengine

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/searchtrail/searchtrail/internal/model"
)

// ViewStateFromValues resolves raw request parameters into a clamped
// ViewState. Bad input is never an error here: unknown sort keys, orders,
// page sizes, and dates all fall back to defaults or open ranges so that
// every admin request renders something.
func ViewStateFromValues(values url.Values) model.ViewState {
	vs := model.ViewState{
		Search:  strings.TrimSpace(values.Get("s")),
		OrderBy: model.DefaultOrderBy,
		Order:   model.DefaultOrder,
		PerPage: model.DefaultPerPage,
		Page:    1,
	}

	switch model.SortKey(values.Get("orderby")) {
	case model.SortByQuery:
		vs.OrderBy = model.SortByQuery
	case model.SortByDate:
		vs.OrderBy = model.SortByDate
	case model.SortByCount:
		vs.OrderBy = model.SortByCount
	}

	switch model.SortOrder(strings.ToLower(values.Get("order"))) {
	case model.OrderAsc:
		vs.Order = model.OrderAsc
	case model.OrderDesc:
		vs.Order = model.OrderDesc
	}

	if perPage, err := strconv.Atoi(values.Get("per_page")); err == nil {
		for _, allowed := range model.PerPageOptions {
			if perPage == allowed {
				vs.PerPage = perPage
				break
			}
		}
	}

	// "paged" is the canonical parameter; "page" is accepted as an alias.
	pageRaw := values.Get("paged")
	if pageRaw == "" {
		pageRaw = values.Get("page")
	}
	if page, err := strconv.Atoi(pageRaw); err == nil && page > 1 {
		vs.Page = page
	}

	if from, ok := parseDay(values.Get("date_from")); ok {
		vs.DateFrom = from
	}
	if to, ok := parseDay(values.Get("date_to")); ok {
		vs.DateTo = to
	}

	return vs
}

// parseDay reads a calendar date in local time. Invalid input leaves the
// bound open.
func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(model.DayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
