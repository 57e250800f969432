// Package aggregate folds raw search events into (query, calendar day)
// groups. The fold is a pure function of the event sequence: the same
// input always yields the same records in the same order.
package aggregate

import (
	"time"

	"github.com/searchtrail/searchtrail/internal/logstore"
	"github.com/searchtrail/searchtrail/internal/model"
)

// Fold groups events by (normalized query, local calendar day) in one
// left-to-right pass. The first event of a group fixes the displayed
// casing and the day; repeats only bump the count. Output order is
// first-seen order, which keeps downstream stable sorts deterministic.
func Fold(events []model.SearchEvent) []model.AggregatedRecord {
	if len(events) == 0 {
		return nil
	}

	index := make(map[string]int, len(events))
	records := make([]model.AggregatedRecord, 0, len(events))

	for _, ev := range events {
		day := truncateToDay(ev.Timestamp)
		key := logstore.NormalizeQuery(ev.Query) + "|" + day.Format(model.DayLayout)

		if i, ok := index[key]; ok {
			records[i].Count++
			continue
		}
		index[key] = len(records)
		records = append(records, model.AggregatedRecord{
			Query: ev.Query,
			Day:   day,
			Count: 1,
		})
	}
	return records
}

// truncateToDay drops the time component in local time. Two events close
// in absolute time but on different local calendar days must not merge.
func truncateToDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}
