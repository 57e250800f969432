package logstore

import (
	"errors"
	"strings"
	"time"

	"github.com/searchtrail/searchtrail/internal/model"
)

// errMalformedLine reports a stored line that does not have the expected
// field count. Malformed lines are skipped by readers, never fatal.
var errMalformedLine = errors.New("logstore: malformed line")

// timestampLayouts are the accepted on-disk timestamp formats, tried in
// order. The writer always produces the first one.
var timestampLayouts = []string{
	model.TimestampLayout,
	time.RFC3339,
}

// escapeQuery encodes literal commas so the field separator stays
// unambiguous. No other escaping is defined; embedded newlines are a
// documented limitation of the format.
func escapeQuery(q string) string {
	return strings.ReplaceAll(q, ",", `\,`)
}

func unescapeQuery(q string) string {
	return strings.ReplaceAll(q, `\,`, ",")
}

// encodeLine renders one event as a store line without the trailing
// newline.
func encodeLine(ev model.SearchEvent) string {
	return ev.Timestamp.Format(model.TimestampLayout) + "," + escapeQuery(ev.Query)
}

// decodeLine parses one data line. The timestamp field never contains a
// comma, so the first comma is always the field separator.
func decodeLine(line string) (model.SearchEvent, error) {
	idx := strings.Index(line, ",")
	if idx < 0 {
		return model.SearchEvent{}, errMalformedLine
	}

	ts, err := parseTimestamp(line[:idx])
	if err != nil {
		return model.SearchEvent{}, errMalformedLine
	}

	return model.SearchEvent{
		Timestamp: ts,
		Query:     unescapeQuery(line[idx+1:]),
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.ParseInLocation(layout, s, time.Local)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// NormalizeQuery produces the grouping form of a query: surrounding
// whitespace trimmed and case folded. Used only as a grouping key, never
// for display.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
