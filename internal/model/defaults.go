package model

// Shared defaults used by the server binary and the query engine.
const (
	DefaultPerPage   = 20
	DefaultOrderBy   = SortByDate
	DefaultOrder     = OrderDesc
	TimestampLayout  = "2006-01-02 15:04:05"
	DayLayout        = "2006-01-02"
	ExportFilePrefix = "search-log-export-"
)

// PerPageOptions is the allow-list for the per_page parameter. Anything
// else falls back to DefaultPerPage.
var PerPageOptions = []int{10, 20, 50, 100, 200}
