package export

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/searchtrail/searchtrail/internal/model"
)

func testRecords() []model.AggregatedRecord {
	return []model.AggregatedRecord{
		{Query: "older, with comma", Day: time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local), Count: 2},
		{Query: "newest", Day: time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local), Count: 7},
		{Query: "middle", Day: time.Date(2024, 3, 3, 0, 0, 0, 0, time.Local), Count: 1},
	}
}

func newTestExporter(t *testing.T) *Exporter {
	t.Helper()
	e, err := New(Config{
		Dir:      filepath.Join(t.TempDir(), "exports"),
		BaseURL:  "https://example.com/uploads/searchtrail-exports/",
		KeepLast: 3,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestExportProducesXLSXArtifact(t *testing.T) {
	e := newTestExporter(t)

	artifact, err := e.Export(testRecords())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if !strings.HasSuffix(artifact.Path, ".xlsx") {
		t.Errorf("artifact path = %q, want xlsx", artifact.Path)
	}
	if artifact.Label != "Download XLSX" {
		t.Errorf("artifact label = %q", artifact.Label)
	}
	if !strings.HasPrefix(artifact.URL, "https://example.com/uploads/searchtrail-exports/"+model.ExportFilePrefix) {
		t.Errorf("artifact URL = %q", artifact.URL)
	}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		t.Fatalf("artifact missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("artifact is empty")
	}

	// The export directory must carry its index placeholder.
	if _, err := os.Stat(filepath.Join(e.cfg.Dir, "index.html")); err != nil {
		t.Fatalf("index placeholder missing: %v", err)
	}
}

func TestExportNoData(t *testing.T) {
	e := newTestExporter(t)

	if _, err := e.Export(nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("Export(nil) error = %v, want ErrNoData", err)
	}
}

func TestWriteCSVContent(t *testing.T) {
	e := newTestExporter(t)
	if err := e.prepareDir(); err != nil {
		t.Fatalf("prepareDir: %v", err)
	}

	rows := testRecords()
	artifact, err := e.writeCSV(rows, "20240305-120000")
	if err != nil {
		t.Fatalf("writeCSV: %v", err)
	}
	if artifact.Label != "Download CSV" {
		t.Errorf("artifact label = %q", artifact.Label)
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.HasPrefix(string(data), "\xEF\xBB\xBF") {
		t.Fatalf("csv artifact missing UTF-8 BOM")
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\xEF\xBB\xBF")))
	all, err := r.ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(all) != len(rows)+1 {
		t.Fatalf("csv has %d rows, want %d", len(all), len(rows)+1)
	}
	if got := strings.Join(all[0], "|"); got != "Query|Date|Count" {
		t.Errorf("header = %q", got)
	}
	if all[1][0] != "older, with comma" {
		t.Errorf("comma-bearing query did not round-trip: %q", all[1][0])
	}
}

func TestExportOrdersByDayDescending(t *testing.T) {
	e := newTestExporter(t)
	if err := e.prepareDir(); err != nil {
		t.Fatalf("prepareDir: %v", err)
	}

	artifact, err := e.writeCSV(exportOrder(testRecords()), "20240305-120001")
	if err != nil {
		t.Fatalf("writeCSV: %v", err)
	}

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\xEF\xBB\xBF")))
	all, err := r.ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}

	wantDates := []string{"2024-03-05", "2024-03-03", "2024-03-01"}
	for i, want := range wantDates {
		if all[i+1][1] != want {
			t.Fatalf("row %d date = %q, want %q", i+1, all[i+1][1], want)
		}
	}
}

func TestPruneKeepsLast(t *testing.T) {
	e := newTestExporter(t)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)

	for i := 0; i < 5; i++ {
		stamp := base.Add(time.Duration(i) * time.Minute)
		e.now = func() time.Time { return stamp }
		if _, err := e.Export(testRecords()); err != nil {
			t.Fatalf("Export %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(e.cfg.Dir, model.ExportFilePrefix+"*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != e.cfg.KeepLast {
		t.Fatalf("kept %d artifacts, want %d", len(matches), e.cfg.KeepLast)
	}
	// The newest artifacts survive.
	for _, m := range matches {
		if strings.Contains(m, base.Format(stampLayout)) {
			t.Fatalf("oldest artifact %s survived pruning", m)
		}
	}
}

// exportOrder mirrors the day-descending ordering Export applies before
// writing rows.
func exportOrder(records []model.AggregatedRecord) []model.AggregatedRecord {
	rows := make([]model.AggregatedRecord, len(records))
	copy(rows, records)
	sort.SliceStable(rows, func(i, j int) bool { return rows[j].Day.Before(rows[i].Day) })
	return rows
}
