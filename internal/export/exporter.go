// Package export serializes the aggregated search log into downloadable
// artifacts. XLSX is the preferred format; a failure there degrades to a
// CSV fallback rather than failing the whole operation.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/xuri/excelize/v2"

	"github.com/searchtrail/searchtrail/internal/model"
)

const (
	defaultKeepLast = 24
	dirMode         = 0755
	fileMode        = 0644
	stampLayout     = "20060102-150405"
)

// ErrNoData reports an export attempt against an empty aggregate set.
var ErrNoData = errors.New("export: no data to export")

// ErrBackendUnavailable reports that the preferred spreadsheet backend
// failed. It is recovered internally by the CSV fallback; callers only
// see it when the fallback fails too.
var ErrBackendUnavailable = errors.New("export: spreadsheet backend unavailable")

// Config controls where artifacts land and how they are published.
type Config struct {
	// Dir is the artifact output directory, auto-created with an index
	// placeholder so a static file server cannot list it.
	Dir string
	// BaseURL is the public URL prefix mapped to Dir.
	BaseURL string
	// KeepLast bounds how many artifacts are retained after each export.
	KeepLast int
}

// Artifact describes one produced export file.
type Artifact struct {
	Path  string
	URL   string
	Label string
}

// Exporter writes aggregated records to the export directory.
type Exporter struct {
	cfg Config
	now func() time.Time
}

// New creates an exporter. The directory is prepared lazily on each
// export so a deleted index placeholder heals itself.
func New(cfg Config) (*Exporter, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("export: dir is required")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	return &Exporter{cfg: cfg, now: time.Now}, nil
}

// Export writes all records, ordered by day descending, to an XLSX
// artifact, falling back to CSV when the spreadsheet write fails. Old
// artifacts beyond KeepLast are pruned afterwards; a prune failure does
// not fail an export that produced its artifact.
func (e *Exporter) Export(records []model.AggregatedRecord) (Artifact, error) {
	if len(records) == 0 {
		return Artifact{}, ErrNoData
	}

	if err := e.prepareDir(); err != nil {
		return Artifact{}, err
	}

	rows := make([]model.AggregatedRecord, len(records))
	copy(rows, records)
	sort.SliceStable(rows, func(i, j int) bool { return rows[j].Day.Before(rows[i].Day) })

	stamp := e.now().Format(stampLayout)

	artifact, xlsxErr := e.writeXLSX(rows, stamp)
	if xlsxErr != nil {
		log.Warn().Err(xlsxErr).Msg("xlsx export failed, falling back to csv")
		var csvErr error
		artifact, csvErr = e.writeCSV(rows, stamp)
		if csvErr != nil {
			return Artifact{}, fmt.Errorf("%w: xlsx: %v; csv: %v", ErrBackendUnavailable, xlsxErr, csvErr)
		}
	}

	if err := e.prune(); err != nil {
		log.Warn().Err(err).Msg("pruning old export artifacts failed")
	}
	return artifact, nil
}

func (e *Exporter) writeXLSX(rows []model.AggregatedRecord, stamp string) (Artifact, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Query", "Date", "Count"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return Artifact{}, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return Artifact{}, err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Artifact{}, err
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", bold); err != nil {
		return Artifact{}, err
	}
	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return Artifact{}, err
	}
	if err := f.SetColWidth(sheet, "B", "C", 14); err != nil {
		return Artifact{}, err
	}

	for i, r := range rows {
		rowNum := i + 2
		if err := f.SetCellValue(sheet, "A"+strconv.Itoa(rowNum), r.Query); err != nil {
			return Artifact{}, err
		}
		if err := f.SetCellValue(sheet, "B"+strconv.Itoa(rowNum), r.Day.Format(model.DayLayout)); err != nil {
			return Artifact{}, err
		}
		if err := f.SetCellValue(sheet, "C"+strconv.Itoa(rowNum), r.Count); err != nil {
			return Artifact{}, err
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   "Search Log Export",
		Creator: "searchtrail",
	}); err != nil {
		return Artifact{}, err
	}

	name := model.ExportFilePrefix + stamp + ".xlsx"
	path := filepath.Join(e.cfg.Dir, name)
	if err := f.SaveAs(path); err != nil {
		return Artifact{}, err
	}
	return e.artifact(name, "Download XLSX"), nil
}

func (e *Exporter) writeCSV(rows []model.AggregatedRecord, stamp string) (Artifact, error) {
	name := model.ExportFilePrefix + stamp + ".csv"
	path := filepath.Join(e.cfg.Dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return Artifact{}, err
	}
	defer f.Close()

	// BOM keeps spreadsheet applications reading the file as UTF-8.
	if _, err := f.WriteString("\xEF\xBB\xBF"); err != nil {
		return Artifact{}, err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"Query", "Date", "Count"}); err != nil {
		return Artifact{}, err
	}
	for _, r := range rows {
		rec := []string{r.Query, r.Day.Format(model.DayLayout), strconv.Itoa(r.Count)}
		if err := w.Write(rec); err != nil {
			return Artifact{}, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Artifact{}, err
	}
	return e.artifact(name, "Download CSV"), nil
}

func (e *Exporter) artifact(name, label string) Artifact {
	url := ""
	if e.cfg.BaseURL != "" {
		url = strings.TrimRight(e.cfg.BaseURL, "/") + "/" + name
	}
	return Artifact{
		Path:  filepath.Join(e.cfg.Dir, name),
		URL:   url,
		Label: label,
	}
}

// prepareDir creates the export directory and repairs the index
// placeholder that keeps it unlistable.
func (e *Exporter) prepareDir() error {
	if err := os.MkdirAll(e.cfg.Dir, dirMode); err != nil {
		return fmt.Errorf("export: create dir: %w", err)
	}
	index := filepath.Join(e.cfg.Dir, "index.html")
	if _, err := os.Stat(index); errors.Is(err, os.ErrNotExist) {
		if werr := os.WriteFile(index, nil, fileMode); werr != nil {
			return fmt.Errorf("export: write index placeholder: %w", werr)
		}
	}
	return nil
}

// prune removes artifacts beyond KeepLast. Timestamps are embedded in the
// filenames, so a lexical sort matches chronology.
func (e *Exporter) prune() error {
	matches, err := filepath.Glob(filepath.Join(e.cfg.Dir, model.ExportFilePrefix+"*"))
	if err != nil {
		return err
	}
	if len(matches) <= e.cfg.KeepLast {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, old := range matches[e.cfg.KeepLast:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
