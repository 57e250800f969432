// Package searchlog is the host-facing component: the surrounding
// application reports searches to OnSearch and drives the admin table,
// clear, and export actions through one Service instance. No ambient
// globals are involved; the host owns the instance.
package searchlog

import (
	"time"

	"github.com/phuslu/log"

	"github.com/searchtrail/searchtrail/internal/aggregate"
	"github.com/searchtrail/searchtrail/internal/export"
	"github.com/searchtrail/searchtrail/internal/model"
	"github.com/searchtrail/searchtrail/internal/queryengine"
)

// Exporter is the narrow export contract the service needs.
type Exporter interface {
	Export(records []model.AggregatedRecord) (export.Artifact, error)
}

// Service wires the store, aggregator, query engine, and exporter behind
// the host-facing operations.
type Service struct {
	store    model.EventStore
	exporter Exporter
	now      func() time.Time
}

// New creates a service over the given store backend and exporter.
func New(store model.EventStore, exporter Exporter) *Service {
	return &Service{
		store:    store,
		exporter: exporter,
		now:      time.Now,
	}
}

// OnSearch records one visitor search. Store failures are logged and
// swallowed: a failed log write must never break the visitor-facing
// search, so from the host's perspective this cannot fail.
func (s *Service) OnSearch(query string) {
	ev := model.SearchEvent{Timestamp: s.now(), Query: query}
	if err := s.store.Append(ev); err != nil {
		log.Warn().Err(err).Msg("dropping search event, store append failed")
	}
}

// OnAdminView materializes the aggregate set from the raw log and applies
// the view's filter/sort/pagination. An unreadable or missing store is
// indistinguishable from an empty one here and renders as no records.
func (s *Service) OnAdminView(vs model.ViewState) model.Page {
	events, err := s.store.ReadAll()
	if err != nil {
		log.Warn().Err(err).Msg("reading search log failed, rendering empty table")
		events = nil
	}

	records := aggregate.Fold(events)
	pageRecords, total := queryengine.Apply(records, vs)

	return model.Page{
		Records:    pageRecords,
		Total:      total,
		TotalPages: queryengine.TotalPages(total, vs.PerPage),
		Page:       vs.Page,
		PerPage:    vs.PerPage,
	}
}

// Clear truncates the store. Idempotent; clearing an empty log succeeds.
func (s *Service) Clear() error {
	return s.store.Truncate()
}

// Export writes the full aggregate set to a downloadable artifact.
func (s *Service) Export() (export.Artifact, error) {
	events, err := s.store.ReadAll()
	if err != nil {
		return export.Artifact{}, err
	}
	return s.exporter.Export(aggregate.Fold(events))
}

// EventCount reports the raw event total, used by health reporting.
func (s *Service) EventCount() int {
	events, err := s.store.ReadAll()
	if err != nil {
		return 0
	}
	return len(events)
}
