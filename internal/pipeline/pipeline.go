package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/cities"
	"github.com/aeris-project/aeris/internal/owm"
	"github.com/aeris-project/aeris/internal/store"
	"github.com/aeris-project/aeris/internal/weather"
)

// Collector fans out fetches over the monitored city set.
type Collector interface {
	FetchBatch(ctx context.Context, cityNames []string) ([]*weather.Measurement, owm.BatchStats)
}

// Recorder is the store surface the pipeline writes to and reports from.
type Recorder interface {
	Upsert(ctx context.Context, records []*weather.Measurement, dedupe bool) (int64, error)
	Stats(ctx context.Context) (*store.DatabaseStats, error)
}

// RunResult summarizes one pipeline run for the execution history and the
// admin API.
type RunResult struct {
	Status           string        `json:"status"`
	CitiesRequested  int           `json:"cities_requested"`
	RecordsRetrieved int           `json:"records_retrieved"`
	RecordsInserted  int64         `json:"records_inserted"`
	Duration         time.Duration `json:"-"`
	DurationSeconds  float64       `json:"duration_seconds"`
	Timestamp        time.Time     `json:"timestamp"`
	Message          string        `json:"message,omitempty"`
}

// Pipeline owns the job bodies the scheduler triggers: the recurring update
// sweep, the bootstrap backfill and the weekly stats report.
type Pipeline struct {
	collector Collector
	recorder  Recorder
	cityLimit int
	log       zerolog.Logger
}

// New constructs a pipeline over the given collector and store.
func New(collector Collector, recorder Recorder, cityLimit int, log zerolog.Logger) *Pipeline {
	return &Pipeline{collector: collector, recorder: recorder, cityLimit: cityLimit, log: log}
}

// RunUpdate fetches current weather for all monitored cities and upserts the
// results. One failed city never aborts the sweep; a store failure does.
func (p *Pipeline) RunUpdate(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	names := cities.List(p.cityLimit)
	p.log.Info().Int("cities_to_monitor", len(names)).Msg("starting weather update")

	records, stats := p.collector.FetchBatch(ctx, names)
	if len(records) == 0 {
		p.log.Warn().Msg("no weather data retrieved in update run")
		return &RunResult{
			Status:          "warning",
			CitiesRequested: len(names),
			Duration:        time.Since(start),
			DurationSeconds: time.Since(start).Seconds(),
			Timestamp:       start,
			Message:         "no data retrieved",
		}, nil
	}

	inserted, err := p.recorder.Upsert(ctx, records, true)
	if err != nil {
		p.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("weather update failed")
		return nil, err
	}

	result := &RunResult{
		Status:           "success",
		CitiesRequested:  len(names),
		RecordsRetrieved: len(records),
		RecordsInserted:  inserted,
		Duration:         time.Since(start),
		DurationSeconds:  time.Since(start).Seconds(),
		Timestamp:        start,
	}

	p.log.Info().
		Int("cities_requested", result.CitiesRequested).
		Int("records_retrieved", result.RecordsRetrieved).
		Int64("records_inserted", result.RecordsInserted).
		Float64("duration_seconds", result.DurationSeconds).
		Float64("success_rate", stats.SuccessRate).
		Msg("weather update completed successfully")

	return result, nil
}

// RunBackfill bootstraps historical coverage. The system builds history by
// repeated current-weather polling, so a backfill run performs the same
// sweep as an update run; coverage accumulates as the scheduler keeps
// running.
func (p *Pipeline) RunBackfill(ctx context.Context) (*RunResult, error) {
	p.log.Info().Msg("starting initial weather data collection for all cities")
	result, err := p.RunUpdate(ctx)
	if err != nil {
		return nil, err
	}
	p.log.Info().
		Int("cities_processed", result.CitiesRequested).
		Int("records_collected", result.RecordsRetrieved).
		Int64("records_inserted", result.RecordsInserted).
		Msg("initial weather data collection completed")
	return result, nil
}

// RunWeeklyStats logs table-wide statistics.
func (p *Pipeline) RunWeeklyStats(ctx context.Context) (*store.DatabaseStats, error) {
	p.log.Info().Msg("starting weekly stats update")
	stats, err := p.recorder.Stats(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("weekly stats update failed")
		return nil, err
	}

	p.log.Info().
		Int64("total_records", stats.TotalRecords).
		Int64("unique_cities", stats.UniqueCities).
		Int64("unique_days", stats.UniqueDays).
		Msg("weekly database statistics")

	return stats, nil
}

// Cities returns the monitored city names for this pipeline's limit.
func (p *Pipeline) Cities() []string {
	return cities.List(p.cityLimit)
}
