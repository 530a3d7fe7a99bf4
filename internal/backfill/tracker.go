package backfill

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aeris-project/aeris/internal/store"
)

// completionDensity tolerates occasional missed collection runs: a city is
// complete once 90% of its target days have data, rather than requiring a
// gapless history.
const completionDensity = 0.9

// CoverageReader is the store dependency of the tracker.
type CoverageReader interface {
	Coverage(ctx context.Context, cityNames []string, expectedDays int) ([]store.CoverageRow, error)
}

// CityStatus is the per-city coverage verdict.
type CityStatus struct {
	RecordCount         int64  `json:"record_count"`
	EarliestDate        string `json:"earliest_date"`
	LatestDate          string `json:"latest_date"`
	UniqueDays          int    `json:"unique_days"`
	ExpectedDaysTarget  int    `json:"expected_days_target"`
	CompletionThreshold int    `json:"completion_threshold"`
	Complete            bool   `json:"is_complete"`
}

// Verdict aggregates coverage across all monitored cities.
type Verdict struct {
	Complete       bool                  `json:"is_backfill_complete"`
	TotalCities    int                   `json:"total_cities_expected"`
	CitiesWithData int                   `json:"cities_with_data"`
	CompleteCities int                   `json:"complete_cities"`
	MissingCities  []string              `json:"missing_cities"`
	Cities         map[string]CityStatus `json:"city_details"`
	ExpectedDays   int                   `json:"expected_days"`
}

// Tracker decides whether enough historical coverage exists per city, and
// system-wide whether the one-time bootstrap backfill still has to run.
type Tracker struct {
	reader CoverageReader
	log    zerolog.Logger
	now    func() time.Time
}

// NewTracker builds a tracker reading coverage through the given store.
func NewTracker(reader CoverageReader, log zerolog.Logger) *Tracker {
	return &Tracker{reader: reader, log: log, now: time.Now}
}

// Status computes the coverage verdict for the given cities against an
// expected number of days of history.
//
// The per-city target is dynamic: a city first observed N days ago is judged
// against min(expectedDays, N), so a freshly added city is not declared
// incomplete against a multi-month target it could not possibly have met.
func (t *Tracker) Status(ctx context.Context, cityNames []string, expectedDays int) (*Verdict, error) {
	verdict := &Verdict{
		TotalCities:   len(cityNames),
		MissingCities: []string{},
		Cities:        make(map[string]CityStatus),
		ExpectedDays:  expectedDays,
	}
	if len(cityNames) == 0 {
		return verdict, nil
	}

	rows, err := t.reader.Coverage(ctx, cityNames, expectedDays)
	if err != nil {
		return nil, err
	}

	today := t.now().UTC().Truncate(24 * time.Hour)
	found := make(map[string]bool, len(rows))

	for _, row := range rows {
		found[strings.ToLower(row.City)] = true

		daysSinceFirst := 0
		if !row.EarliestDate.IsZero() {
			daysSinceFirst = int(today.Sub(row.EarliestDate.UTC().Truncate(24*time.Hour)).Hours()/24) + 1
		}

		target := expectedDays
		if daysSinceFirst > 0 {
			target = min(expectedDays, daysSinceFirst)
		}
		if target == 0 && row.RecordCount > 0 {
			target = 1
		}

		threshold := int(math.Round(float64(target) * completionDensity))
		if threshold < 1 {
			threshold = 1
		}

		status := CityStatus{
			RecordCount:         row.RecordCount,
			EarliestDate:        row.EarliestDate.Format("2006-01-02"),
			LatestDate:          row.LatestDate.Format("2006-01-02"),
			UniqueDays:          row.DistinctDays,
			ExpectedDaysTarget:  target,
			CompletionThreshold: threshold,
			Complete:            row.DistinctDays >= threshold,
		}
		verdict.Cities[row.City] = status
		if status.Complete {
			verdict.CompleteCities++
		}
	}

	for _, city := range cityNames {
		if !found[strings.ToLower(city)] {
			verdict.MissingCities = append(verdict.MissingCities, city)
		}
	}
	verdict.CitiesWithData = len(verdict.Cities)

	// The 90%-of-cities floor defends against a single bad query masking a
	// total collection failure as "complete".
	verdict.Complete = len(verdict.MissingCities) == 0 &&
		verdict.CompleteCities == len(cityNames) &&
		float64(verdict.CitiesWithData) >= float64(len(cityNames))*0.9

	t.log.Info().
		Int("total_cities", verdict.TotalCities).
		Int("cities_with_data", verdict.CitiesWithData).
		Int("complete_cities", verdict.CompleteCities).
		Bool("is_complete", verdict.Complete).
		Msg("backfill status check completed")

	return verdict, nil
}

// Complete reports only the system-wide flag. A failed check is reported as
// incomplete so callers err on the side of scheduling a redundant backfill.
func (t *Tracker) Complete(ctx context.Context, cityNames []string, expectedDays int) bool {
	verdict, err := t.Status(ctx, cityNames, expectedDays)
	if err != nil {
		t.log.Warn().Err(err).Msg("could not check data collection status, assuming incomplete")
		return false
	}
	return verdict.Complete
}
