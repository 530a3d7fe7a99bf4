package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aeris-project/aeris/internal/weather"
)

// Latest returns the newest measurement for a city by event timestamp, or
// nil when the city has no data. Absent data is not an error.
func (s *Store) Latest(ctx context.Context, city string) (*weather.Measurement, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE LOWER(city_name) = LOWER($1)
        ORDER BY ts DESC
        LIMIT 1`, columnList(), qualifiedTable)

	rows, err := s.pool.Query(ctx, query, city)
	if err != nil {
		return nil, fmt.Errorf("query latest weather: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return scanMeasurement(rows)
}

// History returns measurements for a city within the trailing days window,
// newest first.
func (s *Store) History(ctx context.Context, city string, days int) ([]*weather.Measurement, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE LOWER(city_name) = LOWER($1)
          AND ts >= NOW() - ($2 * INTERVAL '1 day')
        ORDER BY ts DESC`, columnList(), qualifiedTable)

	rows, err := s.pool.Query(ctx, query, city, days)
	if err != nil {
		return nil, fmt.Errorf("query weather history: %w", err)
	}
	defer rows.Close()

	measurements := make([]*weather.Measurement, 0)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}

// ConditionShare is one entry of the condition frequency distribution.
type ConditionShare struct {
	Condition  string  `json:"condition"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Summary aggregates a city's trailing window.
type Summary struct {
	City         string           `json:"city"`
	DaysAnalyzed int              `json:"days_analyzed"`
	TotalRecords int64            `json:"total_records"`
	AvgTemp      *float64         `json:"avg_temperature"`
	MinTemp      *float64         `json:"min_temperature"`
	MaxTemp      *float64         `json:"max_temperature"`
	AvgHumidity  *float64         `json:"avg_humidity"`
	AvgPressure  *float64         `json:"avg_pressure"`
	Conditions   []ConditionShare `json:"weather_conditions"`
}

// Summarize computes count, temperature mean/min/max, humidity and pressure
// means, and the condition-code distribution for a city's trailing window.
// A city without data yields a zero-count summary, not an error.
func (s *Store) Summarize(ctx context.Context, city string, days int) (*Summary, error) {
	overall := fmt.Sprintf(`
        SELECT COUNT(*),
               AVG(temp), MIN(temp), MAX(temp),
               AVG(humidity), AVG(pressure)
        FROM %s
        WHERE LOWER(city_name) = LOWER($1)
          AND ts >= NOW() - ($2 * INTERVAL '1 day')`, qualifiedTable)

	summary := &Summary{City: city, DaysAnalyzed: days, Conditions: []ConditionShare{}}
	row := s.pool.QueryRow(ctx, overall, city, days)
	if err := row.Scan(
		&summary.TotalRecords,
		&summary.AvgTemp,
		&summary.MinTemp,
		&summary.MaxTemp,
		&summary.AvgHumidity,
		&summary.AvgPressure,
	); err != nil {
		return nil, fmt.Errorf("query weather summary: %w", err)
	}

	if summary.TotalRecords == 0 {
		return summary, nil
	}

	grouped := fmt.Sprintf(`
        SELECT COALESCE(condition_main, 'Unknown'), COUNT(*)
        FROM %s
        WHERE LOWER(city_name) = LOWER($1)
          AND ts >= NOW() - ($2 * INTERVAL '1 day')
        GROUP BY 1
        ORDER BY 2 DESC`, qualifiedTable)

	rows, err := s.pool.Query(ctx, grouped, city, days)
	if err != nil {
		return nil, fmt.Errorf("query condition distribution: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var share ConditionShare
		if err := rows.Scan(&share.Condition, &share.Count); err != nil {
			return nil, err
		}
		share.Percentage = float64(share.Count) / float64(summary.TotalRecords) * 100
		summary.Conditions = append(summary.Conditions, share)
	}
	return summary, rows.Err()
}

// CoverageRow is the raw per-city grouping used by the backfill tracker.
type CoverageRow struct {
	City         string
	RecordCount  int64
	EarliestDate time.Time
	LatestDate   time.Time
	DistinctDays int
}

// Coverage groups record counts, date bounds and distinct-day counts per
// city within the trailing expectedDays window. Cities with no rows are
// simply absent from the result.
func (s *Store) Coverage(ctx context.Context, cityNames []string, expectedDays int) ([]CoverageRow, error) {
	if len(cityNames) == 0 {
		return nil, nil
	}

	lowered := make([]string, 0, len(cityNames))
	for _, c := range cityNames {
		lowered = append(lowered, strings.ToLower(c))
	}

	query := fmt.Sprintf(`
        SELECT city_name,
               COUNT(*),
               MIN(DATE(ts)),
               MAX(DATE(ts)),
               COUNT(DISTINCT DATE(ts))
        FROM %s
        WHERE LOWER(city_name) = ANY($1)
          AND ts <= NOW()
          AND ts >= NOW() - ($2 * INTERVAL '1 day')
        GROUP BY city_name
        ORDER BY city_name`, qualifiedTable)

	rows, err := s.pool.Query(ctx, query, lowered, expectedDays)
	if err != nil {
		return nil, fmt.Errorf("query coverage: %w", err)
	}
	defer rows.Close()

	out := make([]CoverageRow, 0, len(cityNames))
	for rows.Next() {
		var r CoverageRow
		if err := rows.Scan(&r.City, &r.RecordCount, &r.EarliestDate, &r.LatestDate, &r.DistinctDays); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DatabaseStats summarizes the whole table for the admin API and the weekly
// stats job.
type DatabaseStats struct {
	TotalRecords   int64      `json:"total_records"`
	UniqueCities   int64      `json:"unique_cities"`
	EarliestRecord *time.Time `json:"earliest_record"`
	LatestRecord   *time.Time `json:"latest_record"`
	UniqueDays     int64      `json:"unique_days"`
}

// Stats returns table-wide totals.
func (s *Store) Stats(ctx context.Context) (*DatabaseStats, error) {
	query := fmt.Sprintf(`
        SELECT COUNT(*),
               COUNT(DISTINCT city_id),
               MIN(ts), MAX(ts),
               COUNT(DISTINCT DATE(ts))
        FROM %s`, qualifiedTable)

	var stats DatabaseStats
	row := s.pool.QueryRow(ctx, query)
	if err := row.Scan(
		&stats.TotalRecords,
		&stats.UniqueCities,
		&stats.EarliestRecord,
		&stats.LatestRecord,
		&stats.UniqueDays,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &stats, nil
		}
		return nil, fmt.Errorf("query database stats: %w", err)
	}
	return &stats, nil
}

// scanMeasurement reconstructs a measurement from a row selected with
// columnList ordering.
func scanMeasurement(rows pgx.Rows) (*weather.Measurement, error) {
	var m weather.Measurement
	var conditions []byte

	if err := rows.Scan(
		&m.CountryCode,
		&m.CityID,
		&m.CityName,
		&m.Latitude,
		&m.Longitude,
		&m.Base,
		&m.Temperature,
		&m.FeelsLike,
		&m.TempMin,
		&m.TempMax,
		&m.Pressure,
		&m.Humidity,
		&m.SeaLevel,
		&m.GroundLevel,
		&m.ConditionID,
		&m.ConditionMain,
		&m.ConditionDesc,
		&m.ConditionIcon,
		&conditions,
		&m.Visibility,
		&m.Cloudiness,
		&m.WindSpeed,
		&m.WindDirection,
		&m.WindGust,
		&m.Rain1h,
		&m.Rain3h,
		&m.Snow1h,
		&m.Snow3h,
		&m.DataTimestamp,
		&m.Sunrise,
		&m.Sunset,
		&m.TimezoneOffset,
		&m.SystemType,
		&m.SystemID,
		&m.Cod,
		&m.IngestedAt,
	); err != nil {
		return nil, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &m.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
	}
	return &m, nil
}
