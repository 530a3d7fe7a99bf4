package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aeris-project/aeris/internal/weather"
)

// mergeKeyColumns define record identity for dedupe. All other columns are
// overwritten when a later upsert carries the same key.
var mergeKeyColumns = map[string]bool{
	"country": true,
	"city_id": true,
	"ts":      true,
}

// Upsert writes measurements to the durable table. With dedupe enabled the
// records are staged into a transient table and reconciled against the
// durable table in one atomic statement keyed on (country, city_id, ts);
// the staging table is dropped on every exit path. With dedupe disabled the
// records are appended directly without uniqueness enforcement.
func (s *Store) Upsert(ctx context.Context, records []*weather.Measurement, dedupe bool) (int64, error) {
	if len(records) == 0 {
		s.log.Info().Msg("no records to insert")
		return 0, nil
	}

	s.log.Info().Int("record_count", len(records)).Bool("dedupe", dedupe).Msg("starting weather records insertion")

	if dedupe {
		return s.upsertStaged(ctx, records)
	}
	return s.insertDirect(ctx, records)
}

func (s *Store) upsertStaged(ctx context.Context, records []*weather.Measurement) (int64, error) {
	staging := fmt.Sprintf("%s.staging_weather_%s", schemaName, strings.ReplaceAll(uuid.NewString(), "-", ""))

	create := fmt.Sprintf("CREATE TABLE %s (LIKE %s INCLUDING DEFAULTS)", staging, qualifiedTable)
	if _, err := s.pool.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create staging table: %w", err)
	}

	// Guaranteed cleanup: the drop runs on success, reconciliation failure
	// and cancellation alike, on a fresh context so a cancelled caller does
	// not leave the staging table orphaned.
	defer func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.pool.Exec(dropCtx, "DROP TABLE IF EXISTS "+staging); err != nil {
			s.log.Warn().Str("staging_table", staging).Err(err).Msg("failed to drop staging table")
		}
	}()

	if err := s.batchInsert(ctx, staging, records); err != nil {
		return 0, fmt.Errorf("stage records: %w", err)
	}

	tag, err := s.pool.Exec(ctx, reconcileSQL(staging))
	if err != nil {
		return 0, fmt.Errorf("reconcile staged records: %w", err)
	}

	affected := tag.RowsAffected()
	s.log.Info().Int64("affected_count", affected).Msg("records merged successfully")
	return affected, nil
}

func (s *Store) insertDirect(ctx context.Context, records []*weather.Measurement) (int64, error) {
	if err := s.batchInsert(ctx, qualifiedTable, records); err != nil {
		return 0, fmt.Errorf("direct insertion: %w", err)
	}
	s.log.Info().Int("record_count", len(records)).Msg("records inserted successfully")
	return int64(len(records)), nil
}

func (s *Store) batchInsert(ctx context.Context, table string, records []*weather.Measurement) error {
	placeholders := make([]string, len(tableColumns))
	for i := range tableColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, columnList(), strings.Join(placeholders, ","))

	batch := &pgx.Batch{}
	for _, m := range records {
		args, err := rowArgs(m)
		if err != nil {
			return err
		}
		batch.Queue(query, args...)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for range records {
		if _, err := res.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// reconcileSQL merges staged rows into the durable table. DISTINCT ON keeps
// the newest staged row per merge key so a batch carrying internal
// duplicates still reconciles deterministically; the ON CONFLICT arm
// overwrites every non-key column.
func reconcileSQL(staging string) string {
	updates := make([]string, 0, len(tableColumns))
	for _, c := range tableColumns {
		if mergeKeyColumns[c.name] {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c.name, c.name))
	}

	return fmt.Sprintf(`
        INSERT INTO %s (%s)
        SELECT DISTINCT ON (country, city_id, ts) %s
        FROM %s
        ORDER BY country, city_id, ts, ingested_at DESC
        ON CONFLICT (country, city_id, ts) DO UPDATE SET %s`,
		qualifiedTable, columnList(), columnList(), staging, strings.Join(updates, ", "))
}

// rowArgs flattens a measurement into insert arguments in tableColumns order.
func rowArgs(m *weather.Measurement) ([]any, error) {
	var conditions []byte
	if len(m.Conditions) > 0 {
		var err error
		conditions, err = json.Marshal(m.Conditions)
		if err != nil {
			return nil, fmt.Errorf("marshal conditions: %w", err)
		}
	}

	return []any{
		m.CountryCode,
		m.CityID,
		m.CityName,
		m.Latitude,
		m.Longitude,
		m.Base,
		m.Temperature,
		m.FeelsLike,
		m.TempMin,
		m.TempMax,
		m.Pressure,
		m.Humidity,
		m.SeaLevel,
		m.GroundLevel,
		m.ConditionID,
		m.ConditionMain,
		m.ConditionDesc,
		m.ConditionIcon,
		conditions,
		m.Visibility,
		m.Cloudiness,
		m.WindSpeed,
		m.WindDirection,
		m.WindGust,
		m.Rain1h,
		m.Rain3h,
		m.Snow1h,
		m.Snow3h,
		m.DataTimestamp,
		m.Sunrise,
		m.Sunset,
		m.TimezoneOffset,
		m.SystemType,
		m.SystemID,
		m.Cod,
		m.IngestedAt,
	}, nil
}
