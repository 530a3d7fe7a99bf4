package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	schemaName = "aeris"
	tableName  = "weather_measurements"
	mergeIndex = "weather_measurements_merge_key"
)

var qualifiedTable = schemaName + "." + tableName

// column is one expected table column. The schema evolves additively only:
// missing expected columns are appended, existing columns are never dropped.
type column struct {
	name    string
	sqlType string
}

var tableColumns = []column{
	{"country", "TEXT NOT NULL"},
	{"city_id", "BIGINT NOT NULL"},
	{"city_name", "TEXT NOT NULL"},
	{"lat", "DOUBLE PRECISION"},
	{"lon", "DOUBLE PRECISION"},
	{"base", "TEXT"},
	{"temp", "DOUBLE PRECISION"},
	{"feels_like", "DOUBLE PRECISION"},
	{"temp_min", "DOUBLE PRECISION"},
	{"temp_max", "DOUBLE PRECISION"},
	{"pressure", "INTEGER"},
	{"humidity", "INTEGER"},
	{"sea_level", "INTEGER"},
	{"grnd_level", "INTEGER"},
	{"condition_id", "INTEGER"},
	{"condition_main", "TEXT"},
	{"condition_description", "TEXT"},
	{"condition_icon", "TEXT"},
	{"conditions", "JSONB"},
	{"visibility", "INTEGER"},
	{"cloudiness", "INTEGER"},
	{"wind_speed", "DOUBLE PRECISION"},
	{"wind_deg", "INTEGER"},
	{"wind_gust", "DOUBLE PRECISION"},
	{"rain_1h", "DOUBLE PRECISION"},
	{"rain_3h", "DOUBLE PRECISION"},
	{"snow_1h", "DOUBLE PRECISION"},
	{"snow_3h", "DOUBLE PRECISION"},
	{"ts", "TIMESTAMPTZ NOT NULL"},
	{"sunrise", "TIMESTAMPTZ"},
	{"sunset", "TIMESTAMPTZ"},
	{"tz_offset", "INTEGER"},
	{"sys_type", "INTEGER"},
	{"sys_id", "INTEGER"},
	{"cod", "INTEGER"},
	{"ingested_at", "TIMESTAMPTZ NOT NULL"},
}

// Store wraps database access for weather measurements.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New creates a Store backed by a pgx pool.
func New(ctx context.Context, databaseURL string, log zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Init creates the schema, table and merge-key index if missing, then
// reconciles the column set additively.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schemaName); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	defs := make([]string, 0, len(tableColumns))
	for _, c := range tableColumns {
		defs = append(defs, c.name+" "+c.sqlType)
	}
	createTable := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", qualifiedTable, strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	if err := s.ensureColumns(ctx); err != nil {
		return err
	}

	createIndex := fmt.Sprintf(
		"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (country, city_id, ts)",
		mergeIndex, qualifiedTable,
	)
	if _, err := s.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create merge index: %w", err)
	}

	// ts is the partition-ish access pattern; city lookups are by name.
	cityIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS weather_measurements_city_ts ON %s (LOWER(city_name), ts DESC)",
		qualifiedTable,
	)
	if _, err := s.pool.Exec(ctx, cityIndex); err != nil {
		return fmt.Errorf("create city index: %w", err)
	}

	s.log.Info().Str("table", qualifiedTable).Msg("store initialized")
	return nil
}

// ensureColumns appends any expected column missing from the live table.
func (s *Store) ensureColumns(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
        SELECT column_name
        FROM information_schema.columns
        WHERE table_schema = $1 AND table_name = $2`, schemaName, tableName)
	if err != nil {
		return fmt.Errorf("inspect table columns: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		existing[name] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range tableColumns {
		if existing[c.name] {
			continue
		}
		// New columns must be nullable: existing rows predate them.
		colType := strings.TrimSuffix(c.sqlType, " NOT NULL")
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s", qualifiedTable, c.name, colType)
		if _, err := s.pool.Exec(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", c.name, err)
		}
		s.log.Info().Str("column", c.name).Msg("table schema updated with new column")
	}

	return nil
}

func columnList() string {
	names := make([]string, 0, len(tableColumns))
	for _, c := range tableColumns {
		names = append(names, c.name)
	}
	return strings.Join(names, ", ")
}
