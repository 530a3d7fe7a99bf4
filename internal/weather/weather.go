package weather

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Condition is one weather condition entry from the API (e.g. Rain, Clear).
type Condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Measurement is one city's processed weather reading, ready for storage.
// Numeric ranges mirror what the upstream API documents; Validate enforces
// them before a record is accepted into the pipeline.
type Measurement struct {
	CityID      int     `json:"city_id" validate:"required"`
	CityName    string  `json:"city_name" validate:"required"`
	CountryCode string  `json:"country_code" validate:"required"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Base        string  `json:"base,omitempty"`

	Temperature float64 `json:"temperature"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Pressure    int     `json:"pressure"`
	Humidity    int     `json:"humidity" validate:"gte=0,lte=100"`
	SeaLevel    *int    `json:"sea_level_pressure,omitempty"`
	GroundLevel *int    `json:"ground_level_pressure,omitempty"`

	ConditionID   *int        `json:"weather_condition_id,omitempty"`
	ConditionMain string      `json:"weather_main"`
	ConditionDesc string      `json:"weather_description"`
	ConditionIcon string      `json:"weather_icon"`
	Conditions    []Condition `json:"weather_conditions,omitempty"`

	Visibility    *int     `json:"visibility,omitempty"`
	Cloudiness    *int     `json:"cloudiness,omitempty" validate:"omitempty,gte=0,lte=100"`
	WindSpeed     *float64 `json:"wind_speed,omitempty" validate:"omitempty,gte=0"`
	WindDirection *int     `json:"wind_direction,omitempty" validate:"omitempty,gte=0,lte=360"`
	WindGust      *float64 `json:"wind_gust,omitempty" validate:"omitempty,gte=0"`
	Rain1h        *float64 `json:"rain_1h,omitempty"`
	Rain3h        *float64 `json:"rain_3h,omitempty"`
	Snow1h        *float64 `json:"snow_1h,omitempty"`
	Snow3h        *float64 `json:"snow_3h,omitempty"`

	DataTimestamp  time.Time `json:"data_timestamp" validate:"required"`
	Sunrise        time.Time `json:"sunrise"`
	Sunset         time.Time `json:"sunset"`
	TimezoneOffset *int      `json:"timezone_offset,omitempty"`
	IngestedAt     time.Time `json:"ingested_at"`

	SystemType *int `json:"system_type,omitempty"`
	SystemID   *int `json:"system_id,omitempty"`
	Cod        *int `json:"cod,omitempty"`
}

// Validate checks the measurement against its declared range constraints.
func (m *Measurement) Validate() error {
	return validate.Struct(m)
}

// MergeKey identifies a record for upsert deduplication: a later write with
// an equal key supersedes the earlier one.
type MergeKey struct {
	CountryCode string
	CityID      int
	Timestamp   time.Time
}

// Key returns the measurement's merge key.
func (m *Measurement) Key() MergeKey {
	return MergeKey{CountryCode: m.CountryCode, CityID: m.CityID, Timestamp: m.DataTimestamp}
}
