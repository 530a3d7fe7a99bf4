package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMeasurement() *Measurement {
	return &Measurement{
		CityID:        2643743,
		CityName:      "London",
		CountryCode:   "GB",
		Latitude:      51.5085,
		Longitude:     -0.1257,
		Temperature:   18.4,
		Humidity:      72,
		ConditionMain: "Clouds",
		DataTimestamp: time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC),
	}
}

func TestMeasurementValidate(t *testing.T) {
	require.NoError(t, validMeasurement().Validate())

	m := validMeasurement()
	m.Humidity = 101
	assert.Error(t, m.Validate())

	m = validMeasurement()
	m.Latitude = 95
	assert.Error(t, m.Validate())

	m = validMeasurement()
	deg := 400
	m.WindDirection = &deg
	assert.Error(t, m.Validate())

	m = validMeasurement()
	speed := -1.0
	m.WindSpeed = &speed
	assert.Error(t, m.Validate())

	m = validMeasurement()
	m.CountryCode = ""
	assert.Error(t, m.Validate())
}

func TestMergeKey(t *testing.T) {
	m := validMeasurement()
	key := m.Key()
	assert.Equal(t, "GB", key.CountryCode)
	assert.Equal(t, 2643743, key.CityID)
	assert.Equal(t, m.DataTimestamp, key.Timestamp)

	other := validMeasurement()
	other.Temperature = -3
	assert.Equal(t, key, other.Key(), "merge key ignores non-key fields")
}

func TestFromCurrentResponse(t *testing.T) {
	deg := 250
	gust := 11.2
	tz := 3600
	resp := &CurrentResponse{
		Coord: Coordinates{Lat: 51.5085, Lon: -0.1257},
		Weather: []Condition{
			{ID: 803, Main: "Clouds", Description: "broken clouds", Icon: "04d"},
			{ID: 500, Main: "Rain", Description: "light rain", Icon: "10d"},
		},
		Base: "stations",
		Main: MainBlock{
			Temp: 18.4, FeelsLike: 17.9, TempMin: 16.1, TempMax: 20.2,
			Pressure: 1014, Humidity: 72,
		},
		Wind:     &WindBlock{Speed: 5.1, Deg: &deg, Gust: &gust},
		Clouds:   &CloudBlock{All: 75},
		Dt:       1788264000,
		Sys:      SysBlock{Country: "GB", Sunrise: 1788238000, Sunset: 1788287000},
		Timezone: &tz,
		ID:       2643743,
		Name:     "London",
	}

	ingested := time.Date(2026, 8, 28, 12, 5, 0, 0, time.UTC)
	m := FromCurrentResponse(resp, ingested)

	assert.Equal(t, 2643743, m.CityID)
	assert.Equal(t, "London", m.CityName)
	assert.Equal(t, "GB", m.CountryCode)
	assert.Equal(t, time.Unix(1788264000, 0).UTC(), m.DataTimestamp)
	assert.Equal(t, ingested, m.IngestedAt)

	// The primary condition is the first entry; the full list is preserved.
	require.NotNil(t, m.ConditionID)
	assert.Equal(t, 803, *m.ConditionID)
	assert.Equal(t, "Clouds", m.ConditionMain)
	assert.Equal(t, "broken clouds", m.ConditionDesc)
	assert.Len(t, m.Conditions, 2)

	require.NotNil(t, m.WindSpeed)
	assert.Equal(t, 5.1, *m.WindSpeed)
	require.NotNil(t, m.WindDirection)
	assert.Equal(t, 250, *m.WindDirection)
	require.NotNil(t, m.Cloudiness)
	assert.Equal(t, 75, *m.Cloudiness)
	require.NotNil(t, m.TimezoneOffset)
	assert.Equal(t, 3600, *m.TimezoneOffset)

	require.NoError(t, m.Validate())
}

func TestFromCurrentResponseDefaults(t *testing.T) {
	resp := &CurrentResponse{
		Coord: Coordinates{Lat: 1, Lon: 1},
		Main:  MainBlock{Temp: 20, Humidity: 50},
		Dt:    1788264000,
		Sys:   SysBlock{Country: "SG"},
		ID:    1880252,
		Name:  "Singapore",
	}

	m := FromCurrentResponse(resp, time.Now())

	assert.Nil(t, m.ConditionID)
	assert.Equal(t, "Unknown", m.ConditionMain)
	assert.Equal(t, "No description", m.ConditionDesc)
	assert.Equal(t, "unknown", m.ConditionIcon)
	assert.Nil(t, m.WindSpeed)
	assert.Nil(t, m.Cloudiness)
	assert.Nil(t, m.Rain1h)
	assert.Nil(t, m.Snow1h)
}
