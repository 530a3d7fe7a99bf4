package weather

import "time"

// CurrentResponse models the JSON payload returned by the OpenWeatherMap
// current-weather endpoint.
type CurrentResponse struct {
	Coord      Coordinates `json:"coord"`
	Weather    []Condition `json:"weather"`
	Base       string      `json:"base"`
	Main       MainBlock   `json:"main"`
	Visibility *int        `json:"visibility"`
	Wind       *WindBlock  `json:"wind"`
	Clouds     *CloudBlock `json:"clouds"`
	Rain       *VolumeBlock `json:"rain"`
	Snow       *VolumeBlock `json:"snow"`
	Dt         int64       `json:"dt"`
	Sys        SysBlock    `json:"sys"`
	Timezone   *int        `json:"timezone"`
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Cod        *int        `json:"cod"`
}

// Coordinates is the geographic position block.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// MainBlock carries the core measurements.
type MainBlock struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Pressure  int     `json:"pressure"`
	Humidity  int     `json:"humidity"`
	SeaLevel  *int    `json:"sea_level"`
	GrndLevel *int    `json:"grnd_level"`
}

// WindBlock carries wind speed/direction/gust.
type WindBlock struct {
	Speed float64  `json:"speed"`
	Deg   *int     `json:"deg"`
	Gust  *float64 `json:"gust"`
}

// CloudBlock carries cloudiness percentage.
type CloudBlock struct {
	All int `json:"all"`
}

// VolumeBlock carries rain/snow volume for the trailing 1h and 3h windows.
type VolumeBlock struct {
	OneHour    *float64 `json:"1h"`
	ThreeHours *float64 `json:"3h"`
}

// SysBlock carries country and sun times plus upstream metadata.
type SysBlock struct {
	Type    *int   `json:"type"`
	ID      *int   `json:"id"`
	Country string `json:"country"`
	Sunrise int64  `json:"sunrise"`
	Sunset  int64  `json:"sunset"`
}

// FromCurrentResponse flattens an API payload into a Measurement. The caller
// validates the result before storing it.
func FromCurrentResponse(r *CurrentResponse, ingestedAt time.Time) *Measurement {
	m := &Measurement{
		CityID:         r.ID,
		CityName:       r.Name,
		CountryCode:    r.Sys.Country,
		Latitude:       r.Coord.Lat,
		Longitude:      r.Coord.Lon,
		Base:           r.Base,
		Temperature:    r.Main.Temp,
		FeelsLike:      r.Main.FeelsLike,
		TempMin:        r.Main.TempMin,
		TempMax:        r.Main.TempMax,
		Pressure:       r.Main.Pressure,
		Humidity:       r.Main.Humidity,
		SeaLevel:       r.Main.SeaLevel,
		GroundLevel:    r.Main.GrndLevel,
		Conditions:     r.Weather,
		ConditionMain:  "Unknown",
		ConditionDesc:  "No description",
		ConditionIcon:  "unknown",
		Visibility:     r.Visibility,
		DataTimestamp:  time.Unix(r.Dt, 0).UTC(),
		Sunrise:        time.Unix(r.Sys.Sunrise, 0).UTC(),
		Sunset:         time.Unix(r.Sys.Sunset, 0).UTC(),
		TimezoneOffset: r.Timezone,
		IngestedAt:     ingestedAt.UTC(),
		SystemType:     r.Sys.Type,
		SystemID:       r.Sys.ID,
		Cod:            r.Cod,
	}

	if len(r.Weather) > 0 {
		primary := r.Weather[0]
		id := primary.ID
		m.ConditionID = &id
		m.ConditionMain = primary.Main
		m.ConditionDesc = primary.Description
		m.ConditionIcon = primary.Icon
	}

	if r.Clouds != nil {
		all := r.Clouds.All
		m.Cloudiness = &all
	}
	if r.Wind != nil {
		speed := r.Wind.Speed
		m.WindSpeed = &speed
		m.WindDirection = r.Wind.Deg
		m.WindGust = r.Wind.Gust
	}
	if r.Rain != nil {
		m.Rain1h = r.Rain.OneHour
		m.Rain3h = r.Rain.ThreeHours
	}
	if r.Snow != nil {
		m.Snow1h = r.Snow.OneHour
		m.Snow3h = r.Snow.ThreeHours
	}

	return m
}
