package models

import "time"

// WeatherReading is a single current-weather observation. It is passed by value
// and replaced wholesale on every successful fetch.
type WeatherReading struct {
	TemperatureCelsius float64   `json:"temperatureCelsius"`
	WeatherCode        int       `json:"weatherCode"`
	FetchedAt          time.Time `json:"fetchedAt"`
}
