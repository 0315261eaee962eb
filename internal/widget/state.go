package widget

import "github.com/kjstillabower/portfolio-live-info/internal/models"

// State is the display state shared by the clock and weather widgets.
// CurrentWeather is nil until the first successful fetch and is replaced
// wholesale afterwards.
type State struct {
	Is12HourFormat bool
	IsFahrenheit   bool
	CurrentWeather *models.WeatherReading
}
