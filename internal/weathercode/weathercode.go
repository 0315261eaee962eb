// Package weathercode maps WMO weather interpretation codes, as returned by
// Open-Meteo, to human-readable descriptions.
package weathercode

// Unknown is returned for any code outside the table.
const Unknown = "Unknown"

// Code is a WMO weather interpretation code.
type Code int

// Description returns the display text for the code, or Unknown.
func (c Code) Description() string {
	switch c {
	case 0:
		return "Clear sky"
	case 1:
		return "Mainly clear"
	case 2:
		return "Partly cloudy"
	case 3:
		return "Overcast"
	case 45:
		return "Fog"
	case 48:
		return "Depositing rime fog"
	case 51:
		return "Light drizzle"
	case 53:
		return "Moderate drizzle"
	case 55:
		return "Dense drizzle"
	case 56:
		return "Light freezing drizzle"
	case 57:
		return "Dense freezing drizzle"
	case 61:
		return "Slight rain"
	case 63:
		return "Moderate rain"
	case 65:
		return "Heavy rain"
	case 66:
		return "Light freezing rain"
	case 67:
		return "Heavy freezing rain"
	case 71:
		return "Slight snow fall"
	case 73:
		return "Moderate snow fall"
	case 75:
		return "Heavy snow fall"
	case 77:
		return "Snow grains"
	case 80:
		return "Slight rain showers"
	case 81:
		return "Moderate rain showers"
	case 82:
		return "Violent rain showers"
	case 85:
		return "Slight snow showers"
	case 86:
		return "Heavy snow showers"
	case 95:
		return "Thunderstorm"
	case 96:
		return "Thunderstorm with slight hail"
	case 99:
		return "Thunderstorm with heavy hail"
	default:
		return Unknown
	}
}

// Known reports whether the code has an entry in the table.
func (c Code) Known() bool {
	return c.Description() != Unknown
}

// Describe is shorthand for Code(code).Description().
func Describe(code int) string {
	return Code(code).Description()
}
