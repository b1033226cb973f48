package models

// Placeholder values used by the unavailable weather record.
const (
	WeatherUnavailableDescription = "Datos no disponibles"
	WeatherUnavailableLocation    = "Desconocido"
)

// RawWeather is the subset of the OpenWeather current-weather payload the
// gateway reads. Pointers distinguish an absent field from a zero value.
type RawWeather struct {
	Main    *RawWeatherMain       `json:"main"`
	Weather []RawWeatherCondition `json:"weather"`
	Wind    *RawWeatherWind       `json:"wind"`
	Name    string                `json:"name"`
}

type RawWeatherMain struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type RawWeatherCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

type RawWeatherWind struct {
	Speed *float64 `json:"speed"`
}

// Weather is the normalized observation attached to each fused record.
type Weather struct {
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	Description string   `json:"description"`
	WindSpeed   *float64 `json:"windSpeed"`
	Location    string   `json:"location"`
}

// UnavailableWeather returns the sentinel record substituted when weather
// could not be fetched.
func UnavailableWeather() Weather {
	return Weather{
		Description: WeatherUnavailableDescription,
		Location:    WeatherUnavailableLocation,
	}
}

// IsUnavailable reports whether w is the sentinel record.
func (w Weather) IsUnavailable() bool {
	return w.Temperature == nil && w.Humidity == nil && w.WindSpeed == nil &&
		w.Description == WeatherUnavailableDescription && w.Location == WeatherUnavailableLocation
}
