// Package normalize converts raw upstream payloads into the gateway's
// canonical shapes. Every function is pure and total: malformed input maps
// to nil fields or the unavailable weather record, never to an error.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/kjstillabower/fusion-gateway/internal/models"
)

// unknownValue is SWAPI's marker for a missing numeric attribute.
const unknownValue = "unknown"

// Character normalizes a SWAPI person.
func Character(raw models.RawCharacter) models.Character {
	return models.Character{
		Name:      raw.Name,
		Height:    parseMeasure(raw.Height),
		Mass:      parseMeasure(strings.ReplaceAll(raw.Mass, ",", "")),
		Homeworld: raw.Homeworld,
		BirthYear: raw.BirthYear,
	}
}

// Characters normalizes a slice of SWAPI people, preserving order.
func Characters(raw []models.RawCharacter) []models.Character {
	out := make([]models.Character, len(raw))
	for i, r := range raw {
		out[i] = Character(r)
	}
	return out
}

// parseMeasure parses an integer measure. Decimal values truncate toward
// zero ("78.2" -> 78). "unknown" and anything unparseable yield nil.
func parseMeasure(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" || s == unknownValue {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// Weather normalizes an OpenWeather payload. A nil payload, or one without
// main.temp, yields models.UnavailableWeather.
func Weather(raw *models.RawWeather) models.Weather {
	if raw == nil || raw.Main == nil || raw.Main.Temp == nil {
		return models.UnavailableWeather()
	}
	w := models.Weather{
		Temperature: raw.Main.Temp,
		Humidity:    raw.Main.Humidity,
		Location:    raw.Name,
	}
	for _, c := range raw.Weather {
		if c.Description != "" {
			w.Description = c.Description
			break
		}
	}
	if raw.Wind != nil {
		w.WindSpeed = raw.Wind.Speed
	}
	return w
}

// Fuse joins characters with weather by position. A missing weather slot is
// filled with the unavailable record, so len(result) == len(chars) always.
func Fuse(chars []models.Character, weather []models.Weather) []models.FusedRecord {
	out := make([]models.FusedRecord, len(chars))
	for i, c := range chars {
		w := models.UnavailableWeather()
		if i < len(weather) {
			w = weather[i]
		}
		out[i] = models.FusedRecord{Character: c, Weather: w}
	}
	return out
}
