package models

// RawCharacter is a SWAPI person as returned by the people endpoint.
// Numeric fields arrive as strings ("172", "1,358", "unknown").
type RawCharacter struct {
	Name      string `json:"name"`
	Height    string `json:"height"`
	Mass      string `json:"mass"`
	Homeworld string `json:"homeworld"`
	BirthYear string `json:"birth_year"`
}

// Character is the normalized SWAPI person. Height is in centimetres and
// mass in kilograms; nil means the upstream value was unknown or unparseable.
type Character struct {
	Name      string `json:"name"`
	Height    *int   `json:"height"`
	Mass      *int   `json:"mass"`
	Homeworld string `json:"homeworld"`
	BirthYear string `json:"birth_year"`
}

// FusedRecord is a character joined with the weather observed for its homeworld.
type FusedRecord struct {
	Character
	Weather Weather `json:"weather"`
}
