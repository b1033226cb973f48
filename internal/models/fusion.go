package models

// Source values reported in the fusion response envelope.
const (
	SourceCache = "cache"
	SourceAPI   = "api"
)

// FusionResult is the body of GET /fusionados.
type FusionResult struct {
	Source string        `json:"source"`
	Data   []FusedRecord `json:"data"`
}
