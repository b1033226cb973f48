package http

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISpec []byte

var (
	openAPIJSONOnce sync.Once
	openAPIJSON     []byte
	openAPIJSONErr  error
)

// openAPIAsJSON converts the embedded YAML document once.
func openAPIAsJSON() ([]byte, error) {
	openAPIJSONOnce.Do(func() {
		var doc map[string]interface{}
		if err := yaml.Unmarshal(openAPISpec, &doc); err != nil {
			openAPIJSONErr = fmt.Errorf("parse openapi document: %w", err)
			return
		}
		openAPIJSON, openAPIJSONErr = json.Marshal(doc)
	})
	return openAPIJSON, openAPIJSONErr
}

// GetDocs handles GET /docs. It serves the OpenAPI document as YAML, or as
// JSON with ?format=json.
func (h *Handler) GetDocs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") == "json" {
		body, err := openAPIAsJSON()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(openAPISpec)
}
