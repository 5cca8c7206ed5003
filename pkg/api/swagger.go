package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed swagger.yaml
var swaggerYAML []byte

var (
	swaggerOnce sync.Once
	swaggerJSON []byte
	swaggerErr  error
)

// SwaggerSpec returns the embedded OpenAPI document as YAML.
func SwaggerSpec() []byte {
	return swaggerYAML
}

// SwaggerSpecJSON converts the embedded document to JSON once.
func SwaggerSpecJSON() ([]byte, error) {
	swaggerOnce.Do(func() {
		var spec any
		if swaggerErr = yaml.Unmarshal(swaggerYAML, &spec); swaggerErr != nil {
			return
		}
		swaggerJSON, swaggerErr = json.Marshal(spec)
	})
	return swaggerJSON, swaggerErr
}

// SwaggerHandler serves the document as JSON, or as YAML when the client
// asks for it.
func SwaggerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") == "application/yaml" {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write(swaggerYAML)
			return
		}
		spec, err := SwaggerSpecJSON()
		if err != nil {
			Error(w, http.StatusInternalServerError, "failed to convert API document to JSON")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(spec)
	}
}
