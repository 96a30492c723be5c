package mockapi

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/pavelpascari/fetchstate/pkg/openapi"
)

// OpenAPIPath serves the API document as YAML.
const OpenAPIPath = "/openapi.yaml"

// OpenAPI describes the typed routes of the server.
func (s *Server) OpenAPI() (*openapi3.T, error) {
	return s.generator().Generate(s.Routes())
}

// OpenAPIYAML renders OpenAPI as YAML.
func (s *Server) OpenAPIYAML() ([]byte, error) {
	spec, err := s.OpenAPI()
	if err != nil {
		return nil, err
	}

	return s.generator().GenerateYAML(spec)
}

func (s *Server) generator() *openapi.Generator {
	return openapi.NewGenerator(&openapi.Config{
		Info: s.info,
		Security: map[string]openapi.SecurityScheme{
			BearerAuth: {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
		},
	})
}

func (s *Server) serveOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := s.OpenAPIYAML()
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Generating API document failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}
