// Package openapi generates OpenAPI 3 documents from typed route
// descriptions.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Config holds OpenAPI generation configuration.
type Config struct {
	Info     Info                      `json:"info"`
	Servers  []Server                  `json:"servers,omitempty"`
	Security map[string]SecurityScheme `json:"security,omitempty"`
}

// Info represents OpenAPI info object.
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server represents OpenAPI server object.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// SecurityScheme represents OpenAPI security scheme.
type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearer_format,omitempty"`
}

// Route describes one operation. Request fields tagged path become path
// parameters; fields with json tags form the request body.
type Route struct {
	Method       string
	Path         string
	Summary      string
	Tags         []string
	RequestType  reflect.Type
	ResponseType reflect.Type
	// StatusCode of a successful response; 0 means 201 for POST, else 200.
	StatusCode int
	// Security names the schemes of Config.Security the route requires.
	Security []string
}

// Generator generates OpenAPI specifications from routes.
type Generator struct {
	config Config
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(config *Config) *Generator {
	return &Generator{
		config: *config,
	}
}

var timeType = reflect.TypeOf(time.Time{})

// Generate creates an OpenAPI specification from routes.
func (g *Generator) Generate(routes []Route) (*openapi3.T, error) {
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.config.Info.Title,
			Version:     g.config.Info.Version,
			Description: g.config.Info.Description,
		},
		Paths: &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(map[string]*openapi3.SchemaRef),
		},
	}

	for _, server := range g.config.Servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{
			URL:         server.URL,
			Description: server.Description,
		})
	}

	if len(g.config.Security) > 0 {
		spec.Components.SecuritySchemes = make(openapi3.SecuritySchemes, len(g.config.Security))
		for name, scheme := range g.config.Security {
			spec.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{
				Value: &openapi3.SecurityScheme{
					Type:         scheme.Type,
					Scheme:       scheme.Scheme,
					BearerFormat: scheme.BearerFormat,
				},
			}
		}
	}

	for i := range routes {
		if err := g.processRoute(spec, &routes[i]); err != nil {
			return nil, fmt.Errorf("failed to process route %s %s: %w",
				routes[i].Method, routes[i].Path, err)
		}
	}

	return spec, nil
}

// processRoute adds a single route to the specification.
func (g *Generator) processRoute(spec *openapi3.T, route *Route) error {
	pathItem := spec.Paths.Find(route.Path)
	if pathItem == nil {
		pathItem = &openapi3.PathItem{}
		spec.Paths.Set(route.Path, pathItem)
	}

	operation := &openapi3.Operation{
		Summary:   route.Summary,
		Tags:      route.Tags,
		Responses: &openapi3.Responses{},
	}

	if route.RequestType != nil {
		requestType := indirect(route.RequestType)
		if requestType.Kind() == reflect.Struct {
			operation.Parameters = g.extractParameters(requestType)

			if route.Method != http.MethodGet && g.needsRequestBody(requestType) {
				operation.RequestBody = &openapi3.RequestBodyRef{
					Value: &openapi3.RequestBody{
						Required: true,
						Content: map[string]*openapi3.MediaType{
							"application/json": {Schema: g.createSchemaFromType(requestType)},
						},
					},
				}
			}
		}
	}

	statusCode := route.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
		if route.Method == http.MethodPost {
			statusCode = http.StatusCreated
		}
	}
	description := http.StatusText(statusCode)

	response := &openapi3.Response{Description: &description}
	if route.ResponseType != nil {
		response.Content = map[string]*openapi3.MediaType{
			"application/json": {Schema: g.createSchemaFromType(route.ResponseType)},
		}
	}
	operation.Responses.Set(strconv.Itoa(statusCode), &openapi3.ResponseRef{Value: response})

	if len(route.Security) > 0 {
		requirement := openapi3.SecurityRequirement{}
		for _, name := range route.Security {
			requirement[name] = []string{}
		}
		operation.Security = &openapi3.SecurityRequirements{requirement}
	}

	switch route.Method {
	case http.MethodGet:
		pathItem.Get = operation
	case http.MethodPost:
		pathItem.Post = operation
	case http.MethodPut:
		pathItem.Put = operation
	case http.MethodPatch:
		pathItem.Patch = operation
	case http.MethodDelete:
		pathItem.Delete = operation
	default:
		return fmt.Errorf("unsupported method %q", route.Method)
	}

	return nil
}

// extractParameters extracts path parameters from the request type.
func (g *Generator) extractParameters(requestType reflect.Type) openapi3.Parameters {
	var parameters openapi3.Parameters

	for i := 0; i < requestType.NumField(); i++ {
		field := requestType.Field(i)
		if !field.IsExported() {
			continue
		}

		pathName := field.Tag.Get("path")
		if pathName == "" {
			continue
		}

		schema := g.createSchemaFromType(field.Type)
		g.applyValidationToSchema(schema, field.Tag.Get("validate"))

		parameters = append(parameters, &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     pathName,
				In:       openapi3.ParameterInPath,
				Required: true,
				Schema:   schema,
			},
		})
	}

	return parameters
}

// needsRequestBody determines if a request type has body fields.
func (g *Generator) needsRequestBody(requestType reflect.Type) bool {
	for i := 0; i < requestType.NumField(); i++ {
		field := requestType.Field(i)
		if field.Anonymous && field.Tag.Get("json") == "" && indirect(field.Type).Kind() == reflect.Struct {
			if g.needsRequestBody(indirect(field.Type)) {
				return true
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		if name := jsonName(field); name != "" && name != "-" {
			return true
		}
	}

	return false
}

// createSchemaFromType creates OpenAPI schema from Go type.
func (g *Generator) createSchemaFromType(t reflect.Type) *openapi3.SchemaRef {
	schema := &openapi3.Schema{}

	if t == timeType {
		schema.Type = &openapi3.Types{"string"}
		schema.Format = "date-time"
		return &openapi3.SchemaRef{Value: schema}
	}

	switch t.Kind() {
	case reflect.String:
		schema.Type = &openapi3.Types{"string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema.Type = &openapi3.Types{"integer"}
	case reflect.Float32, reflect.Float64:
		schema.Type = &openapi3.Types{"number"}
	case reflect.Bool:
		schema.Type = &openapi3.Types{"boolean"}
	case reflect.Struct:
		schema.Type = &openapi3.Types{"object"}
		schema.Properties = make(map[string]*openapi3.SchemaRef)
		g.addProperties(schema, t)
		sort.Strings(schema.Required)
	case reflect.Slice, reflect.Array:
		schema.Type = &openapi3.Types{"array"}
		schema.Items = g.createSchemaFromType(t.Elem())
	case reflect.Map:
		schema.Type = &openapi3.Types{"object"}
		schema.AdditionalProperties = openapi3.AdditionalProperties{Schema: g.createSchemaFromType(t.Elem())}
	case reflect.Ptr:
		ref := g.createSchemaFromType(t.Elem())
		ref.Value.Nullable = true
		return ref
	case reflect.Interface:
		schema.Type = &openapi3.Types{"object"}
	default:
		schema.Type = &openapi3.Types{"string"}
	}

	return &openapi3.SchemaRef{Value: schema}
}

// addProperties adds the json fields of t to schema, flattening embedded
// structs the way encoding/json does.
func (g *Generator) addProperties(schema *openapi3.Schema, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("json")
		if field.Anonymous && tag == "" && indirect(field.Type).Kind() == reflect.Struct {
			g.addProperties(schema, indirect(field.Type))
			continue
		}
		if !field.IsExported() {
			continue
		}

		fieldName := jsonName(field)
		if tag == "" || fieldName == "-" {
			continue
		}

		fieldSchema := g.createSchemaFromType(field.Type)
		g.applyValidationToSchema(fieldSchema, field.Tag.Get("validate"))
		schema.Properties[fieldName] = fieldSchema

		if !strings.Contains(tag, ",omitempty") && field.Type.Kind() != reflect.Ptr {
			schema.Required = append(schema.Required, fieldName)
		}
	}
}

// applyValidationToSchema applies validation constraints to schema.
func (g *Generator) applyValidationToSchema(schemaRef *openapi3.SchemaRef, validate string) {
	if validate == "" || schemaRef.Value == nil {
		return
	}

	schema := schemaRef.Value
	for _, rule := range strings.Split(validate, ",") {
		rule = strings.TrimSpace(rule)
		switch {
		case strings.HasPrefix(rule, "min="):
			g.applyMinValidation(schema, rule[4:])
		case strings.HasPrefix(rule, "max="):
			g.applyMaxValidation(schema, rule[4:])
		case rule == "email":
			schema.Format = "email"
		case rule == "uuid":
			schema.Format = "uuid"
		case rule == "notblank":
			schema.MinLength = 1
		case rule == "postcode":
			schema.MinLength = 6
			maxLength := uint64(7)
			schema.MaxLength = &maxLength
		}
	}
}

// applyMinValidation applies minimum value validation.
func (g *Generator) applyMinValidation(schema *openapi3.Schema, value string) {
	minVal, err := strconv.Atoi(value)
	if err != nil || schema.Type == nil || len(*schema.Type) == 0 {
		return
	}

	switch (*schema.Type)[0] {
	case "string":
		if minVal >= 0 {
			schema.MinLength = uint64(minVal)
		}
	case "integer", "number":
		minFloat := float64(minVal)
		schema.Min = &minFloat
	}
}

// applyMaxValidation applies maximum value validation.
func (g *Generator) applyMaxValidation(schema *openapi3.Schema, value string) {
	maxVal, err := strconv.Atoi(value)
	if err != nil || schema.Type == nil || len(*schema.Type) == 0 {
		return
	}

	switch (*schema.Type)[0] {
	case "string":
		if maxVal >= 0 {
			maxPtr := uint64(maxVal)
			schema.MaxLength = &maxPtr
		}
	case "integer", "number":
		maxFloat := float64(maxVal)
		schema.Max = &maxFloat
	}
}

// GenerateJSON generates JSON representation of OpenAPI spec.
func (g *Generator) GenerateJSON(spec *openapi3.T) ([]byte, error) {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec to JSON: %w", err)
	}

	return data, nil
}

// GenerateYAML generates YAML representation of OpenAPI spec.
func (g *Generator) GenerateYAML(spec *openapi3.T) ([]byte, error) {
	data, err := yaml.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal OpenAPI spec to YAML: %w", err)
	}

	return data, nil
}

func jsonName(field reflect.StructField) string {
	return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
