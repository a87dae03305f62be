// Package openapi provides reflective OpenAPI 3.0 specification generation
// and schema validation of request payloads.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces OpenAPI 3.0 specifications by reflecting on registered resources.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	resources   []ResourceInfo
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// ResourceInfo holds information about a registered resource for OpenAPI generation.
type ResourceInfo struct {
	Name           string           // Resource collection name (e.g., "templates")
	Model          any              // Response model struct for schema extraction
	CreateSchema   *openapi3.Schema // Request body schema for POST /{name}
	CreateSummary  string           // Summary of the POST operation
	SupportsFind   bool             // GET /{name} and GET /{name}/{id}
	SupportsCreate bool             // POST /{name}
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "Template Registry API",
		version:     "1.0.0",
		description: "Publish and browse pipeline templates",
		resources:   make([]ResourceInfo, 0),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// RegisterResource adds a resource to the generator for spec generation.
func (g *Generator) RegisterResource(info ResourceInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, info)
	g.cachedSpec = nil // Invalidate cache
}

// Generate produces the complete OpenAPI 3.0 specification.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
			SecuritySchemes: openapi3.SecuritySchemes{
				"buildToken": &openapi3.SecuritySchemeRef{
					Value: openapi3.NewJWTSecurityScheme(),
				},
			},
		},
	}

	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	g.addCommonSchemas(spec)

	for _, res := range g.resources {
		g.addResourceToSpec(spec, res)
	}

	g.cachedSpec = spec
	return spec
}

// Handler returns an HTTP handler that serves the specification as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := g.Generate()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if err := json.NewEncoder(w).Encode(spec); err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
		}
	}
}

// YAML renders the specification as YAML.
func (g *Generator) YAML() ([]byte, error) {
	raw, err := json.Marshal(g.Generate())
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}

// YAMLHandler returns an HTTP handler that serves the specification as YAML.
func (g *Generator) YAMLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := g.YAML()
		if err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

// addCommonSchemas adds schemas shared by every resource.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: openapi3.NewObjectSchema().
			WithProperty("error", openapi3.NewStringSchema()).
			WithProperty("code", openapi3.NewStringSchema()),
	}
}

// addResourceToSpec adds paths and schemas for a resource.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	basePath := "/api/v1/" + res.Name
	schemaName := capitalize(singularize(res.Name))

	spec.Components.Schemas[schemaName] = g.extractSchema(res.Model)

	spec.Components.Schemas[schemaName+"List"] = &openapi3.SchemaRef{
		Value: openapi3.NewObjectSchema().
			WithPropertyRef(res.Name, &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: schemaRef(schemaName),
				},
			}).
			WithProperty("total", openapi3.NewIntegerSchema()).
			WithProperty("page", openapi3.NewIntegerSchema()).
			WithProperty("count", openapi3.NewIntegerSchema()),
	}

	collectionPath := &openapi3.PathItem{}
	if res.SupportsFind {
		collectionPath.Get = g.createListOperation(res, schemaName)
	}
	if res.SupportsCreate && res.CreateSchema != nil {
		spec.Components.Schemas[schemaName+"Publish"] = &openapi3.SchemaRef{Value: res.CreateSchema}
		collectionPath.Post = g.createCreateOperation(res, schemaName)
	}
	spec.Paths.Set(basePath, collectionPath)

	if res.SupportsFind {
		itemPath := &openapi3.PathItem{
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewPathParameter("id").WithSchema(openapi3.NewInt64Schema()),
				},
			},
			Get: g.createGetOperation(res, schemaName),
		}
		spec.Paths.Set(basePath+"/{id}", itemPath)
	}
}

// extractSchema extracts an OpenAPI schema from a Go struct.
func (g *Generator) extractSchema(model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
		}

		if propSchema := g.goTypeToSchema(field.Type); propSchema != nil {
			schema.Properties[name] = propSchema
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: openapi3.NewStringSchema()}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: openapi3.NewInt32Schema()}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: openapi3.NewInt64Schema()}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: openapi3.NewIntegerSchema()}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: openapi3.NewFloat64Schema()}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: openapi3.NewBoolSchema()}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.goTypeToSchema(t.Elem()),
			},
		}

	case reflect.Map:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:                 &openapi3.Types{"object"},
				AdditionalProperties: openapi3.AdditionalProperties{Schema: g.goTypeToSchema(t.Elem())},
			},
		}

	case reflect.Ptr:
		schema := g.goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{Value: openapi3.NewDateTimeSchema()}
		}
		return g.extractSchema(reflect.New(t).Interface())

	default:
		return &openapi3.SchemaRef{Value: openapi3.NewObjectSchema()}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func (g *Generator) createListOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	responses := &openapi3.Responses{}
	responses.Set("200", jsonResponse("A page of "+res.Name+", newest first", schemaName+"List"))
	responses.Set("400", jsonResponse("Invalid query parameters", "Error"))

	return &openapi3.Operation{
		OperationID: "list" + capitalize(res.Name),
		Summary:     "List " + res.Name,
		Tags:        []string{capitalize(res.Name)},
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: openapi3.NewQueryParameter("page").
					WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithDefault(1)),
			},
			&openapi3.ParameterRef{
				Value: openapi3.NewQueryParameter("count").
					WithSchema(openapi3.NewIntegerSchema().WithMin(1).WithMax(1000).WithDefault(50)),
			},
			&openapi3.ParameterRef{
				Value: openapi3.NewQueryParameter("sort").
					WithSchema(openapi3.NewStringSchema().WithEnum("descending", "ascending").WithDefault("descending")),
			},
		},
		Responses: responses,
	}
}

func (g *Generator) createGetOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	responses := &openapi3.Responses{}
	responses.Set("200", jsonResponse("The "+singularize(res.Name), schemaName))
	responses.Set("404", jsonResponse(capitalize(singularize(res.Name))+" does not exist", "Error"))

	return &openapi3.Operation{
		OperationID: "get" + schemaName,
		Summary:     "Get a " + singularize(res.Name),
		Tags:        []string{capitalize(res.Name)},
		Responses:   responses,
	}
}

func (g *Generator) createCreateOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	responses := &openapi3.Responses{}
	responses.Set("201", jsonResponse("Created a new "+singularize(res.Name)+" or version", schemaName))
	responses.Set("200", jsonResponse("Merged labels into an existing version", schemaName))
	responses.Set("400", jsonResponse("Invalid payload", "Error"))
	responses.Set("401", jsonResponse("Missing or invalid token, or name owned by another pipeline", "Error"))
	responses.Set("403", jsonResponse("Token lacks the build scope", "Error"))
	responses.Set("404", jsonResponse("Pipeline does not exist", "Error"))
	responses.Set("409", jsonResponse("Conflicting concurrent publish", "Error"))

	summary := res.CreateSummary
	if summary == "" {
		summary = "Create a " + singularize(res.Name)
	}

	return &openapi3.Operation{
		OperationID: "publish" + schemaName,
		Summary:     summary,
		Tags:        []string{capitalize(res.Name)},
		Security:    &openapi3.SecurityRequirements{openapi3.NewSecurityRequirement().Authenticate("buildToken")},
		RequestBody: &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().
				WithRequired(true).
				WithJSONSchemaRef(schemaRef(schemaName + "Publish")),
		},
		Responses: responses,
	}
}

// =============================================================================
// Helpers
// =============================================================================

func schemaRef(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
}

func jsonResponse(description, schemaName string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{
		Value: openapi3.NewResponse().
			WithDescription(description).
			WithJSONSchemaRef(schemaRef(schemaName)),
	}
}

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// singularize performs basic singularization (removes trailing 's').
func singularize(s string) string {
	if strings.HasSuffix(s, "ies") {
		return s[:len(s)-3] + "y"
	}
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}
