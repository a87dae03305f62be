package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Test Helpers
// =============================================================================

type testTemplate struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
	Internal  string    `json:"-"`
	hidden    string
}

func testGenerator() *Generator {
	g := NewGenerator(WithTitle("Test API"), WithVersion("9.9.9"), WithServer("http://localhost:8080"))
	g.RegisterResource(ResourceInfo{
		Name:           "templates",
		Model:          testTemplate{},
		CreateSchema:   PublishTemplateSchema(),
		CreateSummary:  "Publish a template",
		SupportsFind:   true,
		SupportsCreate: true,
	})
	return g
}

// =============================================================================
// Generator Tests
// =============================================================================

func TestGenerate_Info(t *testing.T) {
	spec := testGenerator().Generate()

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, "Test API", spec.Info.Title)
	assert.Equal(t, "9.9.9", spec.Info.Version)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "http://localhost:8080", spec.Servers[0].URL)
}

func TestGenerate_Paths(t *testing.T) {
	spec := testGenerator().Generate()

	collection := spec.Paths.Value("/api/v1/templates")
	require.NotNil(t, collection)
	require.NotNil(t, collection.Get)
	require.NotNil(t, collection.Post)
	assert.Equal(t, "listTemplates", collection.Get.OperationID)
	assert.Equal(t, "publishTemplate", collection.Post.OperationID)
	assert.Equal(t, "Publish a template", collection.Post.Summary)
	assert.NotNil(t, collection.Post.Responses.Value("201"))
	assert.NotNil(t, collection.Post.Responses.Value("409"))

	item := spec.Paths.Value("/api/v1/templates/{id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	assert.Equal(t, "getTemplate", item.Get.OperationID)
	assert.NotNil(t, item.Get.Responses.Value("404"))
}

func TestGenerate_ReflectsModel(t *testing.T) {
	spec := testGenerator().Generate()

	schema := spec.Components.Schemas["Template"]
	require.NotNil(t, schema)

	props := schema.Value.Properties
	assert.Contains(t, props, "id")
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "labels")
	assert.Contains(t, props, "createdAt")
	assert.NotContains(t, props, "Internal")
	assert.NotContains(t, props, "hidden")

	assert.Equal(t, "int64", props["id"].Value.Format)
	assert.Equal(t, "date-time", props["createdAt"].Value.Format)
	assert.True(t, props["labels"].Value.Type.Is("array"))

	assert.Contains(t, spec.Components.Schemas, "TemplateList")
	assert.Contains(t, spec.Components.Schemas, "TemplatePublish")
	assert.Contains(t, spec.Components.Schemas, "Error")
}

func TestGenerate_Cached(t *testing.T) {
	g := testGenerator()
	first := g.Generate()
	assert.Same(t, first, g.Generate())

	g.RegisterResource(ResourceInfo{Name: "pipelines", Model: testTemplate{}, SupportsFind: true})
	assert.NotSame(t, first, g.Generate())
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandler_ServesJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	testGenerator().Handler()(rec, httptest.NewRequest("GET", "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
}

func TestYAMLHandler_ServesYAML(t *testing.T) {
	rec := httptest.NewRecorder()
	testGenerator().YAMLHandler()(rec, httptest.NewRequest("GET", "/openapi.yaml", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/v1/templates")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestSingularize(t *testing.T) {
	assert.Equal(t, "template", singularize("templates"))
	assert.Equal(t, "registry", singularize("registries"))
	assert.Equal(t, "data", singularize("data"))
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Templates", capitalize("templates"))
	assert.Equal(t, "", capitalize(""))
}
