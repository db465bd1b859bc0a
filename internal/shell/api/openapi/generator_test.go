package openapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags"`
	Owner     *string   `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	internal  string
	Skipped   string `json:"-"`
}

type widgetRequest struct {
	Name string `json:"name" validate:"required,max=64"`
	Kind string `json:"kind" validate:"omitempty,oneof=SMALL LARGE"`
}

func widgetResource() ResourceInfo {
	return ResourceInfo{
		Name:           "widgets",
		BasePath:       "/api/widgets",
		Model:          widget{},
		Request:        widgetRequest{},
		ListFilters:    []string{"name"},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	}
}

// =============================================================================
// Generation Tests
// =============================================================================

func TestGenerate_Info(t *testing.T) {
	g := NewGenerator(WithTitle("T"), WithVersion("2.0"), WithDescription("D"), WithServer("http://localhost"))
	spec := g.Generate()

	assert.Equal(t, "3.0.3", spec.OpenAPI)
	assert.Equal(t, "T", spec.Info.Title)
	assert.Equal(t, "2.0", spec.Info.Version)
	assert.Equal(t, "D", spec.Info.Description)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "http://localhost", spec.Servers[0].URL)
	assert.Contains(t, spec.Components.Schemas, "Error")
}

func TestGenerate_ResourceSchemas(t *testing.T) {
	g := NewGenerator()
	g.RegisterResource(widgetResource())
	spec := g.Generate()

	require.Contains(t, spec.Components.Schemas, "Widget")
	require.Contains(t, spec.Components.Schemas, "WidgetRequest")
	require.Contains(t, spec.Components.Schemas, "WidgetPage")

	model := spec.Components.Schemas["Widget"].Value
	assert.Contains(t, model.Properties, "id")
	assert.Contains(t, model.Properties, "tags")
	assert.NotContains(t, model.Properties, "internal")
	assert.NotContains(t, model.Properties, "Skipped")
	assert.Equal(t, "int64", model.Properties["id"].Value.Format)
	assert.Equal(t, "date-time", model.Properties["created_at"].Value.Format)
	assert.True(t, model.Properties["owner"].Value.Nullable)

	req := spec.Components.Schemas["WidgetRequest"].Value
	assert.Equal(t, []string{"name"}, req.Required)
	require.NotNil(t, req.Properties["name"].Value.MaxLength)
	assert.Equal(t, uint64(64), *req.Properties["name"].Value.MaxLength)
	assert.Equal(t, []any{"SMALL", "LARGE"}, req.Properties["kind"].Value.Enum)

	page := spec.Components.Schemas["WidgetPage"].Value
	assert.Contains(t, page.Properties, "content")
	assert.Contains(t, page.Properties, "total_elements")
}

func TestGenerate_Operations(t *testing.T) {
	g := NewGenerator()
	g.RegisterResource(widgetResource())
	spec := g.Generate()

	collection := spec.Paths.Value("/api/widgets")
	require.NotNil(t, collection)
	require.NotNil(t, collection.Get)
	require.NotNil(t, collection.Post)
	assert.Equal(t, "listWidgets", collection.Get.OperationID)
	assert.NotNil(t, collection.Post.Responses.Value("201"))
	assert.NotNil(t, collection.Post.Responses.Value("409"))

	var names []string
	for _, p := range collection.Get.Parameters {
		names = append(names, p.Value.Name)
	}
	assert.Equal(t, []string{"page", "size", "sort", "exact_match", "comma_separated_value", "name"}, names)

	item := spec.Paths.Value("/api/widgets/{id}")
	require.NotNil(t, item)
	assert.Equal(t, "getWidget", item.Get.OperationID)
	assert.Equal(t, "updateWidget", item.Put.OperationID)
	assert.Equal(t, "deleteWidget", item.Delete.OperationID)
	assert.NotNil(t, item.Delete.Responses.Value("204"))
	assert.NotNil(t, item.Get.Responses.Value("404"))
}

func TestGenerate_PartialResource(t *testing.T) {
	res := widgetResource()
	res.SupportsCreate = false
	res.SupportsUpdate = false
	res.SupportsDelete = false

	g := NewGenerator()
	g.RegisterResource(res)
	spec := g.Generate()

	assert.Nil(t, spec.Paths.Value("/api/widgets").Post)
	item := spec.Paths.Value("/api/widgets/{id}")
	assert.NotNil(t, item.Get)
	assert.Nil(t, item.Put)
	assert.Nil(t, item.Delete)
}

func TestGenerate_CacheInvalidatedOnRegister(t *testing.T) {
	g := NewGenerator()
	first := g.Generate()
	assert.Same(t, first, g.Generate())

	g.RegisterResource(widgetResource())
	second := g.Generate()
	assert.NotSame(t, first, second)
	assert.NotNil(t, second.Paths.Value("/api/widgets"))
}

func TestHandler(t *testing.T) {
	g := NewGenerator()
	g.RegisterResource(widgetResource())

	rec := httptest.NewRecorder()
	g.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/api/widgets")
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestPascal(t *testing.T) {
	tests := map[string]string{
		"response_templates": "ResponseTemplates",
		"widgets":            "Widgets",
		"a__b":               "AB",
	}
	for in, want := range tests {
		assert.Equal(t, want, pascal(in), in)
	}
}

func TestSingularize(t *testing.T) {
	tests := map[string]string{
		"response_templates": "response_template",
		"policies":           "policy",
		"statuses":           "status",
		"data":               "data",
	}
	for in, want := range tests {
		assert.Equal(t, want, singularize(in), in)
	}
}
