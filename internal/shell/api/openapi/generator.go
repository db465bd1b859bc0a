// Package openapi provides reflective OpenAPI 3.0 specification generation.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
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
	Name           string   // Resource collection name (e.g., "response_templates")
	BasePath       string   // Collection path (e.g., "/guardrail-service/api/response_templates")
	Model          any      // Response body struct
	Request        any      // Create/update body struct
	ListFilters    []string // Query parameters accepted by the list operation
	SupportsFind   bool     // GET {base} and GET {base}/{id}
	SupportsCreate bool     // POST {base}
	SupportsUpdate bool     // PUT {base}/{id}
	SupportsDelete bool     // DELETE {base}/{id}
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
		title:       "Guardrails API",
		version:     "1.0.0",
		description: "Guardrail response template management API",
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
	g.cachedSpec = nil
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

// Handler returns an HTTP handler that serves the OpenAPI specification.
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

// =============================================================================
// Schema Generation
// =============================================================================

func stringSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
}

func integerSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}
}

func booleanSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
}

// addCommonSchemas adds the error schema shared by every operation.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": stringSchema(),
				"code":  stringSchema(),
				"field": stringSchema(),
			},
			Required: []string{"error", "code"},
		},
	}
}

// pageSchema describes the paginated envelope around item.
func pageSchema(item string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"content": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: &openapi3.SchemaRef{Ref: "#/components/schemas/" + item},
					},
				},
				"total_elements":     integerSchema(),
				"total_pages":        integerSchema(),
				"number":             integerSchema(),
				"size":               integerSchema(),
				"number_of_elements": integerSchema(),
				"first":              booleanSchema(),
				"last":               booleanSchema(),
				"empty":              booleanSchema(),
			},
		},
	}
}

// addResourceToSpec adds paths and schemas for a resource.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	schemaName := pascal(singularize(res.Name))

	spec.Components.Schemas[schemaName] = g.extractSchema(res.Model)
	if res.Request != nil {
		spec.Components.Schemas[schemaName+"Request"] = g.extractSchema(res.Request)
	}
	spec.Components.Schemas[schemaName+"Page"] = pageSchema(schemaName)

	collectionPath := &openapi3.PathItem{}
	if res.SupportsFind {
		collectionPath.Get = g.createListOperation(res, schemaName)
	}
	if res.SupportsCreate {
		collectionPath.Post = g.createCreateOperation(res, schemaName)
	}
	spec.Paths.Set(res.BasePath, collectionPath)

	itemPath := &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: &openapi3.Parameter{
					Name:     "id",
					In:       "path",
					Required: true,
					Schema: &openapi3.SchemaRef{
						Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"},
					},
				},
			},
		},
	}
	if res.SupportsFind {
		itemPath.Get = g.createGetOperation(res, schemaName)
	}
	if res.SupportsUpdate {
		itemPath.Put = g.createUpdateOperation(res, schemaName)
	}
	if res.SupportsDelete {
		itemPath.Delete = g.createDeleteOperation(res, schemaName)
	}
	spec.Paths.Set(res.BasePath+"/{id}", itemPath)
}

// extractSchema extracts an OpenAPI schema from a Go struct. validate tags
// contribute required fields and max lengths.
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
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				name = parts[0]
			}
		}

		propSchema := g.goTypeToSchema(field.Type)
		if propSchema == nil {
			continue
		}
		for _, rule := range strings.Split(field.Tag.Get("validate"), ",") {
			switch {
			case rule == "required":
				schema.Required = append(schema.Required, name)
			case strings.HasPrefix(rule, "max=") && propSchema.Value != nil:
				if n, err := strconv.ParseUint(strings.TrimPrefix(rule, "max="), 10, 64); err == nil {
					propSchema.Value.MaxLength = &n
				}
			case strings.HasPrefix(rule, "oneof=") && propSchema.Value != nil:
				for _, v := range strings.Fields(strings.TrimPrefix(rule, "oneof=")) {
					propSchema.Value.Enum = append(propSchema.Value.Enum, v)
				}
			}
		}
		schema.Properties[name] = propSchema
	}

	return &openapi3.SchemaRef{Value: schema}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return stringSchema()

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return integerSchema()

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.Bool:
		return booleanSchema()

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.goTypeToSchema(t.Elem()),
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
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return g.extractSchema(reflect.New(t).Interface())

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func jsonResponse(description, ref string) *openapi3.ResponseRef {
	resp := openapi3.NewResponse().WithDescription(description)
	if ref != "" {
		resp = resp.WithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/" + ref})
	}
	return &openapi3.ResponseRef{Value: resp}
}

func errorResponses(statuses ...int) []openapi3.NewResponsesOption {
	opts := make([]openapi3.NewResponsesOption, 0, len(statuses))
	for _, status := range statuses {
		opts = append(opts, openapi3.WithStatus(status, jsonResponse(http.StatusText(status), "Error")))
	}
	return opts
}

func requestBody(schemaName string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(&openapi3.SchemaRef{Ref: "#/components/schemas/" + schemaName + "Request"}),
	}
}

func queryParam(name string, schema *openapi3.SchemaRef) *openapi3.ParameterRef {
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{Name: name, In: "query", Schema: schema},
	}
}

func (g *Generator) createListOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	params := openapi3.Parameters{
		queryParam("page", &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Default: 0}}),
		queryParam("size", &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Default: 10}}),
		queryParam("sort", &openapi3.SchemaRef{
			Value: &openapi3.Schema{Type: &openapi3.Types{"array"}, Items: stringSchema()},
		}),
		queryParam("exact_match", booleanSchema()),
		queryParam("comma_separated_value", booleanSchema()),
	}
	for _, f := range res.ListFilters {
		params = append(params, queryParam(f, stringSchema()))
	}

	opts := append([]openapi3.NewResponsesOption{
		openapi3.WithStatus(http.StatusOK, jsonResponse("A page of "+strings.ReplaceAll(res.Name, "_", " "), schemaName+"Page")),
	}, errorResponses(http.StatusBadRequest)...)

	return &openapi3.Operation{
		OperationID: "list" + pascal(res.Name),
		Summary:     "List " + strings.ReplaceAll(res.Name, "_", " "),
		Tags:        []string{pascal(res.Name)},
		Parameters:  params,
		Responses:   openapi3.NewResponses(opts...),
	}
}

func (g *Generator) createGetOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	opts := append([]openapi3.NewResponsesOption{
		openapi3.WithStatus(http.StatusOK, jsonResponse("Found", schemaName)),
	}, errorResponses(http.StatusBadRequest, http.StatusNotFound)...)

	return &openapi3.Operation{
		OperationID: "get" + schemaName,
		Summary:     "Get a " + singularize(strings.ReplaceAll(res.Name, "_", " ")),
		Tags:        []string{pascal(res.Name)},
		Responses:   openapi3.NewResponses(opts...),
	}
}

func (g *Generator) createCreateOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	opts := append([]openapi3.NewResponsesOption{
		openapi3.WithStatus(http.StatusCreated, jsonResponse("Created", schemaName)),
	}, errorResponses(http.StatusBadRequest, http.StatusConflict)...)

	return &openapi3.Operation{
		OperationID: "create" + schemaName,
		Summary:     "Create a " + singularize(strings.ReplaceAll(res.Name, "_", " ")),
		Tags:        []string{pascal(res.Name)},
		RequestBody: requestBody(schemaName),
		Responses:   openapi3.NewResponses(opts...),
	}
}

func (g *Generator) createUpdateOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	opts := append([]openapi3.NewResponsesOption{
		openapi3.WithStatus(http.StatusOK, jsonResponse("Updated", schemaName)),
	}, errorResponses(http.StatusBadRequest, http.StatusNotFound, http.StatusConflict)...)

	return &openapi3.Operation{
		OperationID: "update" + schemaName,
		Summary:     "Update a " + singularize(strings.ReplaceAll(res.Name, "_", " ")),
		Tags:        []string{pascal(res.Name)},
		RequestBody: requestBody(schemaName),
		Responses:   openapi3.NewResponses(opts...),
	}
}

func (g *Generator) createDeleteOperation(res ResourceInfo, schemaName string) *openapi3.Operation {
	opts := append([]openapi3.NewResponsesOption{
		openapi3.WithStatus(http.StatusNoContent, jsonResponse("Deleted", "")),
	}, errorResponses(http.StatusBadRequest, http.StatusNotFound)...)

	return &openapi3.Operation{
		OperationID: "delete" + schemaName,
		Summary:     "Delete a " + singularize(strings.ReplaceAll(res.Name, "_", " ")),
		Tags:        []string{pascal(res.Name)},
		Responses:   openapi3.NewResponses(opts...),
	}
}

// =============================================================================
// Helpers
// =============================================================================

// pascal converts snake_case to PascalCase.
func pascal(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

// singularize performs basic singularization (removes trailing 's').
func singularize(s string) string {
	if strings.HasSuffix(s, "ies") {
		return s[:len(s)-3] + "y"
	}
	if strings.HasSuffix(s, "ses") {
		return s[:len(s)-2]
	}
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}
