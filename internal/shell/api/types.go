package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// ResponseTemplateRequest is the request body for creating or updating a
// response template. Response and description rules are enforced by the
// templates service so that errors come back in a fixed order.
type ResponseTemplateRequest struct {
	Response    string `json:"response"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty" validate:"omitempty,oneof=PREDEFINED USER_DEFINED"`
}

// ListParams are the query parameters of the list endpoint.
type ListParams struct {
	Page                int      `query:"page" validate:"gte=0"`
	Size                int      `query:"size" validate:"gte=0"`
	Sort                []string `query:"sort"`
	Response            string   `query:"response"`
	Description         string   `query:"description"`
	Type                string   `query:"type" validate:"omitempty,oneof=PREDEFINED USER_DEFINED"`
	ExactMatch          bool     `query:"exact_match"`
	CommaSeparatedValue bool     `query:"comma_separated_value"`
}

// =============================================================================
// Response Types
// =============================================================================

// ResponseTemplateResponse is the response for response template operations.
type ResponseTemplateResponse struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Type        string    `json:"type"`
	Response    string    `json:"response"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
