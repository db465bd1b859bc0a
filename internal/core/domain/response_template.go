// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artpar/guardrails/internal/core/query"
)

// ResourceName is the human readable name used in error messages.
const ResourceName = "Response Template"

// MaxDescriptionLength is the maximum description length in characters.
const MaxDescriptionLength = 4000

// =============================================================================
// Template Type
// =============================================================================

type TemplateType string

const (
	TypePredefined  TemplateType = "PREDEFINED"
	TypeUserDefined TemplateType = "USER_DEFINED"
)

// IsValid checks if the template type is valid.
func (tt TemplateType) IsValid() bool {
	switch tt {
	case TypePredefined, TypeUserDefined:
		return true
	default:
		return false
	}
}

// OrDefault returns USER_DEFINED for an empty type.
func (tt TemplateType) OrDefault() TemplateType {
	if tt == "" {
		return TypeUserDefined
	}
	return tt
}

// =============================================================================
// ResponseTemplate
// =============================================================================

// ResponseTemplate is a canned text response referenced by guardrail policies.
type ResponseTemplate struct {
	ID          int64        `json:"id"`
	TenantID    string       `json:"tenant_id,omitempty"`
	Type        TemplateType `json:"type"`
	Response    string       `json:"response"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// IsPredefined reports whether the template is system seeded.
func (t ResponseTemplate) IsPredefined() bool {
	return t.Type == TypePredefined
}

// VisibleTo reports whether tenantID may see the template. An empty tenant is
// unscoped and sees everything.
func (t ResponseTemplate) VisibleTo(tenantID string) bool {
	return tenantID == "" || t.IsPredefined() || t.TenantID == tenantID
}

// =============================================================================
// Filter
// =============================================================================

// Filterable and sortable columns.
const (
	ColumnID          = "id"
	ColumnTenantID    = "tenant_id"
	ColumnType        = "type"
	ColumnResponse    = "response"
	ColumnDescription = "description"
	ColumnCreatedAt   = "created_at"
	ColumnUpdatedAt   = "updated_at"
)

// SortColumns lists the columns a listing may be ordered by.
var SortColumns = []string{
	ColumnID, ColumnTenantID, ColumnType, ColumnResponse,
	ColumnDescription, ColumnCreatedAt, ColumnUpdatedAt,
}

// ResponseTemplateFilter selects response templates in a listing.
type ResponseTemplateFilter struct {
	ExactMatch          bool
	CommaSeparatedValue bool
	TenantID            string
	OrColumns           []string
	Response            string
	Type                TemplateType
	Description         string
}

// Query converts the filter to the store's generic form.
func (f ResponseTemplateFilter) Query() query.Filter {
	q := query.Filter{
		ExactMatch:          f.ExactMatch,
		CommaSeparatedValue: f.CommaSeparatedValue,
		OrColumns:           f.OrColumns,
		Keys:                map[string]string{},
		Fields:              map[string]string{},
	}
	if f.TenantID != "" {
		q.Keys[ColumnTenantID] = f.TenantID
	}
	if f.Type != "" {
		q.Keys[ColumnType] = string(f.Type)
	}
	if f.Response != "" {
		q.Fields[ColumnResponse] = f.Response
	}
	if f.Description != "" {
		q.Fields[ColumnDescription] = f.Description
	}
	return q
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

// ValidateID checks that id is a positive integer.
func ValidateID(id int64) error {
	if id <= 0 {
		return NewInvalidArgument("id", fmt.Sprintf("%s ID must be a positive integer, got %d", ResourceName, id))
	}
	return nil
}

// ParseID parses a textual id and validates it.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, NewInvalidArgument("id", fmt.Sprintf("%s ID must be a positive integer, got %q", ResourceName, raw))
	}
	if err := ValidateID(id); err != nil {
		return 0, err
	}
	return id, nil
}

// ValidateResponse checks that the response text is not blank.
func ValidateResponse(response string) error {
	if strings.TrimSpace(response) == "" {
		return NewInvalidArgument("response", ResourceName+" response must not be empty")
	}
	return nil
}

// ValidateDescription checks the optional description length.
func ValidateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > MaxDescriptionLength {
		return NewInvalidArgument("description",
			fmt.Sprintf("%s description must be at most %d characters, got %d", ResourceName, MaxDescriptionLength, n))
	}
	return nil
}

// ValidateType rejects PREDEFINED for any client driven change. action names
// the attempted change ("created", "updated", "deleted").
func ValidateType(tt TemplateType, action string) error {
	if tt == TypePredefined {
		return NewInvalidOperation(fmt.Sprintf("PREDEFINED response templates cannot be %s", action))
	}
	if tt != "" && !tt.IsValid() {
		return NewInvalidArgument("type", fmt.Sprintf("%s type must be one of %s, %s", ResourceName, TypePredefined, TypeUserDefined))
	}
	return nil
}

// ValidateFields runs the type, response and description checks in order and
// returns the first failure.
func ValidateFields(t ResponseTemplate, action string) error {
	if err := ValidateType(t.Type, action); err != nil {
		return err
	}
	if err := ValidateResponse(t.Response); err != nil {
		return err
	}
	return ValidateDescription(t.Description)
}
