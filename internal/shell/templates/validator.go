// Package templates validates and orchestrates response template requests.
package templates

import (
	"context"
	"errors"
	"strconv"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
	"github.com/artpar/guardrails/internal/shell/store"
)

// =============================================================================
// Collaborators
// =============================================================================

// Reader is the read side of the response template repository.
type Reader interface {
	GetResponseTemplate(ctx context.Context, id int64) (*domain.ResponseTemplate, error)
	ListResponseTemplates(ctx context.Context, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error)
}

// Repository is the full response template repository.
type Repository interface {
	Reader
	CreateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error
	UpdateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error
	DeleteResponseTemplate(ctx context.Context, tenantID string, id int64) error
}

// RequestValidator checks proposed changes before they reach the repository.
type RequestValidator interface {
	ValidateCreate(ctx context.Context, tenantID string, candidate domain.ResponseTemplate) error
	ValidateRead(id int64) error
	ValidateUpdate(ctx context.Context, tenantID string, id int64, candidate domain.ResponseTemplate) error
	ValidateDelete(ctx context.Context, id int64) error
}

// =============================================================================
// Validator
// =============================================================================

// Validator is the repository backed RequestValidator.
type Validator struct {
	repo Reader
}

// NewValidator creates a Validator reading through repo.
func NewValidator(repo Reader) *Validator {
	return &Validator{repo: repo}
}

var _ RequestValidator = (*Validator)(nil)

func (v *Validator) ValidateCreate(ctx context.Context, tenantID string, candidate domain.ResponseTemplate) error {
	if err := domain.ValidateFields(candidate, "created"); err != nil {
		return err
	}

	existing, err := v.getByResponse(ctx, tenantID, candidate.Response)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.NewAlreadyExists(domain.ResourceName, "response", candidate.Response)
	}
	return nil
}

func (v *Validator) ValidateRead(id int64) error {
	return domain.ValidateID(id)
}

func (v *Validator) ValidateUpdate(ctx context.Context, tenantID string, id int64, candidate domain.ResponseTemplate) error {
	if err := domain.ValidateType(candidate.Type, "updated"); err != nil {
		return err
	}
	if err := domain.ValidateID(id); err != nil {
		return err
	}
	if err := domain.ValidateResponse(candidate.Response); err != nil {
		return err
	}
	if err := domain.ValidateDescription(candidate.Description); err != nil {
		return err
	}

	if err := v.ensureNotPredefined(ctx, tenantID, id, "updated"); err != nil {
		return err
	}

	existing, err := v.getByResponse(ctx, tenantID, candidate.Response)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != id {
		return domain.NewAlreadyExists(domain.ResourceName, "response", candidate.Response)
	}
	return nil
}

func (v *Validator) ValidateDelete(ctx context.Context, id int64) error {
	if err := domain.ValidateID(id); err != nil {
		return err
	}
	return v.ensureNotPredefined(ctx, "", id, "deleted")
}

// ensureNotPredefined rejects changes to a stored PREDEFINED template. A
// missing record passes; the repository reports it when the change is applied.
// A record tenantID cannot see is reported as not found.
func (v *Validator) ensureNotPredefined(ctx context.Context, tenantID string, id int64, action string) error {
	stored, err := v.repo.GetResponseTemplate(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if !stored.VisibleTo(tenantID) {
		return domain.NewNotFound(domain.ResourceName, "id", strconv.FormatInt(id, 10))
	}
	return domain.ValidateType(stored.Type, action)
}

// getByResponse returns the first template with exactly this response text
// that the tenant can see, or nil. For a tenant that is its own templates plus
// every PREDEFINED one; an empty tenant searches all templates.
func (v *Validator) getByResponse(ctx context.Context, tenantID, response string) (*domain.ResponseTemplate, error) {
	filter := domain.ResponseTemplateFilter{
		Response:            response,
		ExactMatch:          true,
		CommaSeparatedValue: false,
	}
	if tenantID != "" {
		filter.TenantID = tenantID
		filter.Type = domain.TypePredefined
		filter.OrColumns = []string{domain.ColumnTenantID, domain.ColumnType}
	}

	records, total, err := v.repo.ListResponseTemplates(ctx, filter, query.PageRequest{Size: 1})
	if err != nil {
		return nil, err
	}
	if total > 0 && len(records) > 0 {
		return &records[0], nil
	}
	return nil, nil
}
