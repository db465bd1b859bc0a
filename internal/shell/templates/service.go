package templates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
	"github.com/artpar/guardrails/internal/shell/store"
)

// Service orchestrates validation and persistence of response templates.
// Every method takes the caller's tenant explicitly; an empty tenant is
// unscoped and sees and may change every template.
type Service struct {
	repo      Repository
	validator RequestValidator
	logger    *slog.Logger
}

// NewService creates a Service. A nil logger uses slog.Default().
func NewService(repo Repository, validator RequestValidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		validator: validator,
		logger:    logger.With("component", "response_templates"),
	}
}

// List returns a page of templates visible to tenantID.
//
// Without a type filter a tenant sees its own templates plus every PREDEFINED
// one. USER_DEFINED narrows to the tenant's own templates and PREDEFINED to
// the system ones.
func (s *Service) List(ctx context.Context, tenantID string, filter domain.ResponseTemplateFilter, page query.PageRequest) (query.Page[domain.ResponseTemplate], error) {
	page = page.Normalize()
	if err := page.Validate(); err != nil {
		return query.Page[domain.ResponseTemplate]{}, domain.NewInvalidArgument("page", err.Error())
	}

	if filter.Type != "" && !filter.Type.IsValid() {
		return query.Page[domain.ResponseTemplate]{}, domain.NewInvalidArgument("type",
			fmt.Sprintf("%s type must be one of %s, %s", domain.ResourceName, domain.TypePredefined, domain.TypeUserDefined))
	}

	if tenantID != "" {
		switch filter.Type {
		case "":
			filter.TenantID = tenantID
			filter.Type = domain.TypePredefined
			filter.OrColumns = []string{domain.ColumnTenantID, domain.ColumnType}
		case domain.TypeUserDefined:
			filter.TenantID = tenantID
			filter.OrColumns = nil
		case domain.TypePredefined:
			filter.TenantID = ""
			filter.OrColumns = nil
		}
	}

	records, total, err := s.repo.ListResponseTemplates(ctx, filter, page)
	if err != nil {
		return query.Page[domain.ResponseTemplate]{}, translate(err)
	}
	return query.NewPage(records, total, page), nil
}

// Create validates candidate and stores it as a USER_DEFINED template owned
// by tenantID.
func (s *Service) Create(ctx context.Context, tenantID string, candidate domain.ResponseTemplate) (*domain.ResponseTemplate, error) {
	if err := s.validator.ValidateCreate(ctx, tenantID, candidate); err != nil {
		return nil, err
	}

	t := &domain.ResponseTemplate{
		TenantID:    tenantID,
		Type:        domain.TypeUserDefined,
		Response:    candidate.Response,
		Description: candidate.Description,
	}
	if err := s.repo.CreateResponseTemplate(ctx, t); err != nil {
		return nil, translate(err, t.Response)
	}

	s.logger.Info("response template created", "tenant_id", tenantID, "id", t.ID)
	return t, nil
}

// GetByID returns the template with id if tenantID can see it.
func (s *Service) GetByID(ctx context.Context, tenantID string, id int64) (*domain.ResponseTemplate, error) {
	if err := s.validator.ValidateRead(id); err != nil {
		return nil, err
	}

	t, err := s.repo.GetResponseTemplate(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !t.VisibleTo(tenantID) {
		return nil, notFound(id)
	}
	return t, nil
}

// Update replaces the response and description of template id. The id, type
// and owner never change.
func (s *Service) Update(ctx context.Context, tenantID string, id int64, candidate domain.ResponseTemplate) (*domain.ResponseTemplate, error) {
	if err := s.validator.ValidateUpdate(ctx, tenantID, id, candidate); err != nil {
		return nil, err
	}

	t := &domain.ResponseTemplate{
		ID:          id,
		TenantID:    tenantID,
		Response:    candidate.Response,
		Description: candidate.Description,
	}
	if err := s.repo.UpdateResponseTemplate(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, translate(err, candidate.Response)
	}

	s.logger.Info("response template updated", "tenant_id", tenantID, "id", id)
	return t, nil
}

// Delete removes template id.
func (s *Service) Delete(ctx context.Context, tenantID string, id int64) error {
	if err := s.validator.ValidateDelete(ctx, id); err != nil {
		return err
	}

	if err := s.repo.DeleteResponseTemplate(ctx, tenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return translate(err)
	}

	s.logger.Info("response template deleted", "tenant_id", tenantID, "id", id)
	return nil
}

// =============================================================================
// Error translation
// =============================================================================

func notFound(id int64) error {
	return domain.NewNotFound(domain.ResourceName, "id", fmt.Sprint(id))
}

// translate maps store errors to domain kinds. response names the value that
// collided when the store reports a duplicate.
func translate(err error, response ...string) error {
	var storeErr *store.StoreError
	switch {
	case errors.Is(err, store.ErrNotFound):
		if errors.As(err, &storeErr) && storeErr.ID != "" {
			return domain.NewNotFound(domain.ResourceName, "id", storeErr.ID)
		}
		return &domain.ValidationError{Kind: domain.ErrNotFound, Field: "id", Message: err.Error()}
	case errors.Is(err, store.ErrDuplicateResponse):
		return domain.NewAlreadyExists(domain.ResourceName, "response", response...)
	case errors.Is(err, store.ErrInvalidQuery):
		msg := err.Error()
		if errors.As(err, &storeErr) {
			msg = storeErr.Message
		}
		return domain.NewInvalidArgument("sort", msg)
	default:
		return err
	}
}
