package store

import (
	"context"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for response templates.
type Store interface {
	// Response template operations
	CreateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error
	GetResponseTemplate(ctx context.Context, id int64) (*domain.ResponseTemplate, error)
	UpdateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error
	DeleteResponseTemplate(ctx context.Context, tenantID string, id int64) error
	ListResponseTemplates(ctx context.Context, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error)

	// Seeding of PREDEFINED templates
	UpsertPredefinedTemplate(ctx context.Context, response, description string) (bool, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
