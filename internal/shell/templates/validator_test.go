package templates

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
	"github.com/artpar/guardrails/internal/shell/store"
)

// =============================================================================
// Mock Repository
// =============================================================================

type mockRepository struct {
	byID    map[int64]*domain.ResponseTemplate
	matches []domain.ResponseTemplate
	listErr error
	getErr  error

	lastFilter domain.ResponseTemplateFilter
	lastPage   query.PageRequest
	listCalls  int
	getCalls   int

	created []*domain.ResponseTemplate
	updated []*domain.ResponseTemplate
	deleted []int64
}

func (m *mockRepository) GetResponseTemplate(_ context.Context, id int64) (*domain.ResponseTemplate, error) {
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	if t, ok := m.byID[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, store.NewStoreError("GetResponseTemplate", "response_template", "", "response template not found", store.ErrNotFound)
}

func (m *mockRepository) ListResponseTemplates(_ context.Context, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error) {
	m.listCalls++
	m.lastFilter = filter
	m.lastPage = page
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.matches, len(m.matches), nil
}

func (m *mockRepository) CreateResponseTemplate(_ context.Context, t *domain.ResponseTemplate) error {
	t.ID = int64(len(m.created) + 1)
	m.created = append(m.created, t)
	return nil
}

func (m *mockRepository) UpdateResponseTemplate(_ context.Context, t *domain.ResponseTemplate) error {
	m.updated = append(m.updated, t)
	return nil
}

func (m *mockRepository) DeleteResponseTemplate(_ context.Context, _ string, id int64) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func userTemplate(id int64, tenantID, response string) domain.ResponseTemplate {
	return domain.ResponseTemplate{ID: id, TenantID: tenantID, Type: domain.TypeUserDefined, Response: response}
}

func predefinedTemplate(id int64, response string) domain.ResponseTemplate {
	return domain.ResponseTemplate{ID: id, Type: domain.TypePredefined, Response: response}
}

// =============================================================================
// Create Tests
// =============================================================================

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name      string
		candidate domain.ResponseTemplate
		matches   []domain.ResponseTemplate
		wantKind  error
		wantMsg   string
	}{
		{
			name:      "valid",
			candidate: domain.ResponseTemplate{Response: "Blocked", Description: "d"},
		},
		{
			name:      "explicit user defined",
			candidate: domain.ResponseTemplate{Type: domain.TypeUserDefined, Response: "Blocked"},
		},
		{
			name:      "predefined type",
			candidate: domain.ResponseTemplate{Type: domain.TypePredefined, Response: "Blocked"},
			wantKind:  domain.ErrInvalidOperation,
			wantMsg:   "PREDEFINED response templates cannot be created",
		},
		{
			name:      "predefined wins over empty response",
			candidate: domain.ResponseTemplate{Type: domain.TypePredefined},
			wantKind:  domain.ErrInvalidOperation,
		},
		{
			name:      "unknown type",
			candidate: domain.ResponseTemplate{Type: "CUSTOM", Response: "Blocked"},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "empty response",
			candidate: domain.ResponseTemplate{},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "whitespace response",
			candidate: domain.ResponseTemplate{Response: " \t\n"},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "description too long",
			candidate: domain.ResponseTemplate{Response: "Blocked", Description: strings.Repeat("x", 4001)},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "description at limit",
			candidate: domain.ResponseTemplate{Response: "Blocked", Description: strings.Repeat("é", 4000)},
		},
		{
			name:      "duplicate response",
			candidate: domain.ResponseTemplate{Response: "Blocked"},
			matches:   []domain.ResponseTemplate{userTemplate(3, "t1", "Blocked")},
			wantKind:  domain.ErrAlreadyExists,
			wantMsg:   "Response Template already exists with response: [Blocked]",
		},
		{
			name:      "duplicates a predefined response",
			candidate: domain.ResponseTemplate{Response: "Blocked"},
			matches:   []domain.ResponseTemplate{predefinedTemplate(1, "Blocked")},
			wantKind:  domain.ErrAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{matches: tt.matches}
			v := NewValidator(repo)

			err := v.ValidateCreate(context.Background(), "t1", tt.candidate)
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, err.Error())
			}
		})
	}
}

func TestValidateCreate_FieldErrorsSkipLookup(t *testing.T) {
	repo := &mockRepository{}
	v := NewValidator(repo)

	err := v.ValidateCreate(context.Background(), "t1", domain.ResponseTemplate{})
	require.Error(t, err)
	assert.Zero(t, repo.listCalls)
}

func TestValidateCreate_LookupScope(t *testing.T) {
	repo := &mockRepository{}
	v := NewValidator(repo)

	require.NoError(t, v.ValidateCreate(context.Background(), "t1", domain.ResponseTemplate{Response: "a,b"}))

	f := repo.lastFilter
	assert.Equal(t, "a,b", f.Response)
	assert.True(t, f.ExactMatch)
	assert.False(t, f.CommaSeparatedValue)
	assert.Equal(t, "t1", f.TenantID)
	assert.Equal(t, domain.TypePredefined, f.Type)
	assert.Equal(t, []string{domain.ColumnTenantID, domain.ColumnType}, f.OrColumns)
	assert.Equal(t, 1, repo.lastPage.Size)
}

func TestValidateCreate_UnscopedLookup(t *testing.T) {
	repo := &mockRepository{}
	v := NewValidator(repo)

	require.NoError(t, v.ValidateCreate(context.Background(), "", domain.ResponseTemplate{Response: "x"}))
	assert.Empty(t, repo.lastFilter.TenantID)
	assert.Empty(t, repo.lastFilter.Type)
	assert.Empty(t, repo.lastFilter.OrColumns)
}

func TestValidateCreate_LookupError(t *testing.T) {
	boom := errors.New("db down")
	v := NewValidator(&mockRepository{listErr: boom})

	err := v.ValidateCreate(context.Background(), "t1", domain.ResponseTemplate{Response: "x"})
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// Read Tests
// =============================================================================

func TestValidateRead(t *testing.T) {
	v := NewValidator(&mockRepository{})

	assert.NoError(t, v.ValidateRead(1))
	assert.ErrorIs(t, v.ValidateRead(0), domain.ErrInvalidArgument)
	assert.ErrorIs(t, v.ValidateRead(-5), domain.ErrInvalidArgument)
}

// =============================================================================
// Update Tests
// =============================================================================

func TestValidateUpdate(t *testing.T) {
	user := userTemplate(10, "t1", "Blocked")
	foreign := userTemplate(20, "t2", "Theirs")
	system := predefinedTemplate(1, "System refusal")

	tests := []struct {
		name      string
		id        int64
		candidate domain.ResponseTemplate
		stored    map[int64]*domain.ResponseTemplate
		matches   []domain.ResponseTemplate
		wantKind  error
	}{
		{
			name:      "valid",
			id:        10,
			candidate: domain.ResponseTemplate{Response: "Blocked by policy"},
			stored:    map[int64]*domain.ResponseTemplate{10: &user},
		},
		{
			name:      "self update with same response",
			id:        10,
			candidate: domain.ResponseTemplate{Response: "Blocked", Description: "new"},
			stored:    map[int64]*domain.ResponseTemplate{10: &user},
			matches:   []domain.ResponseTemplate{user},
		},
		{
			name:      "response taken by another template",
			id:        10,
			candidate: domain.ResponseTemplate{Response: "Other"},
			stored:    map[int64]*domain.ResponseTemplate{10: &user},
			matches:   []domain.ResponseTemplate{userTemplate(11, "t1", "Other")},
			wantKind:  domain.ErrAlreadyExists,
		},
		{
			name:      "candidate marked predefined",
			id:        10,
			candidate: domain.ResponseTemplate{Type: domain.TypePredefined, Response: "x"},
			stored:    map[int64]*domain.ResponseTemplate{10: &user},
			wantKind:  domain.ErrInvalidOperation,
		},
		{
			name:      "predefined checked before id",
			id:        0,
			candidate: domain.ResponseTemplate{Type: domain.TypePredefined, Response: "x"},
			wantKind:  domain.ErrInvalidOperation,
		},
		{
			name:      "invalid id",
			id:        0,
			candidate: domain.ResponseTemplate{Response: "x"},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "empty response",
			id:        10,
			candidate: domain.ResponseTemplate{Response: "  "},
			wantKind:  domain.ErrInvalidArgument,
		},
		{
			name:      "stored record is predefined",
			id:        1,
			candidate: domain.ResponseTemplate{Response: "x"},
			stored:    map[int64]*domain.ResponseTemplate{1: &system},
			wantKind:  domain.ErrInvalidOperation,
		},
		{
			name:      "missing record passes",
			id:        99,
			candidate: domain.ResponseTemplate{Response: "x"},
		},
		{
			name:      "other tenant's record is not found before duplicate check",
			id:        20,
			candidate: domain.ResponseTemplate{Response: "Blocked"},
			stored:    map[int64]*domain.ResponseTemplate{20: &foreign},
			matches:   []domain.ResponseTemplate{user},
			wantKind:  domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{byID: tt.stored, matches: tt.matches}
			v := NewValidator(repo)

			err := v.ValidateUpdate(context.Background(), "t1", tt.id, tt.candidate)
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestValidateUpdate_PredefinedMessage(t *testing.T) {
	system := predefinedTemplate(1, "System refusal")
	v := NewValidator(&mockRepository{byID: map[int64]*domain.ResponseTemplate{1: &system}})

	err := v.ValidateUpdate(context.Background(), "t1", 1, domain.ResponseTemplate{Response: "x"})
	require.Error(t, err)
	assert.Equal(t, "PREDEFINED response templates cannot be updated", err.Error())
}

func TestValidateUpdate_UnscopedSeesEveryRecord(t *testing.T) {
	foreign := userTemplate(20, "t2", "Theirs")
	repo := &mockRepository{byID: map[int64]*domain.ResponseTemplate{20: &foreign}}

	err := NewValidator(repo).ValidateUpdate(context.Background(), "", 20, domain.ResponseTemplate{Response: "Renamed"})
	assert.NoError(t, err)
}

func TestValidateUpdate_GetError(t *testing.T) {
	boom := errors.New("db down")
	v := NewValidator(&mockRepository{getErr: boom})

	err := v.ValidateUpdate(context.Background(), "t1", 1, domain.ResponseTemplate{Response: "x"})
	assert.ErrorIs(t, err, boom)
}

// =============================================================================
// Delete Tests
// =============================================================================

func TestValidateDelete(t *testing.T) {
	user := userTemplate(10, "t1", "Blocked")
	system := predefinedTemplate(1, "System refusal")
	stored := map[int64]*domain.ResponseTemplate{1: &system, 10: &user}

	tests := []struct {
		name     string
		id       int64
		wantKind error
	}{
		{name: "user defined", id: 10},
		{name: "missing", id: 99},
		{name: "predefined", id: 1, wantKind: domain.ErrInvalidOperation},
		{name: "zero id", id: 0, wantKind: domain.ErrInvalidArgument},
		{name: "negative id", id: -1, wantKind: domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockRepository{byID: stored}
			err := NewValidator(repo).ValidateDelete(context.Background(), tt.id)
			if tt.wantKind == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestValidateDelete_InvalidIDSkipsLookup(t *testing.T) {
	repo := &mockRepository{}
	_ = NewValidator(repo).ValidateDelete(context.Background(), 0)
	assert.Zero(t, repo.getCalls)
}
