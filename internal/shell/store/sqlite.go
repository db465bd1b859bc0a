package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/artpar/guardrails/internal/core/domain"
	"github.com/artpar/guardrails/internal/core/query"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withPragmas(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// SQLite allows a single writer; one connection also keeps an in-memory
	// database shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Response Template Operations
// =============================================================================

// responseTemplateRow represents a response_templates row.
type responseTemplateRow struct {
	ID          int64  `db:"id"`
	TenantID    string `db:"tenant_id"`
	Type        string `db:"type"`
	Response    string `db:"response"`
	Description string `db:"description"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (s *SQLiteStore) CreateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	return createResponseTemplate(ctx, s.db, t)
}

func (s *SQLiteStore) GetResponseTemplate(ctx context.Context, id int64) (*domain.ResponseTemplate, error) {
	return getResponseTemplate(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	return updateResponseTemplate(ctx, s.db, t)
}

func (s *SQLiteStore) DeleteResponseTemplate(ctx context.Context, tenantID string, id int64) error {
	return deleteResponseTemplate(ctx, s.db, tenantID, id)
}

func (s *SQLiteStore) ListResponseTemplates(ctx context.Context, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error) {
	return listResponseTemplates(ctx, s.db, filter, page)
}

func (s *SQLiteStore) UpsertPredefinedTemplate(ctx context.Context, response, description string) (bool, error) {
	return upsertPredefinedTemplate(ctx, s.db, response, description)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	return createResponseTemplate(ctx, s.tx, t)
}

func (s *txSQLiteStore) GetResponseTemplate(ctx context.Context, id int64) (*domain.ResponseTemplate, error) {
	return getResponseTemplate(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateResponseTemplate(ctx context.Context, t *domain.ResponseTemplate) error {
	return updateResponseTemplate(ctx, s.tx, t)
}

func (s *txSQLiteStore) DeleteResponseTemplate(ctx context.Context, tenantID string, id int64) error {
	return deleteResponseTemplate(ctx, s.tx, tenantID, id)
}

func (s *txSQLiteStore) ListResponseTemplates(ctx context.Context, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error) {
	return listResponseTemplates(ctx, s.tx, filter, page)
}

func (s *txSQLiteStore) UpsertPredefinedTemplate(ctx context.Context, response, description string) (bool, error) {
	return upsertPredefinedTemplate(ctx, s.tx, response, description)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createResponseTemplate(ctx context.Context, exec executor, t *domain.ResponseTemplate) error {
	now := time.Now().UTC().Truncate(time.Second)
	t.Type = t.Type.OrDefault()

	stmt := `
		INSERT INTO response_templates (
			tenant_id, type, response, description, created_at, updated_at
		) VALUES (
			:tenant_id, :type, :response, :description, :created_at, :updated_at
		)`

	row := map[string]any{
		"tenant_id":   t.TenantID,
		"type":        string(t.Type),
		"response":    t.Response,
		"description": t.Description,
		"created_at":  now.Format(time.RFC3339),
		"updated_at":  now.Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, stmt, row)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateResponseTemplate", "response_template", "", "response template with this response already exists", ErrDuplicateResponse)
		}
		return NewStoreError("CreateResponseTemplate", "response_template", "", err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateResponseTemplate", "response_template", "", err.Error(), err)
	}

	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func getResponseTemplate(ctx context.Context, exec executor, id int64) (*domain.ResponseTemplate, error) {
	stmt := `SELECT * FROM response_templates WHERE id = ?`

	var row responseTemplateRow
	err := exec.GetContext(ctx, &row, stmt, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetResponseTemplate", "response_template", idString(id), "response template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetResponseTemplate", "response_template", idString(id), err.Error(), err)
	}

	return rowToResponseTemplate(&row), nil
}

// updateResponseTemplate rewrites the mutable fields. id, type and tenant
// are never changed; a non-empty TenantID restricts the update to rows
// owned by that tenant. On success t is refreshed from the database.
func updateResponseTemplate(ctx context.Context, exec executor, t *domain.ResponseTemplate) error {
	now := time.Now().UTC().Truncate(time.Second)

	stmt := `
		UPDATE response_templates SET
			response = :response,
			description = :description,
			updated_at = :updated_at
		WHERE id = :id`
	if t.TenantID != "" {
		stmt += ` AND tenant_id = :tenant_id`
	}

	row := map[string]any{
		"id":          t.ID,
		"tenant_id":   t.TenantID,
		"response":    t.Response,
		"description": t.Description,
		"updated_at":  now.Format(time.RFC3339),
	}

	result, err := exec.NamedExecContext(ctx, stmt, row)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("UpdateResponseTemplate", "response_template", idString(t.ID), "response template with this response already exists", ErrDuplicateResponse)
		}
		return NewStoreError("UpdateResponseTemplate", "response_template", idString(t.ID), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateResponseTemplate", "response_template", idString(t.ID), "response template not found", ErrNotFound)
	}

	fresh, err := getResponseTemplate(ctx, exec, t.ID)
	if err != nil {
		return err
	}
	*t = *fresh
	return nil
}

func deleteResponseTemplate(ctx context.Context, exec executor, tenantID string, id int64) error {
	stmt := `DELETE FROM response_templates WHERE id = ?`
	args := []any{id}
	if tenantID != "" {
		stmt += ` AND tenant_id = ?`
		args = append(args, tenantID)
	}

	result, err := exec.ExecContext(ctx, stmt, args...)
	if err != nil {
		return NewStoreError("DeleteResponseTemplate", "response_template", idString(id), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteResponseTemplate", "response_template", idString(id), "response template not found", ErrNotFound)
	}

	return nil
}

func listResponseTemplates(ctx context.Context, exec executor, filter domain.ResponseTemplateFilter, page query.PageRequest) ([]domain.ResponseTemplate, int, error) {
	listQ, countQ, err := listQueries(filter.Query(), page)
	if err != nil {
		return nil, 0, err
	}

	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, NewStoreError("ListResponseTemplates", "response_template", "", err.Error(), ErrInvalidQuery)
	}
	var total int
	if err := exec.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, NewStoreError("ListResponseTemplates", "response_template", "", err.Error(), err)
	}

	listSQL, listArgs, err := listQ.ToSql()
	if err != nil {
		return nil, 0, NewStoreError("ListResponseTemplates", "response_template", "", err.Error(), ErrInvalidQuery)
	}
	var rows []responseTemplateRow
	if err := exec.SelectContext(ctx, &rows, listSQL, listArgs...); err != nil {
		return nil, 0, NewStoreError("ListResponseTemplates", "response_template", "", err.Error(), err)
	}

	templates := make([]domain.ResponseTemplate, 0, len(rows))
	for i := range rows {
		templates = append(templates, *rowToResponseTemplate(&rows[i]))
	}

	return templates, total, nil
}

// upsertPredefinedTemplate inserts a PREDEFINED template unless one with the
// same response exists, in which case its description is refreshed.
// Reports whether a row was inserted.
func upsertPredefinedTemplate(ctx context.Context, exec executor, response, description string) (bool, error) {
	var existing responseTemplateRow
	err := exec.GetContext(ctx, &existing,
		`SELECT * FROM response_templates WHERE type = ? AND response = ?`,
		string(domain.TypePredefined), response)
	if err == nil {
		if existing.Description != description {
			_, err = exec.ExecContext(ctx,
				`UPDATE response_templates SET description = ?, updated_at = ? WHERE id = ?`,
				description, time.Now().UTC().Format(time.RFC3339), existing.ID)
			if err != nil {
				return false, NewStoreError("UpsertPredefinedTemplate", "response_template", idString(existing.ID), err.Error(), err)
			}
		}
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, NewStoreError("UpsertPredefinedTemplate", "response_template", "", err.Error(), err)
	}

	t := &domain.ResponseTemplate{
		Type:        domain.TypePredefined,
		Response:    response,
		Description: description,
	}
	if err := createResponseTemplate(ctx, exec, t); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// Helpers
// =============================================================================

// rowToResponseTemplate converts a database row to a domain.ResponseTemplate.
func rowToResponseTemplate(row *responseTemplateRow) *domain.ResponseTemplate {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.ResponseTemplate{
		ID:          row.ID,
		TenantID:    row.TenantID,
		Type:        domain.TemplateType(row.Type),
		Response:    row.Response,
		Description: row.Description,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
