// Package middleware provides HTTP middleware for the guardrails API.
package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/artpar/guardrails/internal/core/tenant"
)

// =============================================================================
// Tenant Configuration
// =============================================================================

// TenantConfig holds configuration for the tenant middleware.
type TenantConfig struct {
	// Header carries the tenant id. Defaults to X-Tenant-ID.
	Header string

	// Logger for tenant middleware logging.
	Logger *slog.Logger
}

// =============================================================================
// Tenant Middleware
// =============================================================================

// TenantMiddleware resolves the caller's tenant and stores it in the request
// context.
type TenantMiddleware struct {
	config TenantConfig
}

// NewTenantMiddleware creates a new tenant middleware with the given config.
func NewTenantMiddleware(cfg TenantConfig) *TenantMiddleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Header == "" {
		cfg.Header = tenant.DefaultHeader
	}
	return &TenantMiddleware{config: cfg}
}

// Handler returns the middleware handler function. The tenant comes from the
// configured header, falling back to the tenant claim of a Bearer token.
// Requests without a tenant pass through unscoped.
func (m *TenantMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tenant.ExtractFromRequest(r, m.config.Header)
		if ctx.Present() {
			m.config.Logger.Debug("tenant resolved",
				"tenant_id", ctx.TenantID,
				"source", string(ctx.Source),
				"path", r.URL.Path,
			)
		}
		r = r.WithContext(tenant.WithContext(r.Context(), ctx))
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Require Tenant Middleware
// =============================================================================

// RequireTenant rejects requests that carry no tenant with 401.
// Must be used AFTER TenantMiddleware.
func RequireTenant(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tenant.FromContext(r.Context()).Present() {
				logger.Warn("request without tenant to protected endpoint",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
				)
				writeJSONError(w, http.StatusUnauthorized, "tenant required", "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// JSON Error Response
// =============================================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: message, Code: code})
}
