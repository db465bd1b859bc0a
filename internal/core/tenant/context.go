// Package tenant provides the per-request tenant context.
package tenant

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// =============================================================================
// Context Key
// =============================================================================

type contextKey string

const tenantContextKey contextKey = "tenant"

// =============================================================================
// Types
// =============================================================================

// Source records where the tenant id came from.
type Source string

const (
	SourceNone   Source = ""
	SourceHeader Source = "header"
	SourceToken  Source = "token"
)

// Context is the tenant scope of a request.
type Context struct {
	// TenantID is empty when the request carries no tenant.
	TenantID string

	// UserID is the token subject, if a bearer token was presented.
	UserID string

	Source Source
}

// Present reports whether the request is tenant scoped.
func (c Context) Present() bool {
	return c.TenantID != ""
}

// DefaultHeader is the header carrying the tenant id.
const DefaultHeader = "X-Tenant-ID"

// =============================================================================
// Context Extraction
// =============================================================================

// HeaderGetter is an interface for getting header values.
type HeaderGetter interface {
	Get(key string) string
}

// ExtractFromRequest extracts the tenant context from request headers.
func ExtractFromRequest(r *http.Request, header string) Context {
	return ExtractFromHeaders(r.Header, header)
}

// ExtractFromHeaders reads the tenant from the "tenant_id" (or "tenant")
// claim of a Bearer token, falling back to header only when the request has
// no token tenant. A token tenant always wins over a differing header. The
// token signature is not verified; the gateway in front of the service has
// done that.
func ExtractFromHeaders(headers HeaderGetter, header string) Context {
	if header == "" {
		header = DefaultHeader
	}

	var ctx Context
	if claims := parseBearer(headers.Get("Authorization")); claims != nil {
		ctx.UserID = claims.Subject
		ctx.TenantID = claims.TenantID
		if ctx.TenantID == "" {
			ctx.TenantID = claims.Tenant
		}
		if ctx.TenantID != "" {
			ctx.Source = SourceToken
			return ctx
		}
	}

	if id := strings.TrimSpace(headers.Get(header)); id != "" {
		ctx.TenantID = id
		ctx.Source = SourceHeader
	}
	return ctx
}

type tokenClaims struct {
	TenantID string `json:"tenant_id"`
	Tenant   string `json:"tenant"`
	jwt.RegisteredClaims
}

func parseBearer(authHeader string) *tokenClaims {
	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return nil
	}
	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(raw), &claims); err != nil {
		return nil
	}
	return &claims
}

// =============================================================================
// Context Storage
// =============================================================================

// WithContext stores the tenant context in ctx.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, tenantContextKey, tc)
}

// FromContext retrieves the tenant context, or an empty one.
func FromContext(ctx context.Context) Context {
	if tc, ok := ctx.Value(tenantContextKey).(Context); ok {
		return tc
	}
	return Context{}
}

// ID is shorthand for FromContext(ctx).TenantID.
func ID(ctx context.Context) string {
	return FromContext(ctx).TenantID
}

// MapHeaderGetter wraps a map to implement HeaderGetter in tests.
type MapHeaderGetter map[string]string

func (m MapHeaderGetter) Get(key string) string {
	return m[key]
}
