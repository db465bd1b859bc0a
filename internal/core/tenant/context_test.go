package tenant

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bearer(t *testing.T, claims map[string]string) string {
	t.Helper()
	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return "Bearer " + token
}

// =============================================================================
// Extraction Tests
// =============================================================================

func TestExtractFromHeaders_Header(t *testing.T) {
	ctx := ExtractFromHeaders(MapHeaderGetter{"X-Tenant-ID": " t1 "}, "")
	assert.Equal(t, "t1", ctx.TenantID)
	assert.Equal(t, SourceHeader, ctx.Source)
	assert.True(t, ctx.Present())
}

func TestExtractFromHeaders_CustomHeader(t *testing.T) {
	ctx := ExtractFromHeaders(MapHeaderGetter{"X-Org": "acme"}, "X-Org")
	assert.Equal(t, "acme", ctx.TenantID)
}

func TestExtractFromHeaders_Missing(t *testing.T) {
	ctx := ExtractFromHeaders(MapHeaderGetter{}, "")
	assert.False(t, ctx.Present())
	assert.Equal(t, SourceNone, ctx.Source)
}

func TestExtractFromHeaders_TokenClaim(t *testing.T) {
	headers := MapHeaderGetter{"Authorization": bearer(t, map[string]string{"sub": "u1", "tenant_id": "t9"})}
	ctx := ExtractFromHeaders(headers, "")
	assert.Equal(t, "t9", ctx.TenantID)
	assert.Equal(t, "u1", ctx.UserID)
	assert.Equal(t, SourceToken, ctx.Source)
}

func TestExtractFromHeaders_TokenTenantAlias(t *testing.T) {
	headers := MapHeaderGetter{"Authorization": bearer(t, map[string]string{"tenant": "t3"})}
	assert.Equal(t, "t3", ExtractFromHeaders(headers, "").TenantID)
}

func TestExtractFromHeaders_TokenWinsOverHeader(t *testing.T) {
	headers := MapHeaderGetter{
		"X-Tenant-ID":   "from-header",
		"Authorization": bearer(t, map[string]string{"sub": "u1", "tenant_id": "from-token"}),
	}
	ctx := ExtractFromHeaders(headers, "")
	assert.Equal(t, "from-token", ctx.TenantID)
	assert.Equal(t, SourceToken, ctx.Source)
	assert.Equal(t, "u1", ctx.UserID)
}

func TestExtractFromHeaders_HeaderWhenTokenHasNoTenant(t *testing.T) {
	headers := MapHeaderGetter{
		"X-Tenant-ID":   "from-header",
		"Authorization": bearer(t, map[string]string{"sub": "u1"}),
	}
	ctx := ExtractFromHeaders(headers, "")
	assert.Equal(t, "from-header", ctx.TenantID)
	assert.Equal(t, SourceHeader, ctx.Source)
	assert.Equal(t, "u1", ctx.UserID)
}

func TestExtractFromHeaders_TokenWithoutTenant(t *testing.T) {
	headers := MapHeaderGetter{"Authorization": bearer(t, map[string]string{"sub": "u1"})}
	ctx := ExtractFromHeaders(headers, "")
	assert.False(t, ctx.Present())
	assert.Equal(t, SourceNone, ctx.Source)
	assert.Equal(t, "u1", ctx.UserID)
}

func TestExtractFromHeaders_MalformedToken(t *testing.T) {
	for _, h := range []string{"Bearer abc", "Basic Zm9vOmJhcg==", "Bearer a.!!!.c"} {
		ctx := ExtractFromHeaders(MapHeaderGetter{"Authorization": h}, "")
		assert.False(t, ctx.Present(), h)
	}
}

func TestExtractFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Tenant-ID", "t1")
	assert.Equal(t, "t1", ExtractFromRequest(r, DefaultHeader).TenantID)
}

// =============================================================================
// Storage Tests
// =============================================================================

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), Context{TenantID: "t1", Source: SourceHeader})
	assert.Equal(t, "t1", ID(ctx))
	assert.Equal(t, SourceHeader, FromContext(ctx).Source)
}

func TestFromContext_Empty(t *testing.T) {
	assert.Equal(t, Context{}, FromContext(context.Background()))
}
