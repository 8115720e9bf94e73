package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestResolver_SourcePrecedence(t *testing.T) {
	r := NewResolver("hotelhub.app", testJWTSecret)
	bearer := "Bearer " + signedToken(t, jwt.MapClaims{"tenant_slug": "from-jwt"})

	tests := []struct {
		name   string
		header string
		host   string
		query  string
		auth   string
		want   string
	}{
		{name: "header wins over everything",
			header: "from-header", host: "from-host.hotelhub.app", query: "from-query", auth: bearer,
			want: "from-header"},
		{name: "subdomain wins over query and jwt",
			host: "from-host.hotelhub.app", query: "from-query", auth: bearer,
			want: "from-host"},
		{name: "query wins over jwt",
			host: "api.hotelhub.app", query: "from-query", auth: bearer,
			want: "from-query"},
		{name: "jwt claim is the last resort",
			host: "www.hotelhub.app", auth: bearer,
			want: "from-jwt"},
		{name: "nothing resolves to empty",
			host: "hotelhub.app",
			want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/properties", nil)
			if tt.header != "" {
				req.Header.Set("X-Tenant-Slug", tt.header)
			}
			if tt.host != "" {
				req.Host = tt.host
			}
			if tt.query != "" {
				q := req.URL.Query()
				q.Set("tenant", tt.query)
				req.URL.RawQuery = q.Encode()
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			assert.Equal(t, tt.want, r.Resolve(req))
		})
	}
}

func TestResolver_SubdomainExtraction(t *testing.T) {
	r := NewResolver("hotelhub.app", "")

	tests := []struct {
		host string
		want string
	}{
		{"aegean-resorts.hotelhub.app", "aegean-resorts"},
		{"aegean-resorts.hotelhub.app:8090", "aegean-resorts"},
		{"Aegean-Resorts.HotelHub.app", "aegean-resorts"},
		{"aegean_resorts.hotelhub.app", "aegean-resorts"},
		{"hotelhub.app", ""},
		{"www.hotelhub.app", ""},
		{"api.hotelhub.app", ""},
		{"admin.hotelhub.app", ""},
		{"app.hotelhub.app", ""},
		{"deep.nested.hotelhub.app", ""},
		{"otherdomain.com", ""},
		{"evil-hotelhub.app", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.Host = tt.host
			assert.Equal(t, tt.want, r.Resolve(req))
		})
	}
}

func TestResolver_BearerToken(t *testing.T) {
	r := NewResolver("hotelhub.app", testJWTSecret)

	t.Run("valid token yields claim", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"tenant_slug": "seaside"}))
		assert.Equal(t, "seaside", r.Resolve(req))
	})

	t.Run("wrong signature yields nothing", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"tenant_slug": "seaside"})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		assert.Equal(t, "", r.Resolve(req))
	})

	t.Run("missing claim yields nothing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "user-1"}))
		assert.Equal(t, "", r.Resolve(req))
	})

	t.Run("disabled without secret", func(t *testing.T) {
		noJWT := NewResolver("hotelhub.app", "")
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"tenant_slug": "seaside"}))
		assert.Equal(t, "", noJWT.Resolve(req))
	})
}

func TestNormalizeSlug(t *testing.T) {
	assert.Equal(t, "aegean-resorts", normalizeSlug("  Aegean_Resorts "))
	assert.Equal(t, "a-b-c", normalizeSlug("a.b_c"))
}
