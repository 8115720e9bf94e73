package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Subdomains that can never identify a tenant
var reservedSubdomains = map[string]bool{
	"www":   true,
	"api":   true,
	"admin": true,
	"app":   true,
}

// Resolver extracts a candidate tenant slug from an incoming request.
// Sources are consulted in a fixed order and the first hit wins:
// explicit header, host subdomain, query parameter, then a JWT claim.
type Resolver struct {
	baseDomain string
	jwtSecret  string
}

// NewResolver creates a resolver for the given platform base domain.
// jwtSecret may be empty, which disables the bearer-claim source.
func NewResolver(baseDomain, jwtSecret string) *Resolver {
	return &Resolver{baseDomain: strings.ToLower(baseDomain), jwtSecret: jwtSecret}
}

// Middleware stores the resolved slug (possibly empty) on the request
func (r *Resolver) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextKeySlug, r.Resolve(c.Request))
		c.Next()
	}
}

// Resolve returns the candidate slug for a request, or "" when no source
// yields one. It never validates existence; that is the gate's job.
func (r *Resolver) Resolve(req *http.Request) string {
	if slug := strings.TrimSpace(req.Header.Get("X-Tenant-Slug")); slug != "" {
		return normalizeSlug(slug)
	}
	if slug := r.fromHost(req.Host); slug != "" {
		return slug
	}
	if slug := strings.TrimSpace(req.URL.Query().Get("tenant")); slug != "" {
		return normalizeSlug(slug)
	}
	if r.jwtSecret != "" {
		if slug := r.fromBearerToken(req.Header.Get("Authorization")); slug != "" {
			return normalizeSlug(slug)
		}
	}
	return ""
}

// fromHost extracts the subdomain when the request host sits under the
// platform base domain. Reserved subdomains resolve to nothing so shared
// surfaces fall through to the other sources.
func (r *Resolver) fromHost(host string) string {
	if host == "" || r.baseDomain == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(host)

	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || strings.Contains(sub, ".") {
		return ""
	}
	if reservedSubdomains[sub] {
		return ""
	}
	return normalizeSlug(sub)
}

// fromBearerToken reads the tenant_slug claim from a signed bearer token.
// Invalid or unsigned tokens yield nothing rather than an error; the
// resolver only produces candidates.
func (r *Resolver) fromBearerToken(authorization string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return ""
	}
	tokenStr := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
	if tokenStr == "" {
		return ""
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(r.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return ""
	}
	slug, _ := claims["tenant_slug"].(string)
	return slug
}

// normalizeSlug lowercases and maps separator characters so the candidate
// matches the registry's slug alphabet
func normalizeSlug(raw string) string {
	slug := strings.ToLower(strings.TrimSpace(raw))
	slug = strings.ReplaceAll(slug, "_", "-")
	slug = strings.ReplaceAll(slug, ".", "-")
	return slug
}
