// Package auth is the authorization gate: it turns a bearer token into
// an Identity and answers whether that identity may act on a tenant.
// Token issuance and refresh live in a separate service; this package
// only verifies.
package auth

import (
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v4"

	"github.com/vowsuite/vowsuite/internal/apperr"
)

// UserType values carried in tokens.
const (
	TypeSuper       = "super"
	TypeTenantAdmin = "tenant-admin"
	TypeLegacy      = "legacy"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Type     string
	IsMaster bool
	// TenantIDs lists the tenants a tenant-admin may administer.
	TenantIDs []string
}

// IsElevated reports whether the caller bypasses per-tenant status gates.
func (i Identity) IsElevated() bool {
	return i.Type == TypeSuper || i.IsMaster
}

// CanAdminister reports whether the caller may act on the given tenant at
// all. Status gating (archived etc.) is layered on top by the tenant
// resolver.
func (i Identity) CanAdminister(tenantID string) bool {
	if i.IsElevated() {
		return true
	}
	return slices.Contains(i.TenantIDs, tenantID)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Type      string   `json:"type"`
	Master    bool     `json:"master,omitempty"`
	TenantIDs []string `json:"tenants,omitempty"`
}

// Verifier validates HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a compact JWT and returns the caller identity.
func (v *Verifier) Verify(token string) (Identity, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("token invalid")
		}
		return Identity{}, apperr.Wrap(apperr.Unauthorized, "INVALID_TOKEN", "invalid or expired token", err)
	}
	switch claims.Type {
	case TypeSuper, TypeTenantAdmin, TypeLegacy:
	default:
		return Identity{}, apperr.New(apperr.Unauthorized, "INVALID_TOKEN", "unknown user type")
	}
	return Identity{
		UserID:    claims.Subject,
		Type:      claims.Type,
		IsMaster:  claims.Master,
		TenantIDs: claims.TenantIDs,
	}, nil
}

// RequireTenantAdmin gates admin routes before any entity lookup happens.
func RequireTenantAdmin(id Identity, tenantID string) error {
	if !id.CanAdminister(tenantID) {
		return apperr.New(apperr.Forbidden, "FORBIDDEN", "no access to this wedding")
	}
	return nil
}
