// Package tenant owns the wedding (tenant) record, its public slug
// lookup, and the status gates every request passes before touching
// tenant data.
package tenant

import (
	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/keys"
)

// Status is the tenant lifecycle state. The set is closed: anything
// unrecognized is treated as inaccessible, never as a permissive default.
type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

func (s Status) Known() bool {
	switch s {
	case StatusActive, StatusDraft, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// Tenant is one wedding's record.
type Tenant struct {
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	TenantID    string   `dynamodbav:"tenantId" json:"tenantId"`
	Slug        string   `dynamodbav:"slug" json:"slug"`
	DisplayName string   `dynamodbav:"displayName" json:"displayName"`
	Status      Status   `dynamodbav:"status" json:"status"`
	OwnerID     string   `dynamodbav:"ownerId" json:"ownerId"`
	CoOwnerIDs  []string `dynamodbav:"coOwnerIds,omitempty" json:"coOwnerIds,omitempty"`
	EventDate   string   `dynamodbav:"eventDate,omitempty" json:"eventDate,omitempty"`
	Plan        string   `dynamodbav:"plan,omitempty" json:"plan,omitempty"`
	CreatedAt   string   `dynamodbav:"createdAt" json:"createdAt"`
	CreatedBy   string   `dynamodbav:"createdBy" json:"createdBy"`
}

// slugLookup keeps slug → tenantId resolvable in one point read. Created
// and deleted together with the tenant record.
type slugLookup struct {
	PK       string `dynamodbav:"pk"`
	SK       string `dynamodbav:"sk"`
	Slug     string `dynamodbav:"slug"`
	TenantID string `dynamodbav:"tenantId"`
}

func newSlugLookup(slug, tenantID string) slugLookup {
	key := keys.SlugLookup(slug)
	return slugLookup{PK: key.Partition, SK: key.Sort, Slug: slug, TenantID: tenantID}
}

// errNotFound deliberately does not distinguish a missing slug lookup
// from a missing tenant record, so slugs cannot be enumerated.
func errNotFound() error {
	return apperr.New(apperr.NotFound, "WEDDING_NOT_FOUND", "wedding not found")
}

// RequireActiveForPublic gates unauthenticated callers: only active
// tenants are visible.
func RequireActiveForPublic(t *Tenant) error {
	if t == nil {
		return errNotFound()
	}
	switch t.Status {
	case StatusActive:
		return nil
	case StatusArchived:
		return apperr.New(apperr.Gone, "WEDDING_ARCHIVED", "this wedding is no longer available")
	case StatusDraft, StatusInactive:
		return apperr.New(apperr.Forbidden, "WEDDING_NOT_PUBLIC", "this wedding is not published")
	default:
		return apperr.New(apperr.Forbidden, "WEDDING_NOT_PUBLIC", "this wedding is not published")
	}
}

// RequireAccessibleForAdmin gates authenticated tenant admins. Elevated
// operators bypass all status gates; ordinary admins cannot touch
// archived tenants.
func RequireAccessibleForAdmin(t *Tenant, elevated bool) error {
	if t == nil {
		return errNotFound()
	}
	if elevated {
		return nil
	}
	if t.Status == StatusArchived || !t.Status.Known() {
		return apperr.New(apperr.Forbidden, "WEDDING_ARCHIVED", "this wedding has been archived")
	}
	return nil
}
