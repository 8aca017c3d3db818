// Package rsvp handles guest attendance: public submission gated by the
// tenant's RSVP settings, and the admin-side listing and management.
// Listings come from two index partitions, one per status and one for
// the whole tenant, both ordered by submission time.
package rsvp

import (
	"github.com/vowsuite/vowsuite/internal/keys"
)

// Status is a guest's answer.
type Status string

const (
	StatusAttending    Status = "attending"
	StatusMaybe        Status = "maybe"
	StatusNotAttending Status = "not_attending"
)

func (s Status) Known() bool {
	switch s {
	case StatusAttending, StatusMaybe, StatusNotAttending:
		return true
	}
	return false
}

// RSVP is one submitted attendance answer.
type RSVP struct {
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk" json:"-"`
	GSI2PK string `dynamodbav:"gsi2pk" json:"-"`
	GSI2SK string `dynamodbav:"gsi2sk" json:"-"`

	ID        string  `dynamodbav:"id" json:"id"`
	TenantID  string  `dynamodbav:"tenantId" json:"tenantId"`
	GuestName string  `dynamodbav:"guestName" json:"guestName"`
	Email     *string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone     *string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Status    Status  `dynamodbav:"status" json:"status"`
	PartySize int     `dynamodbav:"partySize" json:"partySize"`
	Message   *string `dynamodbav:"message,omitempty" json:"message,omitempty"`
	CreatedAt string  `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt string  `dynamodbav:"updatedAt" json:"updatedAt"`
}

func indexKeys(tenantID, id string, status Status, createdAt string) (gsi1pk, gsi1sk, gsi2pk, gsi2sk string) {
	created := keys.CreatedSK(createdAt, id)
	return keys.RSVPStatusPK(tenantID, string(status)), created, keys.RSVPAllPK(tenantID), created
}
