// Package music manages tenant playlists and the shared track library.
// Tenant tracks are ordered list entities that may weakly reference a
// library track; the back reference lives on a GSI so library deletion
// can find every referencing playlist without scanning tenants.
package music

import "github.com/vowsuite/vowsuite/internal/keys"

// GlobalTrack is a library record shared across all tenants. Managed by
// elevated operators only.
type GlobalTrack struct {
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	ID              string `dynamodbav:"id" json:"id"`
	Title           string `dynamodbav:"title" json:"title"`
	Artist          string `dynamodbav:"artist" json:"artist"`
	MediaURL        string `dynamodbav:"mediaUrl" json:"mediaUrl"`
	DurationSeconds int    `dynamodbav:"durationSeconds" json:"durationSeconds"`
	CreatedAt       string `dynamodbav:"createdAt" json:"createdAt"`
}

// Track is one entry in a tenant's playlist. Title, artist and media
// are denormalized copies: the globalMusicId reference is weak and the
// track keeps playing if the library record changes underneath it.
type Track struct {
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk" json:"-"`
	GSI2PK string `dynamodbav:"gsi2pk,omitempty" json:"-"`
	GSI2SK string `dynamodbav:"gsi2sk,omitempty" json:"-"`

	ID            string  `dynamodbav:"id" json:"id"`
	TenantID      string  `dynamodbav:"tenantId" json:"tenantId"`
	Title         string  `dynamodbav:"title" json:"title"`
	Artist        string  `dynamodbav:"artist" json:"artist"`
	MediaURL      *string `dynamodbav:"mediaUrl,omitempty" json:"mediaUrl,omitempty"`
	GlobalMusicID *string `dynamodbav:"globalMusicId,omitempty" json:"globalMusicId,omitempty"`
	Order         int     `dynamodbav:"order" json:"order"`
	CreatedAt     string  `dynamodbav:"createdAt" json:"createdAt"`
}

func trackKeys(tenantID, id string, order int) (pk, sk, gsi1pk, gsi1sk string) {
	key := keys.Entity(tenantID, keys.KindTrack, id)
	return key.Partition, key.Sort, keys.EntityListPK(tenantID, keys.KindTrack), keys.OrderSK(order, id)
}
