// Package registry is the gift registry: tenant-curated gift lists and
// the limited-quantity reservation flow guests go through. Reservations
// are the one place where a write condition is load-bearing for
// correctness; see Reserve.
package registry

import (
	"github.com/vowsuite/vowsuite/internal/keys"
)

// Gift is an ordered list entity. quantityReserved only ever moves
// through conditional ADDs, so it never exceeds quantityTotal.
type Gift struct {
	PK     string `dynamodbav:"pk" json:"-"`
	SK     string `dynamodbav:"sk" json:"-"`
	GSI1PK string `dynamodbav:"gsi1pk" json:"-"`
	GSI1SK string `dynamodbav:"gsi1sk" json:"-"`

	ID               string  `dynamodbav:"id" json:"id"`
	TenantID         string  `dynamodbav:"tenantId" json:"tenantId"`
	Name             string  `dynamodbav:"name" json:"name"`
	Description      *string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	LinkURL          *string `dynamodbav:"linkUrl,omitempty" json:"linkUrl,omitempty"`
	ImageKey         *string `dynamodbav:"imageKey,omitempty" json:"imageKey,omitempty"`
	PriceCents       int     `dynamodbav:"priceCents" json:"priceCents"`
	QuantityTotal    int     `dynamodbav:"quantityTotal" json:"quantityTotal"`
	QuantityReserved int     `dynamodbav:"quantityReserved" json:"quantityReserved"`
	Order            int     `dynamodbav:"order" json:"order"`
	CreatedAt        string  `dynamodbav:"createdAt" json:"createdAt"`
}

// Available is what a guest can still reserve.
func (g *Gift) Available() int {
	return g.QuantityTotal - g.QuantityReserved
}

// Reservation is a child record living in its gift's partition, so one
// range query lists a gift's reservations and the gift's deletion can
// clear the whole partition.
type Reservation struct {
	PK string `dynamodbav:"pk" json:"-"`
	SK string `dynamodbav:"sk" json:"-"`

	ID         string  `dynamodbav:"id" json:"id"`
	GiftID     string  `dynamodbav:"giftId" json:"giftId"`
	TenantID   string  `dynamodbav:"tenantId" json:"tenantId"`
	GuestName  string  `dynamodbav:"guestName" json:"guestName"`
	GuestEmail *string `dynamodbav:"guestEmail,omitempty" json:"guestEmail,omitempty"`
	Message    *string `dynamodbav:"message,omitempty" json:"message,omitempty"`
	Quantity   int     `dynamodbav:"quantity" json:"quantity"`
	CreatedAt  string  `dynamodbav:"createdAt" json:"createdAt"`
}

func newGiftKeys(tenantID, id string, order int) (pk, sk, gsi1pk, gsi1sk string) {
	key := keys.Entity(tenantID, keys.KindGift, id)
	return key.Partition, key.Sort, keys.EntityListPK(tenantID, keys.KindGift), keys.OrderSK(order, id)
}
