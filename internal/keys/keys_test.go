package keys

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTenantPrefixContainment(t *testing.T) {
	tenantID := "w-123"
	prefix := TenantPrefix(tenantID)

	keys := []string{
		Tenant(tenantID).Partition,
		Settings(tenantID, "RSVP").Partition,
		Entity(tenantID, KindGift, "g1").Partition,
		Reservation(tenantID, "g1", "r1").Partition,
		RSVP(tenantID, "r1").Partition,
		EntityListPK(tenantID, KindTrack),
		RSVPStatusPK(tenantID, "attending"),
		RSVPAllPK(tenantID),
	}
	for _, k := range keys {
		require.Truef(t, len(k) >= len(prefix) && k[:len(prefix)] == prefix,
			"key %q must start with tenant prefix %q", k, prefix)
	}
}

func TestOrderSKLexicographicOrder(t *testing.T) {
	// Numeric order must survive string sorting across digit-count boundaries.
	orders := []int{0, 1, 2, 9, 10, 11, 99, 100, 101, 999, 1000, 9999, 10000, 99999}
	sks := make([]string, len(orders))
	for i, o := range orders {
		sks[i] = OrderSK(o, "id")
	}
	require.True(t, sort.StringsAreSorted(sks), "zero-padded order keys must sort numerically: %v", sks)
}

func TestOrderSKTieBreaksOnID(t *testing.T) {
	a := OrderSK(3, "aaa")
	b := OrderSK(3, "bbb")
	require.NotEqual(t, a, b)
	require.Less(t, a, b)
}

func TestStorageKeyOwnership(t *testing.T) {
	key := StorageKey("w-1", "gallery", "photo.jpg")
	require.Equal(t, "tenants/w-1/gallery/photo.jpg", key)

	require.NoError(t, ValidateStorageKeyOwner(key, "w-1"))
	require.Error(t, ValidateStorageKeyOwner(key, "w-2"), "cross-tenant key must fail ownership")
}

func TestStorageKeyRejectsTraversalAndForeignPaths(t *testing.T) {
	for _, bad := range []string{
		"tenants/w-1/../w-2/gallery/photo.jpg",
		"other/w-1/file.jpg",
		"tenants/",
		"tenants//file.jpg",
		"w-1/gallery/photo.jpg",
	} {
		require.Errorf(t, ValidateStorageKeyOwner(bad, "w-1"), "key %q must not validate", bad)
	}
}

func TestSlugAndTenantKeysDisjoint(t *testing.T) {
	// A slug that looks like a tenant id must not collide with tenant records.
	require.NotEqual(t, Tenant("x").Partition, SlugLookup("x").Partition)
}

func TestReservationSharesGiftPartition(t *testing.T) {
	gift := Entity("w-1", KindGift, "g9")
	res := Reservation("w-1", "g9", "r1")
	require.Equal(t, gift.Partition, res.Partition)
	require.Equal(t, fmt.Sprintf("%sr1", ReservationSKPrefix), res.Sort)
}
