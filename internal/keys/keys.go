// Package keys is the single place where the platform's composite
// DynamoDB keys and object-storage paths are built and parsed. Every key
// for data belonging to a wedding starts with that wedding's
// TENANT#{id} prefix, which is what tenant isolation and prefix-bounded
// deletion hang off.
package keys

import (
	"fmt"
	"strings"

	"github.com/vowsuite/vowsuite/internal/dynamo"
)

// Table is the single-table layout shared by the whole service.
var Table = dynamo.TableDefinition{
	Name:         "vowsuite",
	PartitionKey: "pk",
	SortKey:      "sk",
	GSIs: []dynamo.GSIDefinition{
		{Name: GSI1, PartitionKey: "gsi1pk", SortKey: "gsi1sk"},
		{Name: GSI2, PartitionKey: "gsi2pk", SortKey: "gsi2sk"},
	},
}

const (
	// GSI1 lists ordered entities (gifts, tracks, images) and RSVPs by status.
	GSI1 = "gsi1"
	// GSI2 lists all RSVPs per tenant and global-track back references.
	GSI2 = "gsi2"
)

const metaSK = "META"

// Kind is an ordered list-entity kind. The plural form names the GSI1
// partition that lists the collection.
type Kind string

const (
	KindGift         Kind = "GIFT"
	KindTrack        Kind = "TRACK"
	KindImage        Kind = "IMAGE"
	KindParkingImage Kind = "PARKING_IMAGE"
)

// OrderPadWidth supports lists up to 99,999 items: zero-padding keeps
// lexicographic order equal to numeric order on the index sort key.
const OrderPadWidth = 5

func TenantPrefix(tenantID string) string {
	return "TENANT#" + tenantID
}

// Tenant returns the key of a tenant's META record.
func Tenant(tenantID string) dynamo.Key {
	return dynamo.Key{Partition: TenantPrefix(tenantID), Sort: metaSK}
}

// SlugLookup maps a public slug to a tenant id.
func SlugLookup(slug string) dynamo.Key {
	return dynamo.Key{Partition: "SLUG#" + slug, Sort: "LOOKUP"}
}

// Settings returns the key of one (tenant, feature) settings document.
func Settings(tenantID, feature string) dynamo.Key {
	return dynamo.Key{Partition: TenantPrefix(tenantID) + "#SETTINGS", Sort: feature}
}

// SettingsPartition is the partition holding all of a tenant's settings docs.
func SettingsPartition(tenantID string) string {
	return TenantPrefix(tenantID) + "#SETTINGS"
}

// Entity returns the key of a tenant-owned list entity.
func Entity(tenantID string, kind Kind, id string) dynamo.Key {
	return dynamo.Key{
		Partition: fmt.Sprintf("%s#%s#%s", TenantPrefix(tenantID), kind, id),
		Sort:      metaSK,
	}
}

// EntityListPK is the GSI1 partition listing all entities of a kind for a
// tenant in display order.
func EntityListPK(tenantID string, kind Kind) string {
	return fmt.Sprintf("%s#%sS", TenantPrefix(tenantID), kind)
}

// OrderSK encodes a display order and id as a GSI1 sort key. The
// zero-padded order sorts lexicographically in numeric order; the id
// suffix breaks ties between transiently equal orders.
func OrderSK(order int, id string) string {
	return fmt.Sprintf("%0*d#%s", OrderPadWidth, order, id)
}

// Reservation is a child record of a gift.
func Reservation(tenantID, giftID, reservationID string) dynamo.Key {
	return dynamo.Key{
		Partition: Entity(tenantID, KindGift, giftID).Partition,
		Sort:      "RESERVATION#" + reservationID,
	}
}

// ReservationSKPrefix bounds a query to a gift's reservations.
const ReservationSKPrefix = "RESERVATION#"

// RSVP returns the key of one RSVP record.
func RSVP(tenantID, id string) dynamo.Key {
	return dynamo.Key{
		Partition: fmt.Sprintf("%s#RSVP#%s", TenantPrefix(tenantID), id),
		Sort:      metaSK,
	}
}

// RSVPStatusPK is the GSI1 partition listing a tenant's RSVPs of one status.
func RSVPStatusPK(tenantID, status string) string {
	return fmt.Sprintf("%s#RSVP_STATUS#%s", TenantPrefix(tenantID), status)
}

// RSVPAllPK is the GSI2 partition listing all of a tenant's RSVPs.
func RSVPAllPK(tenantID string) string {
	return TenantPrefix(tenantID) + "#RSVPS"
}

// CreatedSK orders RSVP index entries by submission time, id-suffixed.
func CreatedSK(createdAt, id string) string {
	return createdAt + "#" + id
}

// MusicLibraryPK is the single partition holding all global tracks.
const MusicLibraryPK = "MUSIC_LIBRARY"

// GlobalTrack is a cross-tenant music-library record.
func GlobalTrack(id string) dynamo.Key {
	return dynamo.Key{Partition: MusicLibraryPK, Sort: "TRACK#" + id}
}

// GlobalTrackRefPK is the GSI2 partition collecting every tenant track
// that references one library track.
func GlobalTrackRefPK(globalID string) string {
	return "GLOBAL_MUSIC#" + globalID
}

// GlobalTrackRefSK identifies one referencing tenant track in GSI2.
func GlobalTrackRefSK(tenantID, trackID string) string {
	return fmt.Sprintf("%s#TRACK#%s", TenantPrefix(tenantID), trackID)
}

// StorageKey builds the object-storage path for a tenant-owned file.
// Category is the feature folder (gifts, gallery, parking, hero, music).
func StorageKey(tenantID, category, filename string) string {
	return fmt.Sprintf("tenants/%s/%s/%s", tenantID, category, filename)
}

// StoragePrefix bounds object-storage deletion to one tenant.
func StoragePrefix(tenantID string) string {
	return "tenants/" + tenantID + "/"
}

// TenantFromStorageKey extracts the owning tenant id from an
// object-storage key. Keys that escape the tenants/ namespace or contain
// path traversal do not resolve.
func TenantFromStorageKey(key string) (string, bool) {
	if strings.Contains(key, "..") {
		return "", false
	}
	rest, ok := strings.CutPrefix(key, "tenants/")
	if !ok {
		return "", false
	}
	tenantID, _, ok := strings.Cut(rest, "/")
	if !ok || tenantID == "" {
		return "", false
	}
	return tenantID, true
}

// ValidateStorageKeyOwner rejects any object-storage key that does not
// belong to the expected tenant. Called before issuing presigned URLs
// and before honoring deletes.
func ValidateStorageKeyOwner(key, tenantID string) error {
	owner, ok := TenantFromStorageKey(key)
	if !ok {
		return fmt.Errorf("storage key %q is not tenant-scoped", key)
	}
	if owner != tenantID {
		return fmt.Errorf("storage key %q does not belong to tenant %s", key, tenantID)
	}
	return nil
}
