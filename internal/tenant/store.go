package tenant

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
)

// ObjectRemover deletes all object-storage files under a prefix.
// Implemented by the objstore client; failures never block record deletion.
type ObjectRemover interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type Store struct {
	db  *dynamo.Client
	log *zap.Logger
}

func NewStore(db *dynamo.Client, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

type CreateInput struct {
	Slug        string
	DisplayName string
	OwnerID     string
	EventDate   string
	Plan        string
}

// Create writes the tenant record and its slug lookup in one transaction.
// The lookup put is conditioned on the slug being unclaimed, so two
// concurrent creates cannot share a slug.
func (s *Store) Create(ctx context.Context, in CreateInput, actorID string) (*Tenant, error) {
	if !slugPattern.MatchString(in.Slug) {
		return nil, apperr.Validationf("INVALID_SLUG", "slug must be lowercase letters, digits and hyphens")
	}
	if in.DisplayName == "" {
		return nil, apperr.Validationf("INVALID_DISPLAY_NAME", "display name is required")
	}

	id := uuid.NewString()
	key := keys.Tenant(id)
	t := &Tenant{
		PK:          key.Partition,
		SK:          key.Sort,
		TenantID:    id,
		Slug:        in.Slug,
		DisplayName: in.DisplayName,
		Status:      StatusDraft,
		OwnerID:     in.OwnerID,
		EventDate:   in.EventDate,
		Plan:        in.Plan,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		CreatedBy:   actorID,
	}
	lookup := newSlugLookup(in.Slug, t.TenantID)

	err := s.db.NewTx().Add(
		dynamo.NewPut(t).IfNotExists(s.db.Table()),
		dynamo.NewPut(&lookup).IfNotExists(s.db.Table()),
	).Commit(ctx)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return nil, apperr.Wrap(apperr.Conflict, "SLUG_TAKEN", "this address is already in use", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to create wedding", err)
	}
	return t, nil
}

// ResolveBySlug resolves a public slug to its tenant. Both reads are
// strongly consistent so a just-archived tenant is never served as
// active. A missing lookup and a missing tenant record are
// indistinguishable to the caller.
func (s *Store) ResolveBySlug(ctx context.Context, slug string) (*Tenant, error) {
	item, err := s.db.GetItem(ctx, keys.SlugLookup(slug))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to resolve wedding", err)
	}
	if item == nil {
		return nil, errNotFound()
	}
	var lookup slugLookup
	if err := attributevalue.UnmarshalMap(item, &lookup); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to resolve wedding", err)
	}
	return s.ResolveByID(ctx, lookup.TenantID)
}

// ResolveByID fetches a tenant record with a strongly consistent read.
func (s *Store) ResolveByID(ctx context.Context, tenantID string) (*Tenant, error) {
	item, err := s.db.GetItem(ctx, keys.Tenant(tenantID))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to resolve wedding", err)
	}
	if item == nil {
		return nil, errNotFound()
	}
	var t Tenant
	if err := attributevalue.UnmarshalMap(item, &t); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to resolve wedding", err)
	}
	return &t, nil
}

type ProfilePatch struct {
	DisplayName *string
	EventDate   *string
	Plan        *string
	CoOwnerIDs  *[]string
}

// UpdateProfile mutates profile fields in place, conditioned on the
// tenant still existing.
func (s *Store) UpdateProfile(ctx context.Context, tenantID string, patch ProfilePatch) error {
	u := dynamo.NewUpdate(keys.Tenant(tenantID)).IfExists(s.db.Table())
	n := 0
	if patch.DisplayName != nil {
		u.Apply(dynamo.Set("displayName", *patch.DisplayName))
		n++
	}
	if patch.EventDate != nil {
		u.Apply(dynamo.Set("eventDate", *patch.EventDate))
		n++
	}
	if patch.Plan != nil {
		u.Apply(dynamo.Set("plan", *patch.Plan))
		n++
	}
	if patch.CoOwnerIDs != nil {
		u.Apply(dynamo.Set("coOwnerIds", *patch.CoOwnerIDs))
		n++
	}
	if n == 0 {
		return apperr.Validationf("EMPTY_UPDATE", "no fields to update")
	}
	err := s.db.UpdateItem(ctx, u)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return errNotFound()
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to update wedding", err)
	}
	return nil
}

// SetStatus transitions the tenant lifecycle state.
func (s *Store) SetStatus(ctx context.Context, tenantID string, status Status) error {
	if !status.Known() {
		return apperr.Validationf("INVALID_STATUS", "unknown status %q", status)
	}
	err := s.db.UpdateItem(ctx, dynamo.NewUpdate(keys.Tenant(tenantID)).
		Apply(dynamo.Set("status", string(status))).
		IfExists(s.db.Table()))
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return errNotFound()
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to update status", err)
	}
	return nil
}

// CascadeResult reports what each best-effort step of a hard delete
// removed. Partial completion is expected on failure; the operation is
// idempotent and safe to re-run.
type CascadeResult struct {
	Records map[string]int `json:"records"`
	Objects int            `json:"objects"`
}

// HardDelete removes every record under the tenant's key prefix plus the
// tenant's object-storage files. Only archived tenants may be deleted.
// The steps run sequentially without a wrapping transaction: the batch
// API's own size limits make all-or-nothing impossible, so each step is
// instead safe to repeat.
func (s *Store) HardDelete(ctx context.Context, t *Tenant, objects ObjectRemover) (*CascadeResult, error) {
	if t.Status != StatusArchived {
		return nil, apperr.New(apperr.Forbidden, "NOT_ARCHIVED", "only archived weddings can be deleted")
	}
	res := &CascadeResult{Records: map[string]int{}}

	for _, kind := range []keys.Kind{keys.KindGift, keys.KindTrack, keys.KindImage, keys.KindParkingImage} {
		n, err := s.deleteKind(ctx, t.TenantID, kind)
		res.Records[string(kind)] = n
		if err != nil {
			return res, err
		}
	}
	n, err := s.deleteIndexed(ctx, keys.RSVPAllPK(t.TenantID), keys.GSI2)
	res.Records["RSVP"] = n
	if err != nil {
		return res, err
	}
	n, err = s.deletePartition(ctx, keys.SettingsPartition(t.TenantID))
	res.Records["SETTINGS"] = n
	if err != nil {
		return res, err
	}

	// Object files go last and are best-effort: an orphaned file is
	// acceptable, an index record pointing at a deleted file is not.
	deleted, err := objects.DeletePrefix(ctx, keys.StoragePrefix(t.TenantID))
	res.Objects = deleted
	if err != nil {
		s.log.Warn("object cleanup incomplete during wedding delete",
			zap.String("tenantId", t.TenantID), zap.Error(err))
	}

	_, err = s.db.NewBatch().
		Delete(keys.Tenant(t.TenantID), keys.SlugLookup(t.Slug)).
		Exec(ctx)
	if err != nil {
		return res, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete wedding record", err)
	}
	res.Records["TENANT"] = 2
	return res, nil
}

// deleteKind removes all entities of one kind for the tenant.
func (s *Store) deleteKind(ctx context.Context, tenantID string, kind keys.Kind) (int, error) {
	items, err := s.db.NewQuery(keys.EntityListPK(tenantID, kind)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list records", err)
	}
	if kind != keys.KindGift {
		return s.deleteItems(ctx, items)
	}
	// Gift reservations live in their parent gift's partition, so each
	// gift is removed by clearing that whole partition.
	total := 0
	for _, item := range items {
		key, err := s.db.Table().ExtractKey(item)
		if err != nil {
			return total, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read record key", err)
		}
		n, err := s.deletePartition(ctx, key.Partition)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// deleteIndexed removes every record found in one GSI partition.
func (s *Store) deleteIndexed(ctx context.Context, partition, index string) (int, error) {
	items, err := s.db.NewQuery(partition).Index(index).All(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list records", err)
	}
	return s.deleteItems(ctx, items)
}

// deletePartition removes every record in one base-table partition.
func (s *Store) deletePartition(ctx context.Context, partition string) (int, error) {
	items, err := s.db.NewQuery(partition).All(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list records", err)
	}
	return s.deleteItems(ctx, items)
}

func (s *Store) deleteItems(ctx context.Context, items []dynamo.Item) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	batch := s.db.NewBatch()
	for _, item := range items {
		key, err := s.db.Table().ExtractKey(item)
		if err != nil {
			return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read record key", err)
		}
		batch.Delete(key)
	}
	n, err := batch.Exec(ctx)
	if err != nil {
		return n, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete records", err)
	}
	return n, nil
}
