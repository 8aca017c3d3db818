package rsvp

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/settings"
)

type Service struct {
	db  *dynamo.Client
	log *zap.Logger
	// now is swappable so deadline tests don't sleep.
	now func() time.Time
}

func NewService(db *dynamo.Client, log *zap.Logger) *Service {
	return &Service{db: db, log: log, now: time.Now}
}

type SubmitInput struct {
	GuestName string
	Email     *string
	Phone     *string
	Status    Status
	PartySize int
	Message   *string
}

// Submit records a guest's answer on a public page. The tenant's RSVP
// settings gate the submission: feature enabled, deadline not passed,
// party within the configured size, maybe allowed.
func (s *Service) Submit(ctx context.Context, tenantID string, in SubmitInput) (*RSVP, error) {
	if in.GuestName == "" {
		return nil, apperr.Validationf("INVALID_GUEST_NAME", "guest name is required")
	}
	if !in.Status.Known() {
		return nil, apperr.Validationf("INVALID_STATUS", "status must be attending, maybe or not_attending")
	}
	if in.PartySize < 1 {
		return nil, apperr.Validationf("INVALID_PARTY_SIZE", "party size must be at least 1")
	}

	cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureRSVP, settings.DefaultRSVP())
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperr.New(apperr.Forbidden, "RSVP_DISABLED", "RSVPs are not open for this wedding")
	}
	if !cfg.AllowMaybe && in.Status == StatusMaybe {
		return nil, apperr.Validationf("MAYBE_NOT_ALLOWED", "a definitive answer is required")
	}
	if in.PartySize > cfg.MaxGuestsPerParty {
		return nil, apperr.Validationf("PARTY_TOO_LARGE", "parties are limited to %d guests", cfg.MaxGuestsPerParty)
	}
	if cfg.Deadline != nil {
		deadline, err := time.Parse(time.RFC3339, *cfg.Deadline)
		if err == nil && s.now().After(deadline) {
			return nil, apperr.New(apperr.Forbidden, "RSVP_DEADLINE_PASSED", "the RSVP deadline has passed")
		}
	}

	now := s.now().UTC().Format(time.RFC3339)
	id := uuid.NewString()
	key := keys.RSVP(tenantID, id)
	r := &RSVP{
		PK:        key.Partition,
		SK:        key.Sort,
		ID:        id,
		TenantID:  tenantID,
		GuestName: in.GuestName,
		Email:     in.Email,
		Phone:     in.Phone,
		Status:    in.Status,
		PartySize: in.PartySize,
		Message:   in.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.GSI1PK, r.GSI1SK, r.GSI2PK, r.GSI2SK = indexKeys(tenantID, r.ID, r.Status, r.CreatedAt)

	if err := s.db.PutItem(ctx, dynamo.NewPut(r).IfNotExists(s.db.Table())); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to save RSVP", err)
	}
	return r, nil
}

// ListAll returns every RSVP for the tenant in submission order.
func (s *Service) ListAll(ctx context.Context, tenantID string) ([]RSVP, error) {
	return s.list(ctx, keys.RSVPAllPK(tenantID), keys.GSI2)
}

// ListByStatus returns the tenant's RSVPs with one status.
func (s *Service) ListByStatus(ctx context.Context, tenantID string, status Status) ([]RSVP, error) {
	if !status.Known() {
		return nil, apperr.Validationf("INVALID_STATUS", "status must be attending, maybe or not_attending")
	}
	return s.list(ctx, keys.RSVPStatusPK(tenantID, string(status)), keys.GSI1)
}

func (s *Service) list(ctx context.Context, partition, index string) ([]RSVP, error) {
	items, err := s.db.NewQuery(partition).Index(index).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list RSVPs", err)
	}
	out := make([]RSVP, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &out[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read RSVP", err)
		}
	}
	return out, nil
}

// Get fetches one RSVP with a strongly consistent read.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*RSVP, error) {
	item, err := s.db.GetItem(ctx, keys.RSVP(tenantID, id))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load RSVP", err)
	}
	if item == nil {
		return nil, apperr.NotFoundf("RSVP_NOT_FOUND", "RSVP not found")
	}
	var r RSVP
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read RSVP", err)
	}
	return &r, nil
}

type Patch struct {
	GuestName *string
	Email     *string
	Phone     *string
	Status    *Status
	PartySize *int
	Message   *string
}

// Update edits an RSVP from the admin side. A status change moves the
// record to the new status partition by rewriting its index key.
func (s *Service) Update(ctx context.Context, tenantID, id string, patch Patch) error {
	u := dynamo.NewUpdate(keys.RSVP(tenantID, id)).IfExists(s.db.Table())
	n := 0
	if patch.GuestName != nil {
		if *patch.GuestName == "" {
			return apperr.Validationf("INVALID_GUEST_NAME", "guest name cannot be empty")
		}
		u.Apply(dynamo.Set("guestName", *patch.GuestName))
		n++
	}
	if patch.Email != nil {
		u.Apply(dynamo.Set("email", *patch.Email))
		n++
	}
	if patch.Phone != nil {
		u.Apply(dynamo.Set("phone", *patch.Phone))
		n++
	}
	if patch.Status != nil {
		if !patch.Status.Known() {
			return apperr.Validationf("INVALID_STATUS", "status must be attending, maybe or not_attending")
		}
		u.Apply(
			dynamo.Set("status", string(*patch.Status)),
			dynamo.Set("gsi1pk", keys.RSVPStatusPK(tenantID, string(*patch.Status))),
		)
		n++
	}
	if patch.PartySize != nil {
		if *patch.PartySize < 1 {
			return apperr.Validationf("INVALID_PARTY_SIZE", "party size must be at least 1")
		}
		u.Apply(dynamo.Set("partySize", *patch.PartySize))
		n++
	}
	if patch.Message != nil {
		u.Apply(dynamo.Set("message", *patch.Message))
		n++
	}
	if n == 0 {
		return apperr.Validationf("EMPTY_UPDATE", "no fields to update")
	}
	u.Apply(dynamo.Set("updatedAt", s.now().UTC().Format(time.RFC3339)))

	err := s.db.UpdateItem(ctx, u)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return apperr.NotFoundf("RSVP_NOT_FOUND", "RSVP not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to update RSVP", err)
	}
	return nil
}

// Delete removes one RSVP.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	err := s.db.DeleteItem(ctx, dynamo.NewDelete(keys.RSVP(tenantID, id)).
		IfExists(s.db.Table()))
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return apperr.NotFoundf("RSVP_NOT_FOUND", "RSVP not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete RSVP", err)
	}
	return nil
}
