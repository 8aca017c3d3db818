package registry

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/ordering"
	"github.com/vowsuite/vowsuite/internal/settings"
)

type Service struct {
	db  *dynamo.Client
	log *zap.Logger
}

func NewService(db *dynamo.Client, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type CreateGiftInput struct {
	Name          string
	Description   *string
	LinkURL       *string
	ImageKey      *string
	PriceCents    int
	QuantityTotal int
}

// CreateGift appends a gift at the end of the list. The per-tenant item
// limit comes from the GIFTS settings document.
func (s *Service) CreateGift(ctx context.Context, tenantID string, in CreateGiftInput) (*Gift, error) {
	if in.Name == "" {
		return nil, apperr.Validationf("INVALID_NAME", "gift name is required")
	}
	if in.QuantityTotal < 1 {
		return nil, apperr.Validationf("INVALID_QUANTITY", "quantityTotal must be at least 1")
	}
	cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureGifts, settings.DefaultGifts())
	if err != nil {
		return nil, err
	}

	order, err := ordering.NextOrder(ctx, s.db, tenantID, keys.KindGift)
	if err != nil {
		return nil, err
	}
	if order >= cfg.MaxItems {
		return nil, apperr.Validationf("GIFT_LIMIT_REACHED", "this registry is limited to %d gifts", cfg.MaxItems)
	}

	g := &Gift{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Name:          in.Name,
		Description:   in.Description,
		LinkURL:       in.LinkURL,
		ImageKey:      in.ImageKey,
		PriceCents:    in.PriceCents,
		QuantityTotal: in.QuantityTotal,
		Order:         order,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	g.PK, g.SK, g.GSI1PK, g.GSI1SK = newGiftKeys(tenantID, g.ID, order)

	if err := s.db.PutItem(ctx, dynamo.NewPut(g).IfNotExists(s.db.Table())); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to create gift", err)
	}
	return g, nil
}

// ListGifts returns the tenant's gifts in display order. Listing reads
// are eventually consistent.
func (s *Service) ListGifts(ctx context.Context, tenantID string) ([]Gift, error) {
	items, err := s.db.NewQuery(keys.EntityListPK(tenantID, keys.KindGift)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list gifts", err)
	}
	gifts := make([]Gift, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &gifts[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read gift", err)
		}
	}
	return gifts, nil
}

// GetGift fetches one gift with a strongly consistent read.
func (s *Service) GetGift(ctx context.Context, tenantID, giftID string) (*Gift, error) {
	item, err := s.db.GetItem(ctx, keys.Entity(tenantID, keys.KindGift, giftID))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load gift", err)
	}
	if item == nil {
		return nil, apperr.NotFoundf("GIFT_NOT_FOUND", "gift not found")
	}
	var g Gift
	if err := attributevalue.UnmarshalMap(item, &g); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read gift", err)
	}
	return &g, nil
}

type GiftPatch struct {
	Name          *string
	Description   *string
	LinkURL       *string
	ImageKey      *string
	PriceCents    *int
	QuantityTotal *int
}

// UpdateGift mutates gift fields in place. Shrinking quantityTotal is
// conditioned on the reserved count still fitting under the new total,
// so a concurrent reservation cannot be stranded above the cap.
func (s *Service) UpdateGift(ctx context.Context, tenantID, giftID string, patch GiftPatch) error {
	u := dynamo.NewUpdate(keys.Entity(tenantID, keys.KindGift, giftID)).IfExists(s.db.Table())
	n := 0
	if patch.Name != nil {
		if *patch.Name == "" {
			return apperr.Validationf("INVALID_NAME", "gift name cannot be empty")
		}
		u.Apply(dynamo.Set("name", *patch.Name))
		n++
	}
	if patch.Description != nil {
		u.Apply(dynamo.Set("description", *patch.Description))
		n++
	}
	if patch.LinkURL != nil {
		u.Apply(dynamo.Set("linkUrl", *patch.LinkURL))
		n++
	}
	if patch.ImageKey != nil {
		if err := keys.ValidateStorageKeyOwner(*patch.ImageKey, tenantID); err != nil {
			return apperr.Wrap(apperr.Validation, "INVALID_IMAGE_KEY", "image key is not valid for this wedding", err)
		}
		u.Apply(dynamo.Set("imageKey", *patch.ImageKey))
		n++
	}
	if patch.PriceCents != nil {
		u.Apply(dynamo.Set("priceCents", *patch.PriceCents))
		n++
	}
	if patch.QuantityTotal != nil {
		if *patch.QuantityTotal < 1 {
			return apperr.Validationf("INVALID_QUANTITY", "quantityTotal must be at least 1")
		}
		u.Apply(dynamo.Set("quantityTotal", *patch.QuantityTotal))
		u.Condition(expression.Name("quantityReserved").LessThanEqual(expression.Value(*patch.QuantityTotal)))
		n++
	}
	if n == 0 {
		return apperr.Validationf("EMPTY_UPDATE", "no fields to update")
	}

	err := s.db.UpdateItem(ctx, u)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		if patch.QuantityTotal != nil {
			return apperr.Wrap(apperr.Conflict, "QUANTITY_BELOW_RESERVED", "quantityTotal cannot drop below the reserved count", err)
		}
		return apperr.NotFoundf("GIFT_NOT_FOUND", "gift not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to update gift", err)
	}
	return nil
}

// DeleteGift removes the gift and every reservation in its partition.
// Best-effort sequential deletion, idempotent.
func (s *Service) DeleteGift(ctx context.Context, tenantID, giftID string) error {
	partition := keys.Entity(tenantID, keys.KindGift, giftID).Partition
	items, err := s.db.NewQuery(partition).All(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list gift records", err)
	}
	if len(items) == 0 {
		return apperr.NotFoundf("GIFT_NOT_FOUND", "gift not found")
	}
	batch := s.db.NewBatch()
	for _, item := range items {
		key, err := s.db.Table().ExtractKey(item)
		if err != nil {
			return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read record key", err)
		}
		batch.Delete(key)
	}
	if _, err := batch.Exec(ctx); err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete gift", err)
	}
	return nil
}

// maxReorderIDs caps one gift reorder request. Registries stay small,
// so one transaction always suffices here.
const maxReorderIDs = 50

// ReorderGifts persists a full new display order.
func (s *Service) ReorderGifts(ctx context.Context, tenantID string, ids []string) (ordering.Result, error) {
	if len(ids) > maxReorderIDs {
		return ordering.Result{}, apperr.Validationf("TOO_MANY_IDS", "a reorder accepts at most %d gifts", maxReorderIDs)
	}
	return ordering.Reorder(ctx, s.db, tenantID, keys.KindGift, ids)
}

type ReserveInput struct {
	GuestName  string
	GuestEmail *string
	Message    *string
	Quantity   int
}

// Reserve claims quantity units of a gift for a guest.
//
// The initial read is an optimistic pre-check only; the gift row may be
// mutated between it and the commit. What actually prevents overselling
// is the transaction condition: the counter increment is conditioned on
// quantityReserved still being at most total-quantity at commit time,
// re-deriving the bound from the read. A condition failure means a
// concurrent reservation won the race; the caller may simply retry.
func (s *Service) Reserve(ctx context.Context, tenantID, giftID string, in ReserveInput) (*Reservation, error) {
	if in.Quantity < 1 {
		return nil, apperr.Validationf("INVALID_QUANTITY", "quantity must be at least 1")
	}
	if in.GuestName == "" {
		return nil, apperr.Validationf("INVALID_GUEST_NAME", "guest name is required")
	}
	cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureGifts, settings.DefaultGifts())
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, apperr.New(apperr.Forbidden, "GIFTS_DISABLED", "the gift registry is not enabled for this wedding")
	}

	g, err := s.GetGift(ctx, tenantID, giftID)
	if err != nil {
		return nil, err
	}
	if available := g.Available(); in.Quantity > available {
		if available == 0 {
			return nil, apperr.Validationf("INSUFFICIENT_QUANTITY", "this gift is fully reserved")
		}
		return nil, apperr.Validationf("INSUFFICIENT_QUANTITY", "only %d left to reserve", available)
	}

	maxAllowedReserved := g.QuantityTotal - in.Quantity

	resID := uuid.NewString()
	resKey := keys.Reservation(tenantID, giftID, resID)
	r := &Reservation{
		PK:         resKey.Partition,
		SK:         resKey.Sort,
		ID:         resID,
		GiftID:     giftID,
		TenantID:   tenantID,
		GuestName:  in.GuestName,
		GuestEmail: in.GuestEmail,
		Message:    in.Message,
		Quantity:   in.Quantity,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	err = s.db.NewTx().Add(
		dynamo.NewUpdate(keys.Entity(tenantID, keys.KindGift, giftID)).
			Apply(dynamo.AddNumber("quantityReserved", in.Quantity)).
			IfExists(s.db.Table()).
			Condition(expression.Name("quantityReserved").LessThanEqual(expression.Value(maxAllowedReserved))),
		dynamo.NewPut(r).IfNotExists(s.db.Table()),
	).Commit(ctx)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return nil, apperr.Wrap(apperr.Conflict, "RESERVATION_CONFLICT",
			"someone reserved this gift at the same time, please try again", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to reserve gift", err)
	}
	return r, nil
}

// CancelReservation releases a reservation's units back to the gift.
// The reverse transaction floors the counter at the reservation's own
// quantity so repeated or racing cancels cannot drive it negative.
func (s *Service) CancelReservation(ctx context.Context, tenantID, giftID, reservationID string) error {
	resKey := keys.Reservation(tenantID, giftID, reservationID)
	item, err := s.db.GetItem(ctx, resKey)
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load reservation", err)
	}
	if item == nil {
		return apperr.NotFoundf("RESERVATION_NOT_FOUND", "reservation not found")
	}
	var r Reservation
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read reservation", err)
	}

	err = s.db.NewTx().Add(
		dynamo.NewUpdate(keys.Entity(tenantID, keys.KindGift, giftID)).
			Apply(dynamo.AddNumber("quantityReserved", -r.Quantity)).
			IfExists(s.db.Table()).
			Condition(expression.Name("quantityReserved").GreaterThanEqual(expression.Value(r.Quantity))),
		dynamo.NewDelete(resKey).IfExists(s.db.Table()),
	).Commit(ctx)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return apperr.Wrap(apperr.Conflict, "CANCEL_CONFLICT",
			"this reservation was already released, please refresh", err)
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to cancel reservation", err)
	}
	return nil
}

// ListReservations returns a gift's reservations.
func (s *Service) ListReservations(ctx context.Context, tenantID, giftID string) ([]Reservation, error) {
	items, err := s.db.NewQuery(keys.Entity(tenantID, keys.KindGift, giftID).Partition).
		SortKey(dynamo.SortKeyBeginsWith(keys.ReservationSKPrefix)).
		All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list reservations", err)
	}
	out := make([]Reservation, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &out[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read reservation", err)
		}
	}
	return out, nil
}
