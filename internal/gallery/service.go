package gallery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
	"github.com/vowsuite/vowsuite/internal/ordering"
	"github.com/vowsuite/vowsuite/internal/settings"
)

type Service struct {
	db      *dynamo.Client
	storage Storage
	log     *zap.Logger
}

func NewService(db *dynamo.Client, storage Storage, log *zap.Logger) *Service {
	return &Service{db: db, storage: storage, log: log}
}

type CreateInput struct {
	Filename string
	Caption  *string
}

// Upload is the response to a create: the pending record plus the URL
// the client PUTs the file to.
type Upload struct {
	Image     Image  `json:"image"`
	UploadURL string `json:"uploadUrl"`
}

// Create registers a pending image and issues its presigned upload URL.
// The target key is built inside the tenant's namespace and validated
// before any URL is signed.
func (s *Service) Create(ctx context.Context, tenantID string, kind keys.Kind, in CreateInput) (*Upload, error) {
	if !validFilename(in.Filename) {
		return nil, apperr.Validationf("INVALID_FILENAME", "filename is not acceptable")
	}
	cat, err := category(kind)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "INVALID_KIND", "unsupported image kind", err)
	}
	maxItems, formats, err := s.limits(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	if len(formats) > 0 && !slices.Contains(formats, extension(in.Filename)) {
		return nil, apperr.Validationf("UNSUPPORTED_FORMAT", "allowed formats: %v", formats)
	}

	existing, err := s.List(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	if len(existing) >= maxItems {
		return nil, apperr.Validationf("IMAGE_LIMIT_REACHED", "this gallery is limited to %d images", maxItems)
	}
	order, err := ordering.NextOrder(ctx, s.db, tenantID, kind)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	objectKey := keys.StorageKey(tenantID, cat, fmt.Sprintf("%s-%s", id, in.Filename))
	if err := keys.ValidateStorageKeyOwner(objectKey, tenantID); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "INVALID_FILENAME", "filename is not acceptable", err)
	}

	key := keys.Entity(tenantID, kind, id)
	img := Image{
		PK:        key.Partition,
		SK:        key.Sort,
		GSI1PK:    keys.EntityListPK(tenantID, kind),
		GSI1SK:    keys.OrderSK(order, id),
		ID:        id,
		TenantID:  tenantID,
		ObjectKey: objectKey,
		Caption:   in.Caption,
		Order:     order,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.db.PutItem(ctx, dynamo.NewPut(&img).IfNotExists(s.db.Table())); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to create image", err)
	}

	url, err := s.storage.PresignUpload(ctx, objectKey)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORAGE_ERROR", "failed to issue upload URL", err)
	}
	return &Upload{Image: img, UploadURL: url}, nil
}

// Finalize marks an image uploaded after verifying the object is
// actually there.
func (s *Service) Finalize(ctx context.Context, tenantID string, kind keys.Kind, id string) error {
	img, err := s.Get(ctx, tenantID, kind, id)
	if err != nil {
		return err
	}
	ok, err := s.storage.Exists(ctx, img.ObjectKey)
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORAGE_ERROR", "failed to verify upload", err)
	}
	if !ok {
		return apperr.Validationf("UPLOAD_INCOMPLETE", "the file has not been uploaded yet")
	}

	err = s.db.UpdateItem(ctx, dynamo.NewUpdate(keys.Entity(tenantID, kind, id)).
		Apply(dynamo.Set("uploaded", true)).
		IfExists(s.db.Table()))
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return apperr.NotFoundf("IMAGE_NOT_FOUND", "image not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to finalize image", err)
	}
	return nil
}

// Get fetches one image record with a strongly consistent read.
func (s *Service) Get(ctx context.Context, tenantID string, kind keys.Kind, id string) (*Image, error) {
	item, err := s.db.GetItem(ctx, keys.Entity(tenantID, kind, id))
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load image", err)
	}
	if item == nil {
		return nil, apperr.NotFoundf("IMAGE_NOT_FOUND", "image not found")
	}
	var img Image
	if err := attributevalue.UnmarshalMap(item, &img); err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read image", err)
	}
	return &img, nil
}

// List returns the tenant's images of one kind in display order.
func (s *Service) List(ctx context.Context, tenantID string, kind keys.Kind) ([]Image, error) {
	items, err := s.db.NewQuery(keys.EntityListPK(tenantID, kind)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list images", err)
	}
	out := make([]Image, len(items))
	for i, item := range items {
		if err := attributevalue.UnmarshalMap(item, &out[i]); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read image", err)
		}
	}
	return out, nil
}

// ListUploaded filters the listing to images whose upload completed;
// public pages never see pending records.
func (s *Service) ListUploaded(ctx context.Context, tenantID string, kind keys.Kind) ([]Image, error) {
	all, err := s.List(ctx, tenantID, kind)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, img := range all {
		if img.Uploaded {
			out = append(out, img)
		}
	}
	return out, nil
}

// Delete removes the record, then the object best-effort. An orphaned
// file is acceptable; a record pointing at a deleted file is not, so
// the record always goes first and storage failure never rolls it back.
func (s *Service) Delete(ctx context.Context, tenantID string, kind keys.Kind, id string) error {
	img, err := s.Get(ctx, tenantID, kind, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteItem(ctx, dynamo.NewDelete(keys.Entity(tenantID, kind, id))); err != nil {
		return apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to delete image", err)
	}
	if err := s.storage.Delete(ctx, img.ObjectKey); err != nil {
		s.log.Warn("image object left behind after record deletion",
			zap.String("tenantId", tenantID), zap.String("objectKey", img.ObjectKey), zap.Error(err))
	}
	return nil
}

// Reorder persists a full new display order for one image kind.
func (s *Service) Reorder(ctx context.Context, tenantID string, kind keys.Kind, ids []string) (ordering.Result, error) {
	if _, err := category(kind); err != nil {
		return ordering.Result{}, apperr.Wrap(apperr.Validation, "INVALID_KIND", "unsupported image kind", err)
	}
	return ordering.Reorder(ctx, s.db, tenantID, kind, ids)
}

// PresignHero issues an upload URL for the hero background file. The
// caller stores the returned key on the HERO_BACKGROUND settings
// document once the upload finishes.
func (s *Service) PresignHero(ctx context.Context, tenantID, filename string) (key, url string, err error) {
	if !validFilename(filename) {
		return "", "", apperr.Validationf("INVALID_FILENAME", "filename is not acceptable")
	}
	cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureHeroBackground, settings.DefaultHeroBackground())
	if err != nil {
		return "", "", err
	}
	if len(cfg.AllowedFormats) > 0 && !slices.Contains(cfg.AllowedFormats, extension(filename)) {
		return "", "", apperr.Validationf("UNSUPPORTED_FORMAT", "allowed formats: %v", cfg.AllowedFormats)
	}
	key = keys.StorageKey(tenantID, "hero", fmt.Sprintf("%s-%s", uuid.NewString(), filename))
	url, err = s.storage.PresignUpload(ctx, key)
	if err != nil {
		return "", "", apperr.Wrap(apperr.Dependency, "STORAGE_ERROR", "failed to issue upload URL", err)
	}
	return key, url, nil
}

// limits resolves the per-kind cap and allowed formats from settings.
func (s *Service) limits(ctx context.Context, tenantID string, kind keys.Kind) (int, []string, error) {
	switch kind {
	case keys.KindImage:
		cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureImages, settings.DefaultImages())
		if err != nil {
			return 0, nil, err
		}
		return cfg.MaxItems, cfg.AllowedFormats, nil
	case keys.KindParkingImage:
		cfg, _, err := settings.Load(ctx, s.db, tenantID, settings.FeatureParking, settings.DefaultParking())
		if err != nil {
			return 0, nil, err
		}
		return cfg.MaxImages, nil, nil
	}
	return 0, nil, apperr.Validationf("INVALID_KIND", "unsupported image kind")
}
